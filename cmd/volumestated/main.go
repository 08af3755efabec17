package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"volumestate/store"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("volumestated v%s\n", version)
	fmt.Println("Shared volume on/off state for UI clients")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  volumestated [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that owns the volume on/off flag and publishes it to UI clients")
	fmt.Println("  over WebSocket. Clients, volumectl and input devices toggle it.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (optional)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultIPCSocketPath)
	fmt.Println()
	fmt.Println("  -http-listen string")
	fmt.Printf("        HTTP listen address for the state websocket and metrics (default %q)\n", defaultHTTPListen)
	fmt.Println()
	fmt.Println("  -input-devices string")
	fmt.Println("        Comma-separated Linux input devices whose mute key toggles the flag")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  volumestated -config /etc/volumestate.yaml")
	fmt.Println("  volumestated -input-devices /dev/input/event6 -log-level debug")
	fmt.Println()
}

func main() {
	fs := flag.NewFlagSet("volumestated", flag.ExitOnError)
	fs.Usage = printUsage

	var (
		configPath   = fs.String("config", "", "Path to YAML config file")
		ipcSocket    = fs.String("ipc-socket", defaultIPCSocketPath, "Unix domain socket path for IPC")
		httpListen   = fs.String("http-listen", defaultHTTPListen, "HTTP listen address")
		inputDevices = fs.String("input-devices", "", "Comma-separated Linux input devices")
		logLevel     = fs.String("log-level", defaultLogLevel, "Log level: error, warn, info, debug")
		showVersion  = fs.Bool("version", false, "Print version and exit")
	)
	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags explicitly set on the command line override the file.
	var overrides FlagOverrides
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocket
		case "http-listen":
			overrides.HTTPListen = httpListen
		case "input-devices":
			overrides.InputDevices = inputDevices
		case "log-level":
			overrides.LogLevel = logLevel
		}
	})
	overrides.Apply(&cfg)
	cfg.ExpandPaths()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	level, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(os.Stdout, level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Debug("configuration",
		"ipc_socket", cfg.IPC.SocketPath,
		"http_listen", cfg.HTTP.Listen,
		"state_path", cfg.HTTP.StatePath,
		"metrics_path", cfg.HTTP.MetricsPath,
		"ws_send_buf", cfg.WS.SendBuf,
		"ws_broadcast_buf", cfg.WS.BroadcastBuf,
		"input_devices", cfg.Input.Devices)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("volumestated stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}

// run starts every component and blocks until ctx is canceled or one of them fails.
func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	events := make(chan Event, eventQueueSize)
	broadcasts := make(chan StateBroadcast, broadcastQueueSize)

	st := store.New()

	wsServer := NewServer(logger, events, ServerConfig{
		Hub: HubConfig{SendBuf: cfg.WS.SendBuf, BroadcastBuf: cfg.WS.BroadcastBuf},
	})

	g.Go(func() error {
		runDaemon(ctx, events, st, broadcasts, logger)
		return nil
	})
	g.Go(func() error {
		wsServer.Hub().Run(ctx)
		return nil
	})
	g.Go(func() error {
		RunBroadcaster(ctx, wsServer.Hub(), broadcasts, logger)
		return nil
	})
	g.Go(func() error {
		return runIPCServer(ctx, cfg.IPC.SocketPath, events, logger, nil)
	})
	g.Go(func() error {
		return runHTTPServer(ctx, cfg.HTTP.Listen, newHTTPMux(cfg.HTTP, wsServer), logger)
	})

	if len(cfg.Input.Devices) > 0 {
		raw := make(chan inputEvent, 64)
		g.Go(func() error {
			return runInputReader(ctx, cfg.Input.Devices, raw)
		})
		g.Go(func() error {
			forwardInputEvents(raw, events, logger)
			return nil
		})
	}

	logger.Info("listening",
		"ipc", cfg.IPC.SocketPath,
		"http", cfg.HTTP.Listen,
		"state_path", cfg.HTTP.StatePath,
		"input_devices", len(cfg.Input.Devices))

	return g.Wait()
}
