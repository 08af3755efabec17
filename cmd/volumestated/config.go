package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for volumestated.
//
// The file is the primary configuration surface; flags provide small overrides.
// Keep defaults and validation here so the rest of the code can assume a
// well-formed config.
type Config struct {
	IPC     IPCConfig     `yaml:"ipc"`
	HTTP    HTTPConfig    `yaml:"http"`
	WS      WSConfig      `yaml:"ws"`
	Input   InputConfig   `yaml:"input"`
	Logging LoggingConfig `yaml:"logging"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Listen      string `yaml:"listen"`
	StatePath   string `yaml:"state_path"`
	MetricsPath string `yaml:"metrics_path"` // empty disables /metrics
}

type WSConfig struct {
	SendBuf      int `yaml:"send_buf"`
	BroadcastBuf int `yaml:"broadcast_buf"`
}

// InputConfig lists Linux input devices whose mute key toggles the flag.
// Empty means no input devices are read.
type InputConfig struct {
	Devices []string `yaml:"devices,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		IPC: IPCConfig{
			SocketPath: defaultIPCSocketPath,
		},
		HTTP: HTTPConfig{
			Listen:      defaultHTTPListen,
			StatePath:   defaultStatePath,
			MetricsPath: defaultMetricsPath,
		},
		WS: WSConfig{
			SendBuf:      defaultWSSendBuf,
			BroadcastBuf: defaultWSBroadcastBuf,
		},
		Logging: LoggingConfig{
			Level: defaultLogLevel,
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds values from command-line flags.
// Each override is applied only if its pointer is non-nil.
type FlagOverrides struct {
	IPCSocketPath *string
	HTTPListen    *string
	InputDevices  *string // comma-separated
	LogLevel      *string
}

// Apply merges the overrides into cfg. A non-nil pointer is applied even if it holds a zero value.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPListen != nil {
		cfg.HTTP.Listen = *o.HTTPListen
	}
	if o.InputDevices != nil {
		cfg.Input.Devices = splitList(*o.InputDevices)
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults, file and overrides have been applied.
func (c *Config) Validate() error {
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	if c.HTTP.Listen == "" {
		return errors.New("http.listen must not be empty")
	}
	if !strings.HasPrefix(c.HTTP.StatePath, "/") {
		return fmt.Errorf("http.state_path must start with '/': %q", c.HTTP.StatePath)
	}
	if c.HTTP.StatePath == healthzPath {
		return fmt.Errorf("http.state_path must not be %s", healthzPath)
	}
	if c.HTTP.MetricsPath != "" {
		if !strings.HasPrefix(c.HTTP.MetricsPath, "/") {
			return fmt.Errorf("http.metrics_path must start with '/': %q", c.HTTP.MetricsPath)
		}
		if c.HTTP.MetricsPath == c.HTTP.StatePath {
			return errors.New("http.metrics_path must differ from http.state_path")
		}
		if c.HTTP.MetricsPath == healthzPath {
			return fmt.Errorf("http.metrics_path must not be %s", healthzPath)
		}
	}

	if c.WS.SendBuf <= 0 {
		return errors.New("ws.send_buf must be > 0")
	}
	if c.WS.BroadcastBuf <= 0 {
		return errors.New("ws.broadcast_buf must be > 0")
	}

	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}

	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// ExpandPaths applies ExpandPath to every filesystem path in the config.
// Call it after the file and overrides have been applied.
func (c *Config) ExpandPaths() {
	c.IPC.SocketPath = ExpandPath(c.IPC.SocketPath)
	for i, dev := range c.Input.Devices {
		c.Input.Devices[i] = ExpandPath(dev)
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
