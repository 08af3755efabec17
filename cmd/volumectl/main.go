// Command volumectl reads and toggles the volume flag held by volumestated.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"volumestate/internal/ipc"
)

const (
	defaultSocketPath = "/tmp/volumestate.sock"
	defaultWSURL      = "ws://127.0.0.1:3002/ws/state"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		socketPath string
		wsURL      string
	)

	cmd := &cobra.Command{
		Use:   "volumectl",
		Short: "Control the volumestated volume flag",
		Long: `Control the volume on/off flag owned by volumestated.

Examples:
  volumectl status                 # Print "on" or "off"
  volumectl toggle                 # Flip the flag
  volumectl watch                  # Print every change until interrupted
  volumectl --socket /run/volumestate.sock toggle
`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&socketPath, "socket", defaultSocketPath, "volumestated IPC socket path")
	cmd.PersistentFlags().StringVar(&wsURL, "ws-url", defaultWSURL, "volumestated state websocket URL")

	cmd.AddCommand(
		toggleCmd(&socketPath),
		statusCmd(&socketPath),
		watchCmd(&wsURL),
	)

	return cmd
}

func toggleCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Flip the volume flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := ipc.Toggle(*socketPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatState(on))
			return nil
		},
	}
}

func statusCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current volume flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := ipc.State(*socketPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatState(on))
			return nil
		},
	}
}

func watchCmd(wsURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the volume flag on every change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchState(ctx, *wsURL, cmd.OutOrStdout())
		},
	}
}

func formatState(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
