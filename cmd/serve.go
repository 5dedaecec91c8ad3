package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"firestige.xyz/pktlive/internal/daemon"
)

var pidFile string

// serveCmd runs the daemon in the foreground.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pktlive daemon in foreground",
	Long: `Run the pktlive daemon process in foreground.

The daemon will:
  1. Load configuration from the config file (or defaults)
  2. Initialize logging and metrics
  3. Serve the web client, REST API and websocket on server.listen
  4. Start the UDS server for CLI control
  5. Start the Kafka command consumer (if configured)
  6. Handle signals for graceful shutdown (SIGTERM, SIGINT) and reload (SIGHUP)

Capture stays idle until a start command arrives.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&pidFile, "pidfile", "p", "",
		"PID file path (overrides control.pid_file)")
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// Respect container CPU quotas; the packet loop is CPU bound.
	if _, err := maxprocs.Set(); err != nil {
		return fmt.Errorf("failed to set GOMAXPROCS: %w", err)
	}

	d, err := daemon.New(configFile, socketPath, pidFile)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	if err := d.Start(); err != nil {
		d.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Blocks until shutdown
	err = d.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}
