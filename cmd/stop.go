package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/pktlive/internal/core"
)

var stopDaemon bool

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop packet capture, or the daemon with --daemon",
	Long: `Stop packet capture in the running daemon.

With --daemon the daemon itself is shut down gracefully: capture is stopped,
websocket clients are disconnected and the process exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return runStop(cmd.Context(), c, cmd.OutOrStdout(), stopDaemon)
	},
}

func init() {
	stopCmd.Flags().BoolVar(&stopDaemon, "daemon", false, "shut down the daemon process")
}

func runStop(ctx context.Context, c Client, w io.Writer, daemon bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if daemon {
		if err := c.DaemonShutdown(ctx); err != nil {
			return fmt.Errorf("daemon_shutdown failed: %w", err)
		}
		fmt.Fprintln(w, "✓ Daemon shutdown requested")
		return nil
	}

	res, err := c.CaptureStop(ctx)
	if err != nil {
		return fmt.Errorf("capture_stop failed: %w", err)
	}
	switch res.Status {
	case core.StatusStopped:
		fmt.Fprintf(w, "✓ Capture stopped (%d packets published)\n", res.State.PacketsPublished)
	case core.StatusAlreadyStopped:
		fmt.Fprintln(w, "Capture is not running")
	default:
		fmt.Fprintf(w, "Capture status: %s\n", res.Status)
	}
	return nil
}
