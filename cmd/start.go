package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/pktlive/internal/core"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start packet capture in the running daemon",
	Long: `Ask the running daemon to start capturing packets.

Starting while capture is already running is reported and changes nothing.

Examples:
  pktlive start
  pktlive start -s /tmp/pktlive.sock`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return runStart(cmd.Context(), c, cmd.OutOrStdout())
	},
}

func runStart(ctx context.Context, c Client, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := c.CaptureStart(ctx)
	if err != nil {
		return fmt.Errorf("capture_start failed: %w", err)
	}

	switch res.Status {
	case core.StatusStarted:
		fmt.Fprintf(w, "✓ Capture started on %s (generation %s)\n", res.State.Interface, res.State.Generation)
	case core.StatusAlreadyRunning:
		fmt.Fprintf(w, "Capture is already running on %s\n", res.State.Interface)
	default:
		fmt.Fprintf(w, "Capture status: %s\n", res.Status)
	}
	return nil
}
