package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and capture status",
	Long: `Query the pktlive daemon for its status.

Shows: version, uptime, connected websocket clients, capture state and packet counters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return runStatus(cmd.Context(), c, cmd.OutOrStdout())
	},
}

func runStatus(ctx context.Context, c Client, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ds, err := c.DaemonStatus(ctx)
	if err != nil {
		return fmt.Errorf("daemon_status failed: %w", err)
	}
	snap, err := c.CaptureStatus(ctx)
	if err != nil {
		return fmt.Errorf("capture_status failed: %w", err)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"field", "value"})
	table.AppendBulk([][]string{
		{"version", ds.Version},
		{"uptime", (time.Duration(ds.UptimeSec) * time.Second).String()},
		{"clients", strconv.Itoa(ds.Clients)},
		{"capture", string(snap.State)},
		{"interface", snap.Interface},
		{"generation", snap.Generation},
		{"started at", snap.StartedAt},
		{"published", strconv.FormatInt(snap.PacketsPublished, 10)},
		{"skipped", strconv.FormatInt(snap.PacketsSkipped, 10)},
		{"dropped", strconv.FormatInt(snap.PacketsDropped, 10)},
	})
	if snap.LastError != "" {
		table.Append([]string{"last error", snap.LastError})
	}
	table.Render()
	return nil
}
