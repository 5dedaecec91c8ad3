package cmd

import (
	"context"
	"time"

	"firestige.xyz/pktlive/internal/capture"
	"firestige.xyz/pktlive/internal/command"
)

// Client is the subset of the UDS client the CLI commands use.
type Client interface {
	CaptureStart(ctx context.Context) (*command.CaptureResult, error)
	CaptureStop(ctx context.Context) (*command.CaptureResult, error)
	CaptureStatus(ctx context.Context) (*capture.Snapshot, error)
	DaemonStatus(ctx context.Context) (*command.DaemonStatus, error)
	DaemonShutdown(ctx context.Context) error
}

const clientTimeout = 10 * time.Second

// newClient is replaced in tests.
var newClient = func() (Client, error) {
	path, err := resolveSocket()
	if err != nil {
		return nil, err
	}
	return command.NewUDSClient(path, clientTimeout), nil
}
