package command

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktlive/internal/capture"
	"firestige.xyz/pktlive/internal/core"
)

func startUDS(t *testing.T, h *CommandHandler) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	// Unix socket paths are length limited, keep it short.
	dir, err := os.MkdirTemp("", "pkt")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	socketPath := filepath.Join(dir, "ctl.sock")

	server := NewUDSServer(socketPath, h)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	select {
	case <-server.Ready():
	case err := <-errCh:
		t.Fatalf("uds server failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("uds server not ready")
	}
	return socketPath, cancel, errCh
}

func TestUDSServerClient_Integration(t *testing.T) {
	ctrl := new(MockController)
	ctrl.On("Start").Return(core.StatusStarted).Once()
	ctrl.On("Stop").Return(core.StatusStopped).Once()
	ctrl.On("Status").Return(capture.Snapshot{State: capture.StateRunning, Interface: "eth0"})

	h := NewCommandHandler(ctrl)
	socketPath, cancel, errCh := startUDS(t, h)
	client := NewUDSClient(socketPath, 5*time.Second)
	ctx := context.Background()

	t.Run("capture_start", func(t *testing.T) {
		res, err := client.CaptureStart(ctx)
		require.NoError(t, err)
		assert.Equal(t, core.StatusStarted, res.Status)
		assert.Equal(t, "eth0", res.State.Interface)
	})

	t.Run("capture_status", func(t *testing.T) {
		snap, err := client.CaptureStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, capture.StateRunning, snap.State)
	})

	t.Run("capture_stop", func(t *testing.T) {
		res, err := client.CaptureStop(ctx)
		require.NoError(t, err)
		assert.Equal(t, core.StatusStopped, res.Status)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, client.Ping(ctx))
	})

	t.Run("unknown method", func(t *testing.T) {
		err := client.Call(ctx, "task_list", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("malformed request", func(t *testing.T) {
		conn, err := net.Dial("unix", socketPath)
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Write([]byte("{not json\n"))
		require.NoError(t, err)

		var resp JSONRPCResponse
		scanner := bufio.NewScanner(conn)
		require.True(t, scanner.Scan())
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeParseError, resp.Error.Code)
	})

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	_, err := os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err), "socket file removed on stop")
	ctrl.AssertExpectations(t)
}

func TestUDSClientDaemonNotRunning(t *testing.T) {
	client := NewUDSClient(filepath.Join(t.TempDir(), "missing.sock"), time.Second)
	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDaemonNotRunning)
}
