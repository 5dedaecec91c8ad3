package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktlive/internal/capture"
	"firestige.xyz/pktlive/internal/command"
	"firestige.xyz/pktlive/internal/config"
)

// writeConfig writes a config with an interface that cannot be opened, so
// capture_start exercises the failure path without privileges.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	content := fmt.Sprintf(`
pktlive:
  server:
    listen: 127.0.0.1:0
  capture:
    interface: pktlive-nonexistent0
    backend: pcap
    read_timeout: 50ms
    timezone_offset: "+05:30"
  control:
    socket: %s
    pid_file: %s
  log:
    level: debug
    format: pattern
  metrics:
    enabled: false
  command_channel:
    enabled: false
`, filepath.Join(dir, "unused.sock"), filepath.Join(dir, "unused.pid"))

	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// shortTempDir keeps unix socket paths under the sun_path limit.
func shortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "pktd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func startDaemon(t *testing.T) (*Daemon, string, string) {
	t.Helper()
	dir := shortTempDir(t)
	socketPath := filepath.Join(dir, "d.sock")
	pidFile := filepath.Join(dir, "d.pid")

	d, err := New(writeConfig(t, dir), socketPath, pidFile)
	require.NoError(t, err)
	require.NoError(t, d.Start())

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "uds socket was not created")
	return d, socketPath, pidFile
}

func TestNew_FlagsOverrideConfig(t *testing.T) {
	dir := shortTempDir(t)
	path := writeConfig(t, dir)

	d, err := New(path, "", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "unused.sock"), d.socketPath)
	assert.Equal(t, filepath.Join(dir, "unused.pid"), d.pidFile)

	d, err = New(path, "/tmp/x.sock", "/tmp/x.pid")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.sock", d.socketPath)
	assert.Equal(t, "/tmp/x.pid", d.pidFile)
}

func TestNew_MissingConfig(t *testing.T) {
	_, err := New("/nonexistent/pktlive.yml", "", "")
	require.Error(t, err)
}

func TestDaemon_StartStopIntegration(t *testing.T) {
	d, socketPath, pidFile := startDaemon(t)

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", os.Getpid()), string(data))

	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(context.Background()) }()

	client := command.NewUDSClient(socketPath, 2*time.Second)
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx))

	resp, err := http.Get("http://" + d.httpServer.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, err := client.DaemonStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, command.Version, status.Version)
	assert.Equal(t, 0, status.Clients)
	assert.Equal(t, string(capture.StateIdle), string(status.Capture))

	require.NoError(t, client.DaemonShutdown(ctx))

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down")
	}

	_, err = os.Stat(pidFile)
	assert.True(t, os.IsNotExist(err), "PID file should be removed")
	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err), "socket should be removed")
}

func TestDaemon_CaptureStartFailureReturnsToIdle(t *testing.T) {
	d, socketPath, _ := startDaemon(t)
	defer d.Stop()

	client := command.NewUDSClient(socketPath, 2*time.Second)
	ctx := context.Background()

	res, err := client.CaptureStart(ctx)
	require.NoError(t, err)
	assert.Equal(t, "started", string(res.Status))

	// The source cannot be opened, so the loop reports an error and the
	// controller goes back to idle.
	require.Eventually(t, func() bool {
		snap, err := client.CaptureStatus(ctx)
		return err == nil && snap.State == capture.StateIdle && snap.LastError != ""
	}, 5*time.Second, 20*time.Millisecond)

	res, err = client.CaptureStop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "already_stopped", string(res.Status))
}

func TestDaemon_RunHonoursContext(t *testing.T) {
	d, _, pidFile := startDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()
	cancel()

	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancel")
	}
	_, err := os.Stat(pidFile)
	assert.True(t, os.IsNotExist(err))

	// Second Stop is a no-op.
	d.Stop()
}

func TestDaemon_Reload(t *testing.T) {
	d, _, _ := startDaemon(t)
	defer d.Stop()

	content := `
pktlive:
  server:
    listen: 127.0.0.1:0
  capture:
    interface: pktlive-nonexistent0
    read_timeout: 50ms
  log:
    level: warn
`
	require.NoError(t, os.WriteFile(d.configPath, []byte(content), 0644))
	require.NoError(t, d.Reload())
	assert.Equal(t, "warn", d.config.Log.Level)
	// Cold settings stay as loaded at start.
	assert.Equal(t, "+05:30", d.config.Capture.TimezoneOffset.Name)

	require.NoError(t, os.WriteFile(d.configPath, []byte("pktlive:\n  log:\n    level: loud\n"), 0644))
	assert.Error(t, d.Reload())
	assert.Equal(t, "warn", d.config.Log.Level)
}

func TestCaptureChanged(t *testing.T) {
	a, err := config.LoadDefault()
	require.NoError(t, err)
	b, err := config.LoadDefault()
	require.NoError(t, err)

	assert.False(t, captureChanged(a.Capture, b.Capture))
	b.Capture.SnapLen = 128
	assert.True(t, captureChanged(a.Capture, b.Capture))
}
