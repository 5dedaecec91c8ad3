package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktlive/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Server.Listen)
	assert.Equal(t, "", cfg.Capture.Interface)
	assert.Equal(t, "pcap", cfg.Capture.Backend)
	assert.Equal(t, 65535, cfg.Capture.SnapLen)
	assert.True(t, cfg.Capture.Promiscuous)
	assert.Equal(t, 250*time.Millisecond, cfg.Capture.ReadTimeout)
	assert.Equal(t, "+05:30", cfg.Capture.TimezoneOffset.Name)
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, cfg.Capture.TimezoneOffset.Location).Zone()
	assert.Equal(t, 5*3600+30*60, offset)
	assert.Equal(t, 4096, cfg.Events.QueueSize)
	assert.Equal(t, 256, cfg.Events.ClientBuffer)
	assert.False(t, cfg.CommandChannel.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "pattern", cfg.Log.Format)
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
pktlive:
  server:
    listen: "127.0.0.1:8080"
  capture:
    interface: "eth0"
    backend: "afpacket"
    read_timeout: "100ms"
    timezone_offset: "-03:00"
    max_packets_per_second: 500
  events:
    client_buffer: 64
  control:
    socket: "/tmp/pktlive-test.sock"
  command_channel:
    enabled: true
    kafka:
      brokers:
        - "localhost:9092"
      topic: "pktlive-commands"
  metrics:
    enabled: true
    listen: "0.0.0.0:9090"
  log:
    level: "debug"
    format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Listen)
	assert.Equal(t, "eth0", cfg.Capture.Interface)
	assert.Equal(t, "afpacket", cfg.Capture.Backend)
	assert.Equal(t, 100*time.Millisecond, cfg.Capture.ReadTimeout)
	assert.Equal(t, "-03:00", cfg.Capture.TimezoneOffset.Name)
	assert.Equal(t, 500, cfg.Capture.MaxPacketsPerSecond)
	assert.Equal(t, 64, cfg.Events.ClientBuffer)
	assert.Equal(t, 4096, cfg.Events.QueueSize)
	assert.Equal(t, "/tmp/pktlive-test.sock", cfg.Control.Socket)
	assert.Equal(t, []string{"localhost:9092"}, cfg.CommandChannel.Kafka.Brokers)
	assert.Equal(t, "pktlive", cfg.CommandChannel.Kafka.GroupID)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PKTLIVE_CAPTURE_INTERFACE", "wlan0")
	t.Setenv("PKTLIVE_SERVER_LISTEN", ":6000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "wlan0", cfg.Capture.Interface)
	assert.Equal(t, ":6000", cfg.Server.Listen)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"log level", "pktlive:\n  log:\n    level: verbose\n"},
		{"log format", "pktlive:\n  log:\n    format: xml\n"},
		{"backend", "pktlive:\n  capture:\n    backend: pfring\n"},
		{"snap len", "pktlive:\n  capture:\n    snap_len: 0\n"},
		{"read timeout", "pktlive:\n  capture:\n    read_timeout: 0s\n"},
		{"rate", "pktlive:\n  capture:\n    max_packets_per_second: -1\n"},
		{"client buffer", "pktlive:\n  events:\n    client_buffer: 0\n"},
		{"kafka brokers", "pktlive:\n  command_channel:\n    enabled: true\n    kafka:\n      topic: cmds\n"},
		{"kafka topic", "pktlive:\n  command_channel:\n    enabled: true\n    kafka:\n      brokers: [\"b:9092\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfigInvalid)
		})
	}
}

func TestLoadBadTimezone(t *testing.T) {
	_, err := Load(writeConfig(t, "pktlive:\n  capture:\n    timezone_offset: \"+5h\"\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}
