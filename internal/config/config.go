// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"firestige.xyz/pktlive/internal/core"
	"firestige.xyz/pktlive/internal/log"
)

// GlobalConfig is the daemon configuration. Maps to the `pktlive:` root key in YAML.
type GlobalConfig struct {
	Server         ServerConfig         `mapstructure:"server" yaml:"server"`
	Capture        CaptureConfig        `mapstructure:"capture" yaml:"capture"`
	Events         EventsConfig         `mapstructure:"events" yaml:"events"`
	Control        ControlConfig        `mapstructure:"control" yaml:"control"`
	CommandChannel CommandChannelConfig `mapstructure:"command_channel" yaml:"command_channel"`
	Metrics        MetricsConfig        `mapstructure:"metrics" yaml:"metrics"`
	Log            log.LoggerConfig     `mapstructure:"log" yaml:"log"`
}

// ─── HTTP / websocket server ───

// ServerConfig configures the client-facing HTTP server.
type ServerConfig struct {
	Listen            string        `mapstructure:"listen" yaml:"listen"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"` // empty = any
}

// ─── Capture ───

// CaptureConfig configures the packet source and the published records.
type CaptureConfig struct {
	Interface           string        `mapstructure:"interface" yaml:"interface"` // empty = default-route interface
	Backend             string        `mapstructure:"backend" yaml:"backend"`     // pcap | afpacket
	SnapLen             int           `mapstructure:"snap_len" yaml:"snap_len"`
	Promiscuous         bool          `mapstructure:"promiscuous" yaml:"promiscuous"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	BufferSizeMB        int           `mapstructure:"buffer_size_mb" yaml:"buffer_size_mb"` // afpacket ring size
	TimezoneOffset      Zone          `mapstructure:"timezone_offset" yaml:"timezone_offset"`
	MaxPacketsPerSecond int           `mapstructure:"max_packets_per_second" yaml:"max_packets_per_second"` // 0 = unlimited
}

// Zone is a fixed timezone offset such as "+05:30".
type Zone struct {
	Name     string
	Location *time.Location
}

// MarshalYAML renders the zone as its configured offset string.
func (z Zone) MarshalYAML() (interface{}, error) {
	return z.Name, nil
}

// ─── Event delivery ───

// EventsConfig sizes the event bus and per-client buffers.
type EventsConfig struct {
	QueueSize    int `mapstructure:"queue_size" yaml:"queue_size"`
	ClientBuffer int `mapstructure:"client_buffer" yaml:"client_buffer"`
}

// ─── Control Plane ───

// ControlConfig contains local control plane settings.
type ControlConfig struct {
	Socket  string `mapstructure:"socket" yaml:"socket"`
	PIDFile string `mapstructure:"pid_file" yaml:"pid_file"`
}

// CommandChannelConfig configures the remote Kafka command channel.
type CommandChannelConfig struct {
	Enabled    bool               `mapstructure:"enabled" yaml:"enabled"`
	Type       string             `mapstructure:"type" yaml:"type"` // "kafka"
	Kafka      CommandKafkaConfig `mapstructure:"kafka" yaml:"kafka"`
	CommandTTL time.Duration      `mapstructure:"command_ttl" yaml:"command_ttl"`
	Target     string             `mapstructure:"target" yaml:"target"` // empty = hostname
}

// CommandKafkaConfig contains Kafka-specific command channel settings.
type CommandKafkaConfig struct {
	Brokers         []string `mapstructure:"brokers" yaml:"brokers"`
	Topic           string   `mapstructure:"topic" yaml:"topic"`
	GroupID         string   `mapstructure:"group_id" yaml:"group_id"`
	AutoOffsetReset string   `mapstructure:"auto_offset_reset" yaml:"auto_offset_reset"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `pktlive: ...`.
type configRoot struct {
	Pktlive GlobalConfig `mapstructure:"pktlive"`
}

// Load loads configuration from path. An empty path yields defaults plus
// PKTLIVE_* environment overrides.
// The YAML file uses `pktlive:` as root key; env vars use the PKTLIVE_ prefix (e.g. PKTLIVE_CAPTURE_INTERFACE).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `pktlive.` key prefix maps to `PKTLIVE_` in env vars via the key replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Pktlive

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// Every key carries the "pktlive." prefix so AutomaticEnv can see it even
// when no config file is read.
func setDefaults(v *viper.Viper) {
	v.SetDefault("pktlive.server.listen", ":5000")
	v.SetDefault("pktlive.server.read_header_timeout", "5s")
	v.SetDefault("pktlive.server.shutdown_timeout", "5s")
	v.SetDefault("pktlive.server.allowed_origins", []string{})

	v.SetDefault("pktlive.capture.interface", "")
	v.SetDefault("pktlive.capture.backend", "pcap")
	v.SetDefault("pktlive.capture.snap_len", 65535)
	v.SetDefault("pktlive.capture.promiscuous", true)
	v.SetDefault("pktlive.capture.read_timeout", "250ms")
	v.SetDefault("pktlive.capture.buffer_size_mb", 8)
	v.SetDefault("pktlive.capture.timezone_offset", core.DefaultZoneOffset)
	v.SetDefault("pktlive.capture.max_packets_per_second", 0)

	v.SetDefault("pktlive.events.queue_size", 4096)
	v.SetDefault("pktlive.events.client_buffer", 256)

	v.SetDefault("pktlive.control.socket", "/var/run/pktlive.sock")
	v.SetDefault("pktlive.control.pid_file", "")

	v.SetDefault("pktlive.command_channel.enabled", false)
	v.SetDefault("pktlive.command_channel.type", "kafka")
	v.SetDefault("pktlive.command_channel.command_ttl", "5m")
	v.SetDefault("pktlive.command_channel.target", "")
	v.SetDefault("pktlive.command_channel.kafka.brokers", []string{})
	v.SetDefault("pktlive.command_channel.kafka.topic", "")
	v.SetDefault("pktlive.command_channel.kafka.group_id", "")
	v.SetDefault("pktlive.command_channel.kafka.auto_offset_reset", "latest")

	v.SetDefault("pktlive.metrics.enabled", false)
	v.SetDefault("pktlive.metrics.listen", ":9091")
	v.SetDefault("pktlive.metrics.path", "/metrics")

	v.SetDefault("pktlive.log.level", "info")
	v.SetDefault("pktlive.log.format", "pattern")
	v.SetDefault("pktlive.log.pattern", log.DefaultPattern)
	v.SetDefault("pktlive.log.time", log.DefaultTimeLayout)
	v.SetDefault("pktlive.log.outputs.file.enabled", false)
	v.SetDefault("pktlive.log.outputs.file.filename", "/var/log/pktlive/pktlive.log")
	v.SetDefault("pktlive.log.outputs.file.max_size", 100)
	v.SetDefault("pktlive.log.outputs.file.max_age", 30)
	v.SetDefault("pktlive.log.outputs.file.max_backups", 5)
	v.SetDefault("pktlive.log.outputs.file.compress", true)
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		stringToZoneHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// stringToZoneHook decodes "+05:30" style offsets into a Zone.
func stringToZoneHook() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(Zone{}) {
			return data, nil
		}
		name := data.(string)
		loc, err := core.ParseZoneOffset(name)
		if err != nil {
			return nil, err
		}
		return Zone{Name: name, Location: loc}, nil
	}
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: log level %q (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "pattern", "json", "nested", "prefixed":
	default:
		return fmt.Errorf("%w: log format %q (must be pattern/json/nested/prefixed)", core.ErrConfigInvalid, cfg.Log.Format)
	}

	if cfg.Server.Listen == "" {
		return fmt.Errorf("%w: server.listen is required", core.ErrConfigInvalid)
	}

	switch cfg.Capture.Backend {
	case "pcap", "afpacket":
	default:
		return fmt.Errorf("%w: capture.backend %q (must be pcap/afpacket)", core.ErrConfigInvalid, cfg.Capture.Backend)
	}
	if cfg.Capture.SnapLen <= 0 {
		return fmt.Errorf("%w: capture.snap_len must be positive", core.ErrConfigInvalid)
	}
	if cfg.Capture.ReadTimeout <= 0 {
		return fmt.Errorf("%w: capture.read_timeout must be positive, it bounds stop latency", core.ErrConfigInvalid)
	}
	if cfg.Capture.MaxPacketsPerSecond < 0 {
		return fmt.Errorf("%w: capture.max_packets_per_second must not be negative", core.ErrConfigInvalid)
	}
	if cfg.Capture.TimezoneOffset.Location == nil {
		cfg.Capture.TimezoneOffset = Zone{Name: "Z", Location: time.UTC}
	}

	if cfg.Events.QueueSize <= 0 {
		return fmt.Errorf("%w: events.queue_size must be positive", core.ErrConfigInvalid)
	}
	if cfg.Events.ClientBuffer <= 0 {
		return fmt.Errorf("%w: events.client_buffer must be positive", core.ErrConfigInvalid)
	}

	if cfg.CommandChannel.Enabled {
		if cfg.CommandChannel.Type != "kafka" {
			return fmt.Errorf("%w: unsupported command_channel.type %q (only 'kafka' supported)", core.ErrConfigInvalid, cfg.CommandChannel.Type)
		}
		if len(cfg.CommandChannel.Kafka.Brokers) == 0 {
			return fmt.Errorf("%w: command_channel.kafka.brokers is required when command_channel.enabled=true", core.ErrConfigInvalid)
		}
		if cfg.CommandChannel.Kafka.Topic == "" {
			return fmt.Errorf("%w: command_channel.kafka.topic is required when command_channel.enabled=true", core.ErrConfigInvalid)
		}
		if cfg.CommandChannel.Kafka.GroupID == "" {
			cfg.CommandChannel.Kafka.GroupID = "pktlive"
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	return nil
}

// LoadDefault returns the built-in defaults with environment overrides applied.
func LoadDefault() (*GlobalConfig, error) {
	return Load("")
}
