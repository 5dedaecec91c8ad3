package log

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileAppenderOpt configures the rotating log file (log.outputs.file).
type FileAppenderOpt struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`       // megabytes, 0 = 100
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // 0 = keep all
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`         // days, 0 = no age limit
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// AddFileAppender adds a lumberjack rotating file. The log directory is
// created when missing so a fresh host can start the daemon.
func (m *MultiWriter) AddFileAppender(opt FileAppenderOpt) error {
	if opt.Filename == "" {
		return fmt.Errorf("log file output requires 'filename'")
	}
	if err := os.MkdirAll(filepath.Dir(opt.Filename), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	m.Add(&lumberjack.Logger{
		Filename:   opt.Filename,
		MaxSize:    opt.MaxSize,
		MaxBackups: opt.MaxBackups,
		MaxAge:     opt.MaxAge,
		Compress:   opt.Compress,
		LocalTime:  true,
	})
	return nil
}
