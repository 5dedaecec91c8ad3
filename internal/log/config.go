package log

const (
	DefaultPattern    = "%time [%level] %field %msg\n"
	DefaultTimeLayout = "2006-01-02 15:04:05.000"
)

// LoggerConfig is the log section of the daemon configuration.
type LoggerConfig struct {
	Level   string        `mapstructure:"level" yaml:"level"`
	Format  string        `mapstructure:"format" yaml:"format"` // pattern | json | nested | prefixed
	Pattern string        `mapstructure:"pattern" yaml:"pattern"`
	Time    string        `mapstructure:"time" yaml:"time"`
	Outputs OutputsConfig `mapstructure:"outputs" yaml:"outputs"`
}

// OutputsConfig lists log destinations besides stdout.
type OutputsConfig struct {
	File FileAppenderOpt `mapstructure:"file" yaml:"file"`
}
