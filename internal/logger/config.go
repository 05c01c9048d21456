package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Timezone   string         `yaml:"timezone" json:"timezone"`       // "UTC", "Local" or an IANA name
	Console    *ConsoleOutput `yaml:"console" json:"console"`         // console output configuration
	FileOutput *FileOutput    `yaml:"file_output" json:"file_output"` // optional JSON log file
	// ModuleLevels overrides the console level per module, e.g. {"htm": "trace"}
	ModuleLevels map[string]string `yaml:"module_levels" json:"module_levels"`
}

// ConsoleOutput represents console logging configuration.
// Console output is text without timestamps and always goes to stderr.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Level   string `yaml:"level" json:"level"`
}

// FileOutput represents file logging configuration.
// File output is JSON with RFC3339 timestamps.
type FileOutput struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Level   string `yaml:"level" json:"level"`
}

const (
	DefaultLogLevel       = "info"
	DefaultConsoleEnabled = true
)

// applyConfigDefaults fills nil sections so a zero config still logs to the console.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}

	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   DefaultLogLevel,
		}
	}
	if cfg.Console.Level == "" {
		cfg.Console.Level = DefaultLogLevel
	}

	if cfg.FileOutput != nil && cfg.FileOutput.Level == "" {
		cfg.FileOutput.Level = DefaultLogLevel
	}

	if cfg.ModuleLevels == nil {
		cfg.ModuleLevels = make(map[string]string)
	}
}
