// config.go: run settings of one detection run and their loading from flags,
// environment and an optional settings file.
package conf

import (
	"fmt"
	"time"
	_ "time/tzdata" // IANA zones for --timezone on hosts without a zoneinfo database

	"github.com/spf13/viper"

	"github.com/tphakala/anomalystream/internal/errors"
	"github.com/tphakala/anomalystream/internal/logger"
)

// Settings contains all run settings.
type Settings struct {
	Debug      bool   // true to enable debug logging and the completion summary
	Params     string // inline model parameter document (JSON)
	ParamsFile string // path to a model parameter document (JSON or YAML)
	Input      string // input CSV path, "-" or empty for stdin
	Output     string // score output path, "-" or empty for stdout
	Skip       int    // number of leading input lines to discard
	Timezone   string // zone of input timestamps: "UTC", "Local" or an IANA name
	QueueSize  int    // ingestion queue capacity

	Log     LogSettings
	Metrics MetricsSettings
	SQLite  SQLiteSettings
	MQTT    MQTTSettings
	Sentry  SentrySettings
}

// LogSettings controls diagnostic logging on stderr and to an optional file.
type LogSettings struct {
	Level string // console level: trace, debug, info, warn, error
	File  string // optional JSON log file
}

// MetricsSettings controls the Prometheus endpoint.
type MetricsSettings struct {
	Listen string // listen address, empty disables the endpoint
}

// SQLiteSettings controls the SQLite result sink.
type SQLiteSettings struct {
	Path string // database file, empty disables the sink
}

// MQTTSettings controls the MQTT result sink.
type MQTTSettings struct {
	Broker   string // broker URL, empty disables the sink
	Topic    string
	ClientID string
	Username string
	Password string
}

// SentrySettings controls error telemetry.
type SentrySettings struct {
	DSN string // empty disables telemetry
}

// NewViper returns a viper instance with defaults registered and environment
// overrides enabled.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaultConfig(v)
	bindEnv(v)
	return v
}

// Load reads the optional settings file into v, unmarshals the merged
// settings and validates them.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.FileError(fmt.Errorf("error reading settings file: %w", err), configFile)
		}
		GetLogger().Debug("settings file loaded", logger.String("path", configFile))
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling settings: %w", err)).
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Location resolves Timezone. Call after ValidateSettings.
func (s *Settings) Location() (*time.Location, error) {
	return resolveLocation(s.Timezone)
}

// LogLevel returns the console level, lowered to debug by Debug.
func (s *Settings) LogLevel() string {
	if s.Log.Level != "" {
		return s.Log.Level
	}
	if s.Debug {
		return string(logger.LogLevelDebug)
	}
	return logger.DefaultLogLevel
}

func resolveLocation(name string) (*time.Location, error) {
	switch name {
	case "", "UTC":
		return time.UTC, nil
	case "Local":
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
