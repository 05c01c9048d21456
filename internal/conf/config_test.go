package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/anomalystream/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	s, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.False(t, s.Debug)
	assert.Equal(t, StdStream, s.Input)
	assert.Equal(t, StdStream, s.Output)
	assert.Zero(t, s.Skip)
	assert.Equal(t, DefaultTimezone, s.Timezone)
	assert.Equal(t, DefaultQueueSize, s.QueueSize)
	assert.Equal(t, DefaultMQTTTopic, s.MQTT.Topic)
	assert.Equal(t, DefaultClientID, s.MQTT.ClientID)
	assert.Empty(t, s.MQTT.Broker)
	assert.Empty(t, s.SQLite.Path)
	assert.Empty(t, s.Metrics.Listen)
	assert.Equal(t, "info", s.LogLevel())

	loc, err := s.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadSettingsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
debug: true
skip: 1
timezone: Europe/Helsinki
queuesize: 64
log:
  file: run.log
sqlite:
  path: scores.db
mqtt:
  broker: tcp://localhost:1883
  topic: nab/scores
`), 0o600))

	s, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.True(t, s.Debug)
	assert.Equal(t, 1, s.Skip)
	assert.Equal(t, 64, s.QueueSize)
	assert.Equal(t, "run.log", s.Log.File)
	assert.Equal(t, "scores.db", s.SQLite.Path)
	assert.Equal(t, "tcp://localhost:1883", s.MQTT.Broker)
	assert.Equal(t, "nab/scores", s.MQTT.Topic)
	assert.Equal(t, "debug", s.LogLevel(), "debug lowers the console level")

	loc, err := s.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Helsinki", loc.String())
}

func TestLoadMissingSettingsFile(t *testing.T) {
	t.Parallel()

	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ANOMALYSTREAM_QUEUESIZE", "16")
	t.Setenv("ANOMALYSTREAM_MQTT_BROKER", "ssl://broker.example:8883")
	t.Setenv("ANOMALYSTREAM_LOG_LEVEL", "warn")

	s, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, 16, s.QueueSize)
	assert.Equal(t, "ssl://broker.example:8883", s.MQTT.Broker)
	assert.Equal(t, "warn", s.LogLevel())
}

func TestFlagValuesWinOverFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("skip: 3\n"), 0o600))

	v := NewViper()
	v.Set("skip", 5)
	s, err := Load(v, path)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Skip)
}
