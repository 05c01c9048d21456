package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/anomalystream/internal/errors"
)

func validSettings() *Settings {
	return &Settings{
		Input:     StdStream,
		Output:    StdStream,
		Timezone:  DefaultTimezone,
		QueueSize: DefaultQueueSize,
		MQTT:      MQTTSettings{Topic: DefaultMQTTTopic},
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"defaults", func(*Settings) {}, ""},
		{"local timezone", func(s *Settings) { s.Timezone = "Local" }, ""},
		{"iana timezone", func(s *Settings) { s.Timezone = "America/New_York" }, ""},
		{"negative skip", func(s *Settings) { s.Skip = -1 }, "skip must not be negative"},
		{"zero queue", func(s *Settings) { s.QueueSize = 0 }, "queue size must be positive"},
		{"unknown timezone", func(s *Settings) { s.Timezone = "Mars/Olympus" }, "unknown timezone"},
		{"unknown log level", func(s *Settings) { s.Log.Level = "loud" }, "unknown log level"},
		{"trace level", func(s *Settings) { s.Log.Level = "trace" }, ""},
		{"broker", func(s *Settings) { s.MQTT.Broker = "tcp://localhost:1883" }, ""},
		{"broker without scheme", func(s *Settings) { s.MQTT.Broker = "localhost:1883" }, "malformed MQTT broker URL"},
		{"broker bad scheme", func(s *Settings) { s.MQTT.Broker = "http://localhost:1883" }, "malformed MQTT broker URL"},
		{"empty topic", func(s *Settings) { s.MQTT.Broker = "tcp://localhost:1883"; s.MQTT.Topic = "" }, "MQTT topic"},
		{"listen address", func(s *Settings) { s.Metrics.Listen = ":9090" }, ""},
		{"bad listen address", func(s *Settings) { s.Metrics.Listen = "9090" }, "invalid metrics listen address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestValidateSettingsCollectsAllProblems(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Skip = -2
	s.QueueSize = -1
	s.Timezone = "Nowhere/Special"

	err := ValidateSettings(s)
	require.Error(t, err)

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors, 3)
}
