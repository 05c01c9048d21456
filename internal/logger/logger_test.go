package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLoggerLevels(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)

	log.Debug("hidden")
	log.Info("shown", Int("count", 3))
	log.Warn("careful")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `msg=shown`)
	assert.Contains(t, out, "count=3")
	assert.Contains(t, out, "level=WARN")
	assert.NotContains(t, out, "time=", "console records carry no timestamp")
}

func TestTraceLevelLabel(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelTrace, nil)
	log.Trace("record scored", Float64("score", 0.12345))

	out := buf.String()
	assert.Contains(t, out, "level=TRACE")
	assert.Contains(t, out, "score=0.123")
}

func TestModuleScopingAndFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	base := NewSlogLogger(buf, LogLevelDebug, nil)

	child := base.Module("htm").Module("spatial").With(String("run_id", "r1"))
	child.Debug("inhibition", Int("active", 40))

	out := buf.String()
	assert.Contains(t, out, "module=htm.spatial")
	assert.Contains(t, out, "run_id=r1")
	assert.Contains(t, out, "active=40")
}

func TestWithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, nil)

	ctx := WithTraceID(context.Background(), "run-42")
	log.WithContext(ctx).Info("started")
	log.WithContext(context.Background()).Info("no trace")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "trace_id=run-42")
	assert.NotContains(t, lines[1], "trace_id")
}

func TestErrorField(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "boom", Error(fmt.Errorf("boom")).Value)
	assert.Nil(t, Error(nil).Value)
	assert.Equal(t, "error", Error(nil).Key)
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "run.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		Timezone:   "UTC",
		Console:    &ConsoleOutput{Enabled: false},
		FileOutput: &FileOutput{Enabled: true, Path: path, Level: "debug"},
	})
	require.NoError(t, err)

	log := cl.Module("analysis")
	log.Debug("record pushed", Int64("record", 7))
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "record pushed", rec["msg"])
	assert.Equal(t, "analysis", rec["module"])
	assert.Equal(t, "DEBUG", rec["level"])
	assert.InDelta(t, 7, rec["record"], 0)
}

func TestCentralLoggerModuleLevels(t *testing.T) {
	t.Parallel()

	cl, err := NewCentralLogger(&LoggingConfig{
		Console:      &ConsoleOutput{Enabled: true, Level: "warn"},
		ModuleLevels: map[string]string{"htm": "trace"},
	})
	require.NoError(t, err)

	htm, ok := cl.Module("htm").(*moduleLogger)
	require.True(t, ok)
	assert.Equal(t, traceLevelValue, htm.level)

	other, ok := cl.Module("pipeline").(*moduleLogger)
	require.True(t, ok)
	assert.Equal(t, parseLogLevel("warn"), other.level)
}

func TestCentralLoggerInvalidTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)

	_, err = NewCentralLogger(nil)
	require.Error(t, err)
}

func TestValidLevel(t *testing.T) {
	t.Parallel()

	for _, lvl := range []string{"trace", "debug", "info", "warn", "error"} {
		assert.True(t, ValidLevel(lvl), lvl)
	}
	assert.False(t, ValidLevel("verbose"))
}
