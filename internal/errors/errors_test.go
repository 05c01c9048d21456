package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestTaxonomyHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"config", ConfigError("modelParams.spParams.maxBoost", fmt.Errorf("not a number")), IsConfigError},
		{"pipeline", PipelineError(fmt.Errorf("width mismatch")), IsPipelineError},
		{"file", FileError(fmt.Errorf("permission denied"), "/tmp/in.csv"), IsIOError},
		{"stream", StreamError(fmt.Errorf("bad value"), 3, 5), IsStreamError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.True(t, tt.check(tt.err))
			wrapped := fmt.Errorf("run failed: %w", tt.err)
			assert.True(t, tt.check(wrapped), "category must survive fmt wrapping")
		})
	}

	assert.False(t, IsConfigError(fmt.Errorf("plain")))
}

func TestConfigErrorCarriesPath(t *testing.T) {
	t.Parallel()

	err := ConfigError("modelParams.tpParams.seed", fmt.Errorf("expected integer"))
	assert.Equal(t, "modelParams.tpParams.seed", err.GetContext()["path"])
}

func TestStreamErrorContext(t *testing.T) {
	t.Parallel()

	err := StreamError(fmt.Errorf("boom"), 7, 9)
	ctx := err.GetContext()
	assert.Equal(t, int64(7), ctx["record"])
	assert.Equal(t, 9, ctx["line"])

	noLine := StreamError(fmt.Errorf("boom"), 0, 0)
	_, hasLine := noLine.GetContext()["line"]
	assert.False(t, hasLine)
}

func TestRewrapKeepsCategory(t *testing.T) {
	t.Parallel()

	inner := StreamError(fmt.Errorf("bad"), 1, 2)
	outer := New(fmt.Errorf("pipeline terminated: %w", inner)).Component("analysis").Build()
	assert.Equal(t, CategoryStream, outer.Category)
}

type countingReporter struct {
	reported []*EnhancedError
}

func (r *countingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *countingReporter) IsEnabled() bool { return true }

func TestTelemetryReporterReceivesErrors(t *testing.T) {
	reporter := &countingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(fmt.Errorf("reported")).Category(CategoryPipeline).Build()

	require.Len(t, reporter.reported, 1)
	assert.Same(t, ee, reporter.reported[0])
	assert.True(t, ee.IsReported())
}

func TestScrubMessage(t *testing.T) {
	t.Parallel()

	scrubbed := scrubMessage("open /home/alice/data/input.csv: permission denied")
	assert.Equal(t, "open [PATH]/input.csv: permission denied", scrubbed)
	assert.NotContains(t, scrubbed, "alice")
}

func TestEnableSentryWithoutDSN(t *testing.T) {
	cleanup, err := EnableSentry("", "test")
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, GetTelemetryReporter())
}
