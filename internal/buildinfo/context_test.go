package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ctx       *Context
		version   string
		buildDate string
	}{
		{"nil context", nil, "unknown", "unknown"},
		{"empty fields", &Context{}, "unknown", "unknown"},
		{"populated", &Context{Version: "v0.3.1", BuildDate: "2026-10-01T12:00:00Z"}, "v0.3.1", "2026-10-01T12:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.version, tt.ctx.GetVersion())
			assert.Equal(t, tt.buildDate, tt.ctx.GetBuildDate())
		})
	}
}

func TestContextString(t *testing.T) {
	t.Parallel()

	c := &Context{Version: "v1.2.0"}
	assert.Equal(t, "anomalystream v1.2.0 (built unknown)", c.String())
}
