package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_Values(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ctx       *Context
		version   string
		buildDate string
	}{
		{"nil context", nil, UnknownValue, UnknownValue},
		{"empty", NewContext("", ""), UnknownValue, UnknownValue},
		{"pre-release", NewContext("1.0.0-beta.1", "2026-10-01"), "1.0.0-beta.1", "2026-10-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.version, tt.ctx.Version())
			assert.Equal(t, tt.buildDate, tt.ctx.BuildDate())
		})
	}

	assert.Equal(t, "2.1.0 (built 2026-10-01)", NewContext("2.1.0", "2026-10-01").String())
}

func TestValidationResult(t *testing.T) {
	t.Parallel()

	r := NewValidationResult()
	assert.True(t, r.Valid)
	assert.False(t, r.HasIssues())

	r.AddWarning("threads capped at 4")
	r.Check(nil)
	assert.True(t, r.Valid)
	assert.True(t, r.HasIssues())

	r.Check(assert.AnError)
	assert.False(t, r.Valid)
	assert.Equal(t, "ERROR: "+assert.AnError.Error()+"\nWARN:  threads capped at 4\n", r.Summary())
}
