package errors

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu       sync.Mutex
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(err *EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reported = append(r.reported, err)
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestBuilder_SetsMetadata(t *testing.T) {
	t.Parallel()

	base := NewStd("tensor allocation failed")
	err := New(base).
		Component("inference").
		Category(CategoryModelInit).
		Priority(PriorityHigh).
		ModelContext("/var/lib/models/leaf.tflite", "leaf").
		Timing("model-init", 25*time.Millisecond).
		Build()

	assert.Equal(t, "tensor allocation failed", err.Error())
	assert.Equal(t, "inference", err.Component)
	assert.Equal(t, CategoryModelInit, err.Category)
	assert.Equal(t, PriorityHigh, err.Priority)

	ctx := err.GetContext()
	assert.Equal(t, "leaf.tflite", ctx["model_file"])
	assert.Equal(t, "leaf", ctx["model"])
	assert.Equal(t, "model-init", ctx["operation"])
	assert.Equal(t, int64(25), ctx["duration_ms"])

	assert.True(t, Is(err, base))
}

func TestBuilder_Defaults(t *testing.T) {
	t.Parallel()

	err := Newf("something odd: %d", 7).Priority("bogus").Build()
	assert.Equal(t, ComponentUnknown, err.Component)
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.Equal(t, PriorityMedium, err.Priority)
}

func TestBuilder_InheritsWrappedCategory(t *testing.T) {
	t.Parallel()

	inner := New(NewStd("duplicate key")).Category(CategoryConflict).Build()
	outer := New(fmt.Errorf("insert user: %w", inner)).Build()

	assert.Equal(t, CategoryConflict, outer.Category)
	assert.True(t, IsCategory(outer, CategoryConflict))
	assert.Equal(t, CategoryConflict, CategoryOf(fmt.Errorf("handler: %w", outer)))
}

func TestIsCategoryHelpers(t *testing.T) {
	t.Parallel()

	notFound := New(NewStd("user not found")).Category(CategoryNotFound).Build()
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(NewStd("plain")))
	assert.Equal(t, CategoryGeneric, CategoryOf(NewStd("plain")))

	v := ValidationError("moisture out of range")
	assert.True(t, IsCategory(v, CategoryValidation))
}

func TestFileContext(t *testing.T) {
	t.Parallel()

	err := New(NewStd("decode failed")).FileContext("upload.JPG", 2048).Build()
	ctx := err.GetContext()
	assert.Equal(t, "jpg", ctx["file_extension"])
	assert.Equal(t, "small", ctx["file_size_category"])
}

// Not parallel: swaps the global reporter.
func TestTelemetryReporter_FastPathAndActive(t *testing.T) {
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	SetTelemetryReporter(nil)
	_ = New(NewStd("ignored")).Build()

	rec := &recordingReporter{}
	SetTelemetryReporter(rec)
	built := New(NewStd("reported")).Category(CategoryInference).Build()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.reported, 1)
	assert.Same(t, built, rec.reported[0])
}

func TestScrubMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"query string", "GET https://host/path?key=abc failed", "GET https://host/path?[REDACTED] failed"},
		{"url credentials", "dial mongodb://user:pw@db:27017/x", "dial mongodb://[REDACTED]@db:27017/x"},
		{"password pair", "login password=hunter2 rejected", "login password=[REDACTED] rejected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, scrubMessage(tt.in))
		})
	}
}

func TestSentryReporter_SkipsUserFacingCategories(t *testing.T) {
	t.Parallel()

	assert.False(t, isReportable(CategoryValidation))
	assert.False(t, isReportable(CategoryAuth))
	assert.True(t, isReportable(CategoryModelLoad))

	disabled := NewSentryReporter(false)
	ee := New(NewStd("x")).Category(CategoryModelLoad).Build()
	disabled.ReportError(ee)
	assert.False(t, ee.IsReported())
}
