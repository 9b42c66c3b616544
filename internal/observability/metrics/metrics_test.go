package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisense/farm-advisor/internal/errors"
)

func findFamily(t *testing.T, registry *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric family %s not found", name)
	return nil
}

func TestAdvisorMetrics_RecordPrediction(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewAdvisorMetrics(registry)
	require.NoError(t, err)

	m.RecordPrediction("yield", 3*time.Millisecond, nil)
	m.RecordPrediction("yield", time.Millisecond, errors.New(errors.NewStd("bad input")).Category(errors.CategoryInference).Build())

	assert.InDelta(t, 1, testutil.ToFloat64(m.PredictionTotal.WithLabelValues("yield", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PredictionErrors.WithLabelValues("yield", "inference")), 0)

	hist := findFamily(t, registry, "farmadvisor_prediction_duration_seconds")
	require.Len(t, hist.GetMetric(), 1)
	assert.Equal(t, uint64(1), hist.GetMetric()[0].GetHistogram().GetSampleCount(), "failed calls are not timed")
}

func TestAdvisorMetrics_LeafAndLoads(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewAdvisorMetrics(registry)
	require.NoError(t, err)

	m.RecordModelLoad("leaf", nil)
	m.RecordModelLoad("yield", nil)
	m.RecordModelLoad("health", assert.AnError)
	m.RecordDiagnosis("Banana Healthy")
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)

	assert.InDelta(t, 2, testutil.ToFloat64(m.ModelsLoaded), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ModelLoadTotal.WithLabelValues("health", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DiagnosisTotal.WithLabelValues("Banana Healthy")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")), 0)
}

func TestAuthAndNotificationMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	a, err := NewAuthMetrics(registry)
	require.NoError(t, err)
	n, err := NewNotificationMetrics(registry)
	require.NoError(t, err)

	a.RecordLogin("invalid")
	a.RecordSignUp("success")
	n.RecordDelivery("mqtt", nil)
	n.RecordDelivery("shoutrrr", assert.AnError)
	n.RecordDropped()

	assert.InDelta(t, 1, testutil.ToFloat64(a.LoginAttempts.WithLabelValues("invalid")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(n.Sent.WithLabelValues("mqtt")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(n.Failed.WithLabelValues("shoutrrr")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(n.Dropped), 0)
}

func TestHTTPMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(registry)
	require.NoError(t, err)

	m.RecordRequest("POST", "/api/v1/advice/field", 200, 10*time.Millisecond)
	family := findFamily(t, registry, "farmadvisor_http_requests_total")
	require.Len(t, family.GetMetric(), 1)

	labels := map[string]string{}
	for _, lp := range family.GetMetric()[0].GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	assert.Equal(t, map[string]string{"method": "POST", "route": "/api/v1/advice/field", "status": "200"}, labels)
}

func TestDoubleRegistrationFails(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewAuthMetrics(registry)
	require.NoError(t, err)
	_, err = NewAuthMetrics(registry)
	assert.Error(t, err)
}
