// Package metrics provides Prometheus collectors for farm-advisor components.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agrisense/farm-advisor/internal/errors"
)

// AdvisorMetrics covers model inference, leaf diagnoses and the diagnosis cache.
// It satisfies inference.Recorder and leafscan.Observer.
type AdvisorMetrics struct {
	PredictionTotal    *prometheus.CounterVec
	PredictionErrors   *prometheus.CounterVec
	PredictionDuration *prometheus.HistogramVec
	ModelLoadTotal     *prometheus.CounterVec
	ModelsLoaded       prometheus.Gauge
	DiagnosisTotal     *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewAdvisorMetrics creates and registers advisor metrics.
func NewAdvisorMetrics(registry *prometheus.Registry) (*AdvisorMetrics, error) {
	m := &AdvisorMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register advisor metrics: %w", err)
	}
	return m, nil
}

func (m *AdvisorMetrics) initMetrics() {
	m.PredictionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farmadvisor_predictions_total",
			Help: "Total number of model invocations",
		},
		[]string{"model", "status"},
	)
	m.PredictionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farmadvisor_prediction_errors_total",
			Help: "Total number of failed model invocations by error category",
		},
		[]string{"model", "category"},
	)
	m.PredictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "farmadvisor_prediction_duration_seconds",
			Help:    "Time taken by a single model invocation",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~0.8s
		},
		[]string{"model"},
	)
	m.ModelLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farmadvisor_model_load_total",
			Help: "Total number of model load attempts",
		},
		[]string{"model", "status"},
	)
	m.ModelsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "farmadvisor_models_loaded",
			Help: "Number of models currently loaded",
		},
	)
	m.DiagnosisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farmadvisor_leaf_diagnoses_total",
			Help: "Total number of leaf diagnoses by predicted label",
		},
		[]string{"label"},
	)
	m.CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farmadvisor_leaf_cache_lookups_total",
			Help: "Diagnosis cache lookups by result",
		},
		[]string{"result"},
	)
}

// RecordPrediction records one model invocation.
func (m *AdvisorMetrics) RecordPrediction(model string, duration time.Duration, err error) {
	if err != nil {
		m.PredictionTotal.WithLabelValues(model, "error").Inc()
		m.PredictionErrors.WithLabelValues(model, categorizeError(err)).Inc()
		return
	}
	m.PredictionTotal.WithLabelValues(model, "success").Inc()
	m.PredictionDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordModelLoad records one model load attempt.
func (m *AdvisorMetrics) RecordModelLoad(model string, err error) {
	if err != nil {
		m.ModelLoadTotal.WithLabelValues(model, "error").Inc()
		return
	}
	m.ModelLoadTotal.WithLabelValues(model, "success").Inc()
	m.ModelsLoaded.Inc()
}

// RecordDiagnosis counts a completed leaf diagnosis.
func (m *AdvisorMetrics) RecordDiagnosis(label string) {
	m.DiagnosisTotal.WithLabelValues(label).Inc()
}

// RecordCacheLookup counts a diagnosis cache hit or miss.
func (m *AdvisorMetrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// categorizeError labels err by its error category.
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	return string(errors.CategoryOf(err))
}

// Describe implements the prometheus.Collector interface.
func (m *AdvisorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.PredictionTotal.Describe(ch)
	m.PredictionErrors.Describe(ch)
	m.PredictionDuration.Describe(ch)
	m.ModelLoadTotal.Describe(ch)
	ch <- m.ModelsLoaded.Desc()
	m.DiagnosisTotal.Describe(ch)
	m.CacheLookups.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *AdvisorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.PredictionTotal.Collect(ch)
	m.PredictionErrors.Collect(ch)
	m.PredictionDuration.Collect(ch)
	m.ModelLoadTotal.Collect(ch)
	ch <- m.ModelsLoaded
	m.DiagnosisTotal.Collect(ch)
	m.CacheLookups.Collect(ch)
}
