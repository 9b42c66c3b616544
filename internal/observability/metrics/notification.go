package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics tracks outbound advisory events.
type NotificationMetrics struct {
	Sent    *prometheus.CounterVec
	Failed  *prometheus.CounterVec
	Dropped prometheus.Counter
}

// NewNotificationMetrics creates and registers notification metrics.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{
		Sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farmadvisor_notifications_sent_total",
				Help: "Notifications delivered by provider",
			},
			[]string{"provider"},
		),
		Failed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farmadvisor_notifications_failed_total",
				Help: "Notification delivery failures by provider",
			},
			[]string{"provider"},
		),
		Dropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "farmadvisor_notifications_dropped_total",
				Help: "Events dropped because the delivery queue was full",
			},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

// RecordDelivery counts one delivery attempt for provider.
func (m *NotificationMetrics) RecordDelivery(provider string, err error) {
	if err != nil {
		m.Failed.WithLabelValues(provider).Inc()
		return
	}
	m.Sent.WithLabelValues(provider).Inc()
}

// RecordDropped counts an event rejected by a full queue.
func (m *NotificationMetrics) RecordDropped() {
	m.Dropped.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Sent.Describe(ch)
	m.Failed.Describe(ch)
	ch <- m.Dropped.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Sent.Collect(ch)
	m.Failed.Collect(ch)
	ch <- m.Dropped
}
