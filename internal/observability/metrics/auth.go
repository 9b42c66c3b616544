package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AuthMetrics counts login and sign-up outcomes. It satisfies auth.Observer.
type AuthMetrics struct {
	LoginAttempts  *prometheus.CounterVec
	SignUpAttempts *prometheus.CounterVec
}

// NewAuthMetrics creates and registers authentication metrics.
func NewAuthMetrics(registry *prometheus.Registry) (*AuthMetrics, error) {
	m := &AuthMetrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farmadvisor_login_attempts_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		SignUpAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farmadvisor_signup_attempts_total",
				Help: "Sign-up attempts by result",
			},
			[]string{"result"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register auth metrics: %w", err)
	}
	return m, nil
}

func (m *AuthMetrics) RecordLogin(result string)  { m.LoginAttempts.WithLabelValues(result).Inc() }
func (m *AuthMetrics) RecordSignUp(result string) { m.SignUpAttempts.WithLabelValues(result).Inc() }

// Describe implements the prometheus.Collector interface.
func (m *AuthMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.LoginAttempts.Describe(ch)
	m.SignUpAttempts.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *AuthMetrics) Collect(ch chan<- prometheus.Metric) {
	m.LoginAttempts.Collect(ch)
	m.SignUpAttempts.Collect(ch)
}
