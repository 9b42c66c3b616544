// Package notification fans advisory events out to chat services and MQTT.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agrisense/farm-advisor/internal/advisor"
	"github.com/agrisense/farm-advisor/internal/features"
	"github.com/agrisense/farm-advisor/internal/leafscan"
)

// Kind identifies what produced an event.
type Kind string

const (
	KindFieldAdvice   Kind = "field_advice"
	KindLeafDiagnosis Kind = "leaf_diagnosis"
)

// Severity of an event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Event is one advisory outcome worth telling someone about.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Severity  Severity  `json:"severity"`
	Username  string    `json:"username"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// FieldAdviceData is the payload of a KindFieldAdvice event.
type FieldAdviceData struct {
	Reading    features.FieldReading `json:"reading"`
	Prediction advisor.Prediction    `json:"prediction"`
}

// NewFieldAdviceEvent describes a completed tabular prediction.
func NewFieldAdviceEvent(username string, reading features.FieldReading, p advisor.Prediction) *Event {
	readout := advisor.Format(reading, p)
	return &Event{
		ID:        uuid.NewString(),
		Kind:      KindFieldAdvice,
		Severity:  SeverityInfo,
		Username:  username,
		Title:     "Field advice",
		Message:   fmt.Sprintf("Irrigation: %s, pesticide: %s, health: %s, yield: %s", readout.Irrigation, readout.PesticideDose, readout.HealthScore, readout.Yield),
		Timestamp: time.Now().UTC(),
		Data:      FieldAdviceData{Reading: reading, Prediction: p},
	}
}

// NewLeafDiagnosisEvent describes a leaf diagnosis. Unhealthy results are warnings.
func NewLeafDiagnosisEvent(username string, d leafscan.Diagnosis) *Event {
	severity := SeverityInfo
	if d.NeedsTreatment() {
		severity = SeverityWarning
	}
	return &Event{
		ID:        uuid.NewString(),
		Kind:      KindLeafDiagnosis,
		Severity:  severity,
		Username:  username,
		Title:     "Banana leaf: " + d.Label,
		Message:   fmt.Sprintf("%s (%.1f%% confidence)", d.Advisory, d.Confidence),
		Timestamp: time.Now().UTC(),
		Data:      d,
	}
}

// Provider delivers events to one backend. Implementations must be safe for
// concurrent use.
type Provider interface {
	Name() string
	Supports(e *Event) bool
	Send(ctx context.Context, e *Event) error
	Close() error
}

// Recorder receives delivery outcomes.
type Recorder interface {
	RecordDelivery(provider string, err error)
	RecordDropped()
}
