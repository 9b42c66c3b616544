// Package leafscan diagnoses banana leaf disease from a photo.
package leafscan

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/agrisense/farm-advisor/internal/errors"
)

// Labels are the classifier outputs, in model output order.
var Labels = []string{
	"Banana Sigatoka Disease",
	"Banana Healthy",
	"Banana Xanthomonas Wilt",
}

const (
	healthyMarker   = "Healthy"
	healthyAdvisory = "✅ The banana plant appears healthy!"
)

// Diagnosis is the interpreted classifier output for one image.
type Diagnosis struct {
	Label         string            `json:"label"`
	Confidence    float64           `json:"confidence"` // percent
	Breakdown     map[string]string `json:"breakdown"`
	Probabilities []float32         `json:"probabilities"`
	Healthy       bool              `json:"healthy"`
	Advisory      string            `json:"advisory"`
	Caption       string            `json:"caption"`
}

// clone returns a copy that shares no map or slice with d.
func (d Diagnosis) clone() Diagnosis {
	d.Breakdown = maps.Clone(d.Breakdown)
	d.Probabilities = slices.Clone(d.Probabilities)
	return d
}

// NeedsTreatment reports whether the advisory recommends treatment.
func (d Diagnosis) NeedsTreatment() bool { return !d.Healthy }

// Interpret maps a probability vector to a diagnosis. The vector must have one
// entry per label. Ties resolve to the lowest index.
func Interpret(probs []float32) (Diagnosis, error) {
	if len(probs) != len(Labels) {
		return Diagnosis{}, errors.Newf("expected %d class probabilities, got %d", len(Labels), len(probs)).
			Component("leafscan").
			Category(errors.CategoryInference).
			Context("expected", len(Labels)).
			Context("actual", len(probs)).
			Build()
	}

	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}

	label := Labels[best]
	confidence := float64(probs[best]) * 100

	breakdown := make(map[string]string, len(Labels))
	for i, l := range Labels {
		breakdown[l] = fmt.Sprintf("%.1f%%", float64(probs[i])*100)
	}

	d := Diagnosis{
		Label:         label,
		Confidence:    confidence,
		Breakdown:     breakdown,
		Probabilities: append([]float32(nil), probs...),
		Healthy:       strings.Contains(label, healthyMarker),
		Caption:       fmt.Sprintf("Predicted: %s (%.1f%% confidence)", label, confidence),
	}
	if d.Healthy {
		d.Advisory = healthyAdvisory
	} else {
		d.Advisory = fmt.Sprintf("⚠️ Detected %s. Consider treatment.", label)
	}
	return d, nil
}
