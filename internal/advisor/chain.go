// Package advisor runs the tabular prediction chain and formats its results.
package advisor

import (
	"context"
	"math"
	"time"

	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/features"
	"github.com/agrisense/farm-advisor/internal/inference"
	"github.com/agrisense/farm-advisor/internal/logger"
)

// IrrigationThreshold maps the irrigation model's raw output to a class.
const IrrigationThreshold = 0.5

// Prediction is the result of one full chain run.
type Prediction struct {
	Irrigation    int     `json:"irrigation"`
	PesticideDose float64 `json:"pesticide_dose"`
	HealthScore   float64 `json:"health_score"`
	Yield         float64 `json:"yield"`
}

// Chain runs irrigation, pesticide, health and yield in that order. Yield
// consumes the pesticide and health outputs, so it always runs last.
type Chain struct {
	Irrigation inference.Predictor
	Pesticide  inference.Predictor
	Health     inference.Predictor
	Yield      inference.Predictor
}

// NewChain wires a chain to the tabular models in registry.
func NewChain(registry *inference.Registry) (*Chain, error) {
	get := func(name string) (inference.Predictor, error) {
		return registry.Get(name)
	}

	c := &Chain{}
	var err error
	if c.Irrigation, err = get(features.ModelIrrigation); err != nil {
		return nil, err
	}
	if c.Pesticide, err = get(features.ModelPesticide); err != nil {
		return nil, err
	}
	if c.Health, err = get(features.ModelHealth); err != nil {
		return nil, err
	}
	if c.Yield, err = get(features.ModelYield); err != nil {
		return nil, err
	}
	return c, nil
}

// Run executes the chain for one reading. Any stage failure aborts the run and
// no partial prediction is returned.
func (c *Chain) Run(ctx context.Context, reading features.FieldReading) (Prediction, error) {
	start := time.Now()
	views := features.Assemble(reading)

	irrigationRaw, err := c.stage(ctx, c.Irrigation, views.Irrigation)
	if err != nil {
		return Prediction{}, err
	}
	dose, err := c.stage(ctx, c.Pesticide, views.Pesticide)
	if err != nil {
		return Prediction{}, err
	}
	health, err := c.stage(ctx, c.Health, views.Health)
	if err != nil {
		return Prediction{}, err
	}

	yieldView := features.YieldView(reading, float64(dose), float64(health))
	yieldRaw, err := c.stage(ctx, c.Yield, yieldView)
	if err != nil {
		return Prediction{}, err
	}

	p := Prediction{
		Irrigation:    classify(irrigationRaw),
		PesticideDose: float64(dose),
		HealthScore:   float64(health),
		Yield:         math.Max(0, float64(yieldRaw)),
	}

	GetLogger().Debug("Chain completed",
		logger.Int("irrigation", p.Irrigation),
		logger.Float64("pesticide_dose", p.PesticideDose),
		logger.Float64("health_score", p.HealthScore),
		logger.Float64("yield", p.Yield),
		logger.Duration("elapsed", time.Since(start)))
	return p, nil
}

func (c *Chain) stage(ctx context.Context, p inference.Predictor, view features.View) (float32, error) {
	if p == nil {
		return 0, errors.Newf("%s predictor is not configured", view.Name).
			Component("advisor").
			Category(errors.CategoryProcessing).
			Context("stage", view.Name).
			Build()
	}

	start := time.Now()
	v, err := p.Predict(ctx, view.Values)
	if err != nil {
		return 0, errors.Newf("%s stage failed: %w", view.Name, err).
			Component("advisor").
			Category(errors.CategoryProcessing).
			Context("stage", view.Name).
			Timing("predict", time.Since(start)).
			Build()
	}
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return 0, errors.Newf("%s stage produced a non-finite value", view.Name).
			Component("advisor").
			Category(errors.CategoryProcessing).
			Context("stage", view.Name).
			Build()
	}
	return v, nil
}

func classify(raw float32) int {
	if raw >= IrrigationThreshold {
		return 1
	}
	return 0
}
