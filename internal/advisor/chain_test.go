package advisor

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/features"
)

// callLog records the order in which stages run and what they received.
type callLog struct {
	mu     sync.Mutex
	order  []string
	inputs map[string][]float32
}

func (l *callLog) record(stage string, input []float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inputs == nil {
		l.inputs = make(map[string][]float32)
	}
	l.order = append(l.order, stage)
	l.inputs[stage] = append([]float32(nil), input...)
}

type stubPredictor struct {
	stage string
	value float32
	err   error
	log   *callLog
}

func (s *stubPredictor) Predict(_ context.Context, input []float32) (float32, error) {
	s.log.record(s.stage, input)
	return s.value, s.err
}

func newStubChain(log *callLog, irrigation, dose, health, yield float32) *Chain {
	return &Chain{
		Irrigation: &stubPredictor{stage: "irrigation", value: irrigation, log: log},
		Pesticide:  &stubPredictor{stage: "pesticide", value: dose, log: log},
		Health:     &stubPredictor{stage: "health", value: health, log: log},
		Yield:      &stubPredictor{stage: "yield", value: yield, log: log},
	}
}

func scenarioReading() features.FieldReading {
	return features.FieldReading{Moisture: 0.2, Rainfall: 20.0, AvgHumidity: 60, MeanTemp: 28, MinTemp: 20, MaxTemp: 35}
}

func TestChain_ScenarioOrderAndThreading(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	chain := newStubChain(log, 1, 42.5, 0.8, 3100)

	p, err := chain.Run(context.Background(), scenarioReading())
	require.NoError(t, err)

	assert.Equal(t, []string{"irrigation", "pesticide", "health", "yield"}, log.order)
	assert.Equal(t, []float32{0.2, 20.0, 60, 28}, log.inputs["irrigation"])

	yieldInput := log.inputs["yield"]
	require.Len(t, yieldInput, 12)
	assert.InDelta(t, 42.5, yieldInput[10], 1e-6, "pesticide_dose comes from the pesticide stage")
	assert.InDelta(t, 0.8, yieldInput[11], 1e-6, "crop_health_score comes from the health stage")

	assert.Equal(t, Prediction{Irrigation: 1, PesticideDose: 42.5, HealthScore: float64(float32(0.8)), Yield: 3100}, p)
	assert.GreaterOrEqual(t, p.Yield, 0.0)
}

func TestChain_YieldClampedAtZero(t *testing.T) {
	t.Parallel()

	for _, raw := range []float32{-0.001, -250, 0} {
		chain := newStubChain(&callLog{}, 0, 1, 1, raw)
		p, err := chain.Run(context.Background(), scenarioReading())
		require.NoError(t, err)
		assert.Zero(t, p.Yield, "raw %v", raw)
	}
}

func TestChain_IrrigationThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  float32
		want int
	}{
		{0, 0}, {0.49, 0}, {0.5, 1}, {1, 1},
	}
	for _, tt := range tests {
		chain := newStubChain(&callLog{}, tt.raw, 0, 0, 0)
		p, err := chain.Run(context.Background(), scenarioReading())
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.Irrigation, "raw %v", tt.raw)
	}
}

func TestChain_StageFailureAborts(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	chain := newStubChain(log, 0, 1, 1, 1)
	chain.Health.(*stubPredictor).err = assert.AnError

	p, err := chain.Run(context.Background(), scenarioReading())
	require.Error(t, err)
	assert.Equal(t, Prediction{}, p, "no partial prediction")
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, errors.IsCategory(err, errors.CategoryProcessing))
	assert.Contains(t, err.Error(), "health stage failed")
	assert.NotContains(t, log.order, "yield")
}

type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) Predict(ctx context.Context, input []float32) (float32, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(float32), args.Error(1)
}

func TestChain_MissingStage(t *testing.T) {
	t.Parallel()

	irrigation := &mockPredictor{}
	irrigation.On("Predict", mock.Anything, mock.Anything).Return(float32(0), nil).Once()
	chain := &Chain{Irrigation: irrigation}

	_, err := chain.Run(context.Background(), scenarioReading())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pesticide predictor is not configured")
	irrigation.AssertExpectations(t)
}

func TestChain_RejectsNonFiniteOutput(t *testing.T) {
	t.Parallel()

	chain := newStubChain(&callLog{}, 0, float32(math.NaN()), 1, 1)
	_, err := chain.Run(context.Background(), scenarioReading())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pesticide stage produced a non-finite value")
}

func TestFormat(t *testing.T) {
	t.Parallel()

	r := scenarioReading()
	r.Clay = 1
	out := Format(r, Prediction{Irrigation: 1, PesticideDose: 12.346, HealthScore: 0.5, Yield: 2500})

	assert.Equal(t, "Yes", out.Irrigation)
	assert.Equal(t, "12.35 ml/hectare", out.PesticideDose)
	assert.Equal(t, "0.50", out.HealthScore)
	assert.Equal(t, "2500.00 kg/hectare", out.Yield)
	require.Len(t, out.Summary, 10)
	assert.Equal(t, SummaryRow{"Moisture", "0.2"}, out.Summary[0])
	assert.Equal(t, SummaryRow{"clay", "1"}, out.Summary[9])

	assert.Equal(t, "No", Format(r, Prediction{}).Irrigation)
}
