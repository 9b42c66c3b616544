package predict

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisense/farm-advisor/internal/advisor"
	"github.com/agrisense/farm-advisor/internal/conf"
	"github.com/agrisense/farm-advisor/internal/features"
	"github.com/agrisense/farm-advisor/internal/leafscan"
)

func TestFieldFlags_SoilFlags(t *testing.T) {
	t.Parallel()

	f := &fieldFlags{reading: features.FieldReading{Moisture: 0.4}, sandy: true, clay: true}
	r := f.toReading()
	assert.InDelta(t, 0.4, r.Moisture, 1e-9)
	assert.Equal(t, 0, r.Alkaline)
	assert.Equal(t, 1, r.Sandy)
	assert.Equal(t, 0, r.Chalky)
	assert.Equal(t, 1, r.Clay)
}

func TestFieldCommand_Defaults(t *testing.T) {
	t.Parallel()

	cmd := fieldCommand(&conf.Settings{})
	require.NoError(t, cmd.Flags().Parse(nil))

	want := map[string]float64{
		"moisture":  0.2,
		"rainfall":  20,
		"humidity":  60,
		"mean-temp": 28,
		"min-temp":  20,
		"max-temp":  35,
	}
	for name, v := range want {
		got, err := cmd.Flags().GetFloat64(name)
		require.NoError(t, err, name)
		assert.InDelta(t, v, got, 1e-9, name)
	}
	assert.NoError(t, features.DefaultReading().Validate())
}

func TestPrintField_Table(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := features.FieldReading{Moisture: 0.5, Rainfall: 40, AvgHumidity: 70, MeanTemp: 24, MinTemp: 18, MaxTemp: 30}
	p := advisor.Prediction{Irrigation: 1, PesticideDose: 12.345, HealthScore: 0.8, Yield: 2100}
	require.NoError(t, printField(&buf, r, p, false))

	out := buf.String()
	assert.Contains(t, out, "Irrigation needed")
	assert.Contains(t, out, "Yes")
	assert.Contains(t, out, "12.35 ml/hectare")
	assert.Contains(t, out, "2100.00 kg/hectare")
	assert.Contains(t, out, "Average Humidity")
}

func TestPrintField_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := advisor.Prediction{Irrigation: 0, Yield: 0}
	require.NoError(t, printField(&buf, features.FieldReading{}, p, true))

	var decoded struct {
		Prediction advisor.Prediction `json:"prediction"`
		Readout    advisor.Readout    `json:"readout"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "No", decoded.Readout.Irrigation)
	assert.Len(t, decoded.Readout.Summary, 10)
}

func TestPrintLeaf(t *testing.T) {
	t.Parallel()

	d, err := leafscan.Interpret([]float32{0.1, 0.2, 0.7})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printLeaf(&buf, d, false))

	out := buf.String()
	assert.Contains(t, out, "Predicted: Banana Xanthomonas Wilt (70.0% confidence)")
	assert.Contains(t, out, "Banana Healthy")
	assert.Contains(t, out, "20.0%")
	assert.Contains(t, out, "Consider treatment")
}
