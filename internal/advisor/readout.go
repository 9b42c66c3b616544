package advisor

import (
	"fmt"
	"strconv"

	"github.com/agrisense/farm-advisor/internal/features"
)

// Readout is the display form of a reading and its prediction.
type Readout struct {
	Irrigation    string       `json:"irrigation"`
	PesticideDose string       `json:"pesticide_dose"`
	HealthScore   string       `json:"health_score"`
	Yield         string       `json:"yield"`
	Summary       []SummaryRow `json:"summary"`
}

// SummaryRow is one line of the submitted-reading table.
type SummaryRow struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Format renders p for display alongside a summary of the reading.
func Format(r features.FieldReading, p Prediction) Readout {
	irrigation := "No"
	if p.Irrigation == 1 {
		irrigation = "Yes"
	}
	return Readout{
		Irrigation:    irrigation,
		PesticideDose: fmt.Sprintf("%.2f ml/hectare", p.PesticideDose),
		HealthScore:   fmt.Sprintf("%.2f", p.HealthScore),
		Yield:         fmt.Sprintf("%.2f kg/hectare", p.Yield),
		Summary:       Summarize(r),
	}
}

// Summarize lists the reading under its training column names, in input order.
func Summarize(r features.FieldReading) []SummaryRow {
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []SummaryRow{
		{features.FieldMoisture, num(r.Moisture)},
		{features.FieldRainfall, num(r.Rainfall)},
		{features.FieldAvgHumidity, num(r.AvgHumidity)},
		{features.FieldMeanTemp, num(r.MeanTemp)},
		{features.FieldMinTemp, num(r.MinTemp)},
		{features.FieldMaxTemp, num(r.MaxTemp)},
		{features.FieldAlkaline, strconv.Itoa(r.Alkaline)},
		{features.FieldSandy, strconv.Itoa(r.Sandy)},
		{features.FieldChalky, strconv.Itoa(r.Chalky)},
		{features.FieldClay, strconv.Itoa(r.Clay)},
	}
}
