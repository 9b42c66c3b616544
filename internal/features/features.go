// Package features turns raw field readings into the ordered feature views the
// tabular models were trained on.
package features

import (
	"fmt"
	"slices"
	"strings"

	"github.com/agrisense/farm-advisor/internal/errors"
)

// Model names, shared with the inference registry.
const (
	ModelIrrigation = "irrigation"
	ModelPesticide  = "pesticide"
	ModelHealth     = "health"
	ModelYield      = "yield"
)

// Training column names. Spelling and case follow the training data and must not change.
const (
	FieldMoisture      = "Moisture"
	FieldRainfall      = "rainfall"
	FieldAvgHumidity   = "Average Humidity"
	FieldMeanTemp      = "Mean Temp"
	FieldMinTemp       = "Min temp"
	FieldMaxTemp       = "max Temp"
	FieldAlkaline      = "alkaline"
	FieldSandy         = "sandy"
	FieldChalky        = "chalky"
	FieldClay          = "clay"
	FieldPesticideDose = "pesticide_dose"
	FieldHealthScore   = "crop_health_score"
)

// Schemas lists the ordered input columns of every tabular model.
var Schemas = map[string][]string{
	ModelIrrigation: {FieldMoisture, FieldRainfall, FieldAvgHumidity, FieldMeanTemp},
	ModelPesticide:  {FieldMoisture, FieldRainfall, FieldAvgHumidity, FieldMeanTemp, FieldAlkaline, FieldSandy, FieldClay},
	ModelHealth:     {FieldMoisture, FieldAvgHumidity, FieldMeanTemp, FieldAlkaline, FieldSandy, FieldClay},
	ModelYield: {
		FieldMoisture, FieldRainfall, FieldAvgHumidity, FieldMeanTemp, FieldMinTemp, FieldMaxTemp,
		FieldAlkaline, FieldSandy, FieldChalky, FieldClay, FieldPesticideDose, FieldHealthScore,
	},
}

// FieldReading is one set of soil and weather readings submitted by a user.
// Soil flags are 0 or 1.
type FieldReading struct {
	Moisture    float64 `json:"moisture"`
	Rainfall    float64 `json:"rainfall"`
	AvgHumidity float64 `json:"avg_humidity"`
	MeanTemp    float64 `json:"mean_temp"`
	MinTemp     float64 `json:"min_temp"`
	MaxTemp     float64 `json:"max_temp"`
	Alkaline    int     `json:"alkaline"`
	Sandy       int     `json:"sandy"`
	Chalky      int     `json:"chalky"`
	Clay        int     `json:"clay"`
}

// DefaultReading is the reading a new form starts from: fairly dry soil on a
// warm day with light rain.
func DefaultReading() FieldReading {
	return FieldReading{
		Moisture:    0.2,
		Rainfall:    20,
		AvgHumidity: 60,
		MeanTemp:    28,
		MinTemp:     20,
		MaxTemp:     35,
	}
}

// View is a named, ordered subset of a reading, ready to feed one model.
type View struct {
	Name   string
	Fields []string
	Values []float32
}

// Len returns the number of features in the view.
func (v View) Len() int { return len(v.Values) }

// Value returns the value of field, or false if the view does not carry it.
func (v View) Value(field string) (float32, bool) {
	for i, f := range v.Fields {
		if f == field {
			return v.Values[i], true
		}
	}
	return 0, false
}

func (v View) String() string {
	parts := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		parts[i] = fmt.Sprintf("%s=%g", f, v.Values[i])
	}
	return v.Name + "{" + strings.Join(parts, ", ") + "}"
}

// Views holds the three views that only depend on the reading itself.
type Views struct {
	Irrigation View
	Pesticide  View
	Health     View
}

// Assemble builds the irrigation, pesticide and health views for r.
// The yield view needs prior predictions and is built by YieldView.
func Assemble(r FieldReading) Views {
	values := r.columns()
	return Views{
		Irrigation: build(ModelIrrigation, values),
		Pesticide:  build(ModelPesticide, values),
		Health:     build(ModelHealth, values),
	}
}

// YieldView builds the yield view, appending the pesticide dose and health score
// predicted earlier in the chain.
func YieldView(r FieldReading, pesticideDose, healthScore float64) View {
	values := r.columns()
	values[FieldPesticideDose] = float32(pesticideDose)
	values[FieldHealthScore] = float32(healthScore)
	return build(ModelYield, values)
}

func (r FieldReading) columns() map[string]float32 {
	return map[string]float32{
		FieldMoisture:    float32(r.Moisture),
		FieldRainfall:    float32(r.Rainfall),
		FieldAvgHumidity: float32(r.AvgHumidity),
		FieldMeanTemp:    float32(r.MeanTemp),
		FieldMinTemp:     float32(r.MinTemp),
		FieldMaxTemp:     float32(r.MaxTemp),
		FieldAlkaline:    float32(r.Alkaline),
		FieldSandy:       float32(r.Sandy),
		FieldChalky:      float32(r.Chalky),
		FieldClay:        float32(r.Clay),
	}
}

func build(model string, values map[string]float32) View {
	schema := Schemas[model]
	v := View{
		Name:   model,
		Fields: append([]string(nil), schema...),
		Values: make([]float32, len(schema)),
	}
	for i, f := range schema {
		v.Values[i] = values[f]
	}
	return v
}

// Range is an inclusive bound on a reading.
type Range struct {
	Min, Max float64
}

// Ranges are the bounds offered by the dashboard sliders.
var Ranges = map[string]Range{
	"moisture":     {0, 1},
	"rainfall":     {0, 150},
	"avg_humidity": {10, 100},
	"mean_temp":    {5, 45},
	"min_temp":     {0, 40},
	"max_temp":     {10, 55},
}

// Validate checks r against Ranges and the 0/1 soil flags. All violations are
// reported together in one validation error.
func (r FieldReading) Validate() error {
	var problems []string

	check := func(name string, v float64) {
		bound := Ranges[name]
		if v < bound.Min || v > bound.Max {
			problems = append(problems, fmt.Sprintf("%s must be between %g and %g, got %g", name, bound.Min, bound.Max, v))
		}
	}
	check("moisture", r.Moisture)
	check("rainfall", r.Rainfall)
	check("avg_humidity", r.AvgHumidity)
	check("mean_temp", r.MeanTemp)
	check("min_temp", r.MinTemp)
	check("max_temp", r.MaxTemp)

	for name, flag := range map[string]int{"alkaline": r.Alkaline, "sandy": r.Sandy, "chalky": r.Chalky, "clay": r.Clay} {
		if flag != 0 && flag != 1 {
			problems = append(problems, fmt.Sprintf("%s must be 0 or 1, got %d", name, flag))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	// flag order comes from map iteration
	slices.Sort(problems)
	return errors.Newf("invalid field reading: %s", strings.Join(problems, "; ")).
		Component("features").
		Category(errors.CategoryValidation).
		Context("violations", len(problems)).
		Build()
}
