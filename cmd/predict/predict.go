// Package predict implements one-shot field and leaf predictions from the command line.
package predict

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agrisense/farm-advisor/internal/advisor"
	"github.com/agrisense/farm-advisor/internal/app"
	"github.com/agrisense/farm-advisor/internal/conf"
	"github.com/agrisense/farm-advisor/internal/features"
	"github.com/agrisense/farm-advisor/internal/leafscan"
)

// Command creates the predict command and its field and leaf subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run a single prediction without starting the server",
	}
	cmd.AddCommand(fieldCommand(settings), leafCommand(settings))
	return cmd
}

type fieldFlags struct {
	reading  features.FieldReading
	alkaline bool
	sandy    bool
	chalky   bool
	clay     bool
	asJSON   bool
}

func (f *fieldFlags) toReading() features.FieldReading {
	r := f.reading
	r.Alkaline = boolToFlag(f.alkaline)
	r.Sandy = boolToFlag(f.sandy)
	r.Chalky = boolToFlag(f.chalky)
	r.Clay = boolToFlag(f.clay)
	return r
}

func boolToFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}

func fieldCommand(settings *conf.Settings) *cobra.Command {
	flags := &fieldFlags{}
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Predict irrigation, pesticide dose, crop health and yield for one reading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reading := flags.toReading()
			if err := reading.Validate(); err != nil {
				return err
			}

			advisors, err := app.NewAdvisors(settings, nil)
			if err != nil {
				return err
			}
			defer advisors.Close()

			p, err := advisors.Chain.Run(cmd.Context(), reading)
			if err != nil {
				return err
			}
			return printField(cmd.OutOrStdout(), reading, p, flags.asJSON)
		},
	}

	d := features.DefaultReading()
	f := cmd.Flags()
	f.Float64Var(&flags.reading.Moisture, "moisture", d.Moisture, "Soil moisture (0 to 1)")
	f.Float64Var(&flags.reading.Rainfall, "rainfall", d.Rainfall, "Rainfall in mm (0 to 150)")
	f.Float64Var(&flags.reading.AvgHumidity, "humidity", d.AvgHumidity, "Average humidity in % (10 to 100)")
	f.Float64Var(&flags.reading.MeanTemp, "mean-temp", d.MeanTemp, "Mean temperature in °C (5 to 45)")
	f.Float64Var(&flags.reading.MinTemp, "min-temp", d.MinTemp, "Minimum temperature in °C (0 to 40)")
	f.Float64Var(&flags.reading.MaxTemp, "max-temp", d.MaxTemp, "Maximum temperature in °C (10 to 55)")
	f.BoolVar(&flags.alkaline, "alkaline", false, "Soil is alkaline")
	f.BoolVar(&flags.sandy, "sandy", false, "Soil is sandy")
	f.BoolVar(&flags.chalky, "chalky", false, "Soil is chalky")
	f.BoolVar(&flags.clay, "clay", false, "Soil is clay")
	f.BoolVar(&flags.asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func printField(w io.Writer, r features.FieldReading, p advisor.Prediction, asJSON bool) error {
	readout := advisor.Format(r, p)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Prediction advisor.Prediction `json:"prediction"`
			Readout    advisor.Readout    `json:"readout"`
		}{p, readout})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Submitted data\t")
	for _, row := range readout.Summary {
		fmt.Fprintf(tw, "  %s\t%s\n", row.Field, row.Value)
	}
	fmt.Fprintln(tw, "\t")
	fmt.Fprintf(tw, "Irrigation needed\t%s\n", readout.Irrigation)
	fmt.Fprintf(tw, "Pesticide dose\t%s\n", readout.PesticideDose)
	fmt.Fprintf(tw, "Crop health score\t%s\n", readout.HealthScore)
	fmt.Fprintf(tw, "Expected yield\t%s\n", readout.Yield)
	return tw.Flush()
}

func leafCommand(settings *conf.Settings) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "leaf [image]",
		Short: "Diagnose a banana leaf photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("error reading image: %w", err)
			}

			advisors, err := app.NewAdvisors(settings, nil)
			if err != nil {
				return err
			}
			defer advisors.Close()

			d, err := advisors.Leaf.Diagnose(cmd.Context(), data)
			if err != nil {
				return err
			}
			return printLeaf(cmd.OutOrStdout(), d, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the diagnosis as JSON")
	return cmd
}

func printLeaf(w io.Writer, d leafscan.Diagnosis, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	fmt.Fprintln(w, d.Caption)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, label := range leafscan.Labels {
		fmt.Fprintf(tw, "  %s\t%s\n", label, d.Breakdown[label])
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w, d.Advisory)
	return nil
}
