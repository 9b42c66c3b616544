// Package model implements commands for checking model artifacts.
package model

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agrisense/farm-advisor/internal/app"
	"github.com/agrisense/farm-advisor/internal/conf"
	"github.com/agrisense/farm-advisor/internal/inference"
	"github.com/agrisense/farm-advisor/internal/leafscan"
)

// Command creates the model command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect and validate model files",
	}
	cmd.AddCommand(inspectCommand(settings), validateCommand(settings))
	return cmd
}

func inspectCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [model.tflite]",
		Short: "Print tensor shapes of a model and check it against the leaf classifier",
		Long:  "Print the input and output tensor shapes of a TFLite model. Without an argument the configured leaf model is inspected.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := settings.Models.Path(settings.Models.Leaf)
			if len(args) == 1 {
				path = args[0]
			}

			m, err := inference.Load(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), path, inference.Options{
				Threads: settings.Models.Threads,
			})
			if err != nil {
				return err
			}
			defer m.Close()

			return printInspection(cmd.OutOrStdout(), path, m.InputShape(), m.OutputShapes())
		},
	}
}

func printInspection(w io.Writer, path string, input []int, outputs [][]int) error {
	fmt.Fprintf(w, "Model:   %s\n", path)
	fmt.Fprintf(w, "Input:   %v\n", input)
	fmt.Fprintf(w, "Outputs: %d\n", len(outputs))
	for i, shape := range outputs {
		fmt.Fprintf(w, "  [%d] %v\n", i, shape)
	}

	if err := leafscan.CheckModel(input, outputs); err != nil {
		fmt.Fprintf(w, "Leaf classifier: incompatible (%v)\n", err)
		return err
	}
	fmt.Fprintf(w, "Leaf classifier: compatible, %d classes\n", len(leafscan.Labels))
	return nil
}

func validateCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load every configured model and check its tensor shapes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := inference.LoadRegistry(app.ModelPaths(settings.Models), inference.Options{
				Threads: settings.Models.Threads,
			})
			if err != nil {
				return err
			}
			defer registry.Close()

			result := app.CheckModels(registry)
			out := cmd.OutOrStdout()
			if result.HasIssues() {
				fmt.Fprint(out, result.Summary())
			}
			if !result.Valid {
				return fmt.Errorf("model validation failed")
			}
			fmt.Fprintf(out, "All %d models OK\n", len(registry.Names()))
			return nil
		},
	}
}
