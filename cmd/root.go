// Package cmd wires the farm-advisor command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agrisense/farm-advisor/cmd/model"
	"github.com/agrisense/farm-advisor/cmd/predict"
	"github.com/agrisense/farm-advisor/cmd/serve"
	"github.com/agrisense/farm-advisor/cmd/user"
	"github.com/agrisense/farm-advisor/internal/buildinfo"
	"github.com/agrisense/farm-advisor/internal/conf"
	"github.com/agrisense/farm-advisor/internal/logger"
)

// RootCommand creates the root command. settings is filled in by the
// persistent pre-run before any subcommand executes.
func RootCommand(build *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "farm-advisor",
		Short:         "Smart farming advisor",
		Long:          "Irrigation, pesticide, crop health and yield advice from field readings, and banana leaf disease detection from photos.",
		Version:       build.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		serve.Command(settings, build),
		predict.Command(settings),
		model.Command(settings),
		user.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		*settings = *loaded
		settings.Version = build.Version()
		settings.BuildDate = build.BuildDate()

		return initLogging(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	rootCmd.PersistentFlags().StringVar(configFile, "config", "", "Path to config.yaml (default: search ., ~/.config/farm-advisor, /etc/farm-advisor)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// initLogging installs the central logger described by settings.Logging.
func initLogging(settings *conf.Settings) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = string(logger.LogLevelDebug)
		}
	}

	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)
	return nil
}
