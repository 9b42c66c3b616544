// Package serve implements the serve command.
package serve

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/agrisense/farm-advisor/internal/api"
	v1 "github.com/agrisense/farm-advisor/internal/api/v1"
	"github.com/agrisense/farm-advisor/internal/app"
	"github.com/agrisense/farm-advisor/internal/buildinfo"
	"github.com/agrisense/farm-advisor/internal/conf"
	"github.com/agrisense/farm-advisor/internal/logger"
	"github.com/agrisense/farm-advisor/internal/observability"
	"github.com/agrisense/farm-advisor/internal/security"
)

const notifierDrainTimeout = 10 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Load the models, open the credential store, seed the default account and serve the JSON API until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings, build)
		},
	}
}

func run(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	log := logger.Global().Module("serve")
	log.Info("Starting farm-advisor",
		logger.String("version", build.Version()),
		logger.String("build_date", build.BuildDate()))

	if err := app.InitTelemetry(settings, build); err != nil {
		log.Warn("Error telemetry disabled", logger.Error(err))
	}
	defer app.FlushTelemetry(settings)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	advisors, err := app.NewAdvisors(settings, metrics)
	if err != nil {
		return err
	}
	defer advisors.Close()
	log.Info("Models loaded", logger.Any("models", advisors.Models.Names()))

	authService, store, err := app.OpenAuth(ctx, settings, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close credential store", logger.Error(err))
		}
	}()

	if err := app.Seed(ctx, authService, settings.Seed); err != nil {
		return err
	}

	notifier := app.NewNotifier(settings, metrics)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), notifierDrainTimeout)
		defer cancel()
		if err := notifier.Close(drainCtx); err != nil {
			log.Warn("Notification dispatcher did not drain cleanly", logger.Error(err))
		}
	}()

	sessions := security.NewSessionManager(
		settings.Security.SessionSecret,
		settings.Security.SessionMaxAge,
		settings.Security.SecureCookies)

	srv, err := api.New(api.ConfigFromSettings(settings),
		api.WithDependencies(v1.Dependencies{
			Advisor:  advisors.Chain,
			Leaf:     advisors.Leaf,
			Auth:     authService,
			Sessions: sessions,
			Notifier: notifier,
		}),
		api.WithMetrics(metrics),
		api.WithModelNames(advisors.Models.Names),
		api.WithVersion(build.Version()),
	)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
