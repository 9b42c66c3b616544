// Package app assembles the long-lived services shared by the serve and
// one-shot commands: models, the credential store, metrics and notifications.
package app

import (
	"context"
	"time"

	"github.com/agrisense/farm-advisor/internal/advisor"
	"github.com/agrisense/farm-advisor/internal/auth"
	"github.com/agrisense/farm-advisor/internal/buildinfo"
	"github.com/agrisense/farm-advisor/internal/conf"
	"github.com/agrisense/farm-advisor/internal/datastore"
	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/features"
	"github.com/agrisense/farm-advisor/internal/inference"
	"github.com/agrisense/farm-advisor/internal/leafscan"
	"github.com/agrisense/farm-advisor/internal/logger"
	"github.com/agrisense/farm-advisor/internal/notification"
	"github.com/agrisense/farm-advisor/internal/observability"
)

// ModelPaths maps every registry name to its resolved model file.
func ModelPaths(m conf.ModelSettings) map[string]string {
	return map[string]string{
		features.ModelIrrigation: m.Path(m.Irrigation),
		features.ModelPesticide:  m.Path(m.Pesticide),
		features.ModelHealth:     m.Path(m.Health),
		features.ModelYield:      m.Path(m.Yield),
		leafscan.ModelName:       m.Path(m.Leaf),
	}
}

// CheckModels verifies that every tabular model takes its schema's feature
// count and returns one value, and that the leaf model fits the classifier.
func CheckModels(registry *inference.Registry) *buildinfo.ValidationResult {
	result := buildinfo.NewValidationResult()
	result.Check(registry.Validate(features.Schemas))
	for _, name := range []string{features.ModelIrrigation, features.ModelPesticide, features.ModelHealth, features.ModelYield} {
		result.Check(registry.ExpectOutput(name, 1))
	}

	leaf, err := registry.Get(leafscan.ModelName)
	if err != nil {
		result.Check(err)
	} else {
		result.Check(leafscan.CheckModel(leaf.InputShape(), leaf.OutputShapes()))
	}
	return result
}

// LoadModels loads and checks all five models. Any problem is fatal.
func LoadModels(settings conf.ModelSettings, recorder inference.Recorder) (*inference.Registry, error) {
	registry, err := inference.LoadRegistry(ModelPaths(settings), inference.Options{
		Threads:    settings.Threads,
		UseXNNPACK: settings.UseXNNPACK,
		Recorder:   recorder,
	})
	if err != nil {
		return nil, err
	}

	if result := CheckModels(registry); !result.Valid {
		registry.Close()
		return nil, errors.Newf("model check failed:\n%s", result.Summary()).
			Component("app").
			Category(errors.CategoryModelInit).
			Build()
	}
	return registry, nil
}

// Advisors holds the inference-backed services.
type Advisors struct {
	Models *inference.Registry
	Chain  *advisor.Chain
	Leaf   *leafscan.Classifier
}

// NewAdvisors loads the models and builds the chain and leaf classifier.
func NewAdvisors(settings *conf.Settings, m *observability.Metrics) (*Advisors, error) {
	var (
		recorder inference.Recorder
		observer leafscan.Observer
	)
	if m != nil {
		recorder = m.Advisor
		observer = m.Advisor
	}

	registry, err := LoadModels(settings.Models, recorder)
	if err != nil {
		return nil, err
	}

	chain, err := advisor.NewChain(registry)
	if err != nil {
		registry.Close()
		return nil, err
	}

	leafModel, err := registry.Get(leafscan.ModelName)
	if err != nil {
		registry.Close()
		return nil, err
	}

	return &Advisors{
		Models: registry,
		Chain:  chain,
		Leaf: leafscan.NewClassifier(leafModel, leafscan.Config{
			CacheTTL: settings.LeafScan.CacheTTL,
			Observer: observer,
		}),
	}, nil
}

// Close releases the models.
func (a *Advisors) Close() {
	a.Models.Close()
}

// OpenAuth opens the configured credential store and wraps it in an auth.Service.
func OpenAuth(ctx context.Context, settings *conf.Settings, m *observability.Metrics) (*auth.Service, datastore.CredentialStore, error) {
	store, err := datastore.New(ctx, &settings.Datastore)
	if err != nil {
		return nil, nil, err
	}

	opts := []auth.Option{auth.WithBcryptCost(settings.Security.BcryptCost)}
	if m != nil {
		opts = append(opts, auth.WithObserver(m.Auth))
	}
	return auth.NewService(store, opts...), store, nil
}

// Seed creates the configured default account if it does not exist yet.
func Seed(ctx context.Context, svc *auth.Service, seed conf.SeedSettings) error {
	if !seed.Enabled {
		return nil
	}
	created, err := svc.EnsureUser(ctx, seed.Username, seed.Password)
	if err != nil {
		return err
	}
	if created {
		GetLogger().Warn("Created default account; change its password",
			logger.String("username", seed.Username))
	}
	return nil
}

// InitTelemetry installs the Sentry reporter when enabled.
func InitTelemetry(settings *conf.Settings, build *buildinfo.Context) error {
	if !settings.Telemetry.Enabled {
		return nil
	}
	if err := errors.InitSentry(settings.Telemetry.DSN, build.Version(), settings.Main.Environment); err != nil {
		return err
	}
	GetLogger().Info("Error telemetry enabled")
	return nil
}

// FlushTelemetry waits for queued error reports.
func FlushTelemetry(settings *conf.Settings) {
	if settings.Telemetry.Enabled {
		errors.FlushTelemetry(2 * time.Second)
	}
}

// NewNotifier starts the advisory event dispatcher.
func NewNotifier(settings *conf.Settings, m *observability.Metrics) *notification.Dispatcher {
	var recorder notification.Recorder
	if m != nil {
		recorder = m.Notification
	}
	return notification.NewFromSettings(&settings.Notification, recorder)
}
