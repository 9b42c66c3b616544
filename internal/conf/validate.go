// conf/validate.go

package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/labstack/gommon/bytes"
	"golang.org/x/crypto/bcrypt"
)

// Datastore backends
const (
	DatastoreSQLite  = "sqlite"
	DatastoreMySQL   = "mysql"
	DatastoreMongoDB = "mongodb"
)

const minSessionSecretLength = 32

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		func(s *Settings) error { return validateWebServerSettings(&s.WebServer) },
		func(s *Settings) error { return validateSecuritySettings(&s.Security) },
		func(s *Settings) error { return validateModelSettings(&s.Models) },
		func(s *Settings) error { return validateDatastoreSettings(&s.Datastore) },
		func(s *Settings) error { return validateSeedSettings(&s.Seed) },
		func(s *Settings) error { return validateNotificationSettings(&s.Notification) },
		func(s *Settings) error { return validateTelemetrySettings(&s.Telemetry) },
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func joinErrs(section string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s settings errors: %s", section, strings.Join(errs, ", "))
}

func validateWebServerSettings(settings *WebServerSettings) error {
	var errs []string

	if settings.Port < 1 || settings.Port > 65535 {
		errs = append(errs, "WebServer port must be between 1 and 65535")
	}
	if settings.BodyLimit != "" {
		if err := validateBodyLimit(settings.BodyLimit); err != nil {
			errs = append(errs, err.Error())
		}
	}
	for name, d := range map[string]time.Duration{
		"read timeout":     settings.ReadTimeout,
		"write timeout":    settings.WriteTimeout,
		"idle timeout":     settings.IdleTimeout,
		"shutdown timeout": settings.ShutdownTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Sprintf("WebServer %s must not be negative", name))
		}
	}

	return joinErrs("WebServer", errs)
}

// validateBodyLimit parses the limit the same way echo's BodyLimit middleware does.
func validateBodyLimit(limit string) error {
	if _, err := bytes.Parse(limit); err != nil {
		return fmt.Errorf("WebServer body limit %q is invalid", limit)
	}
	return nil
}

func validateSecuritySettings(settings *SecuritySettings) error {
	var errs []string

	if len(settings.SessionSecret) < minSessionSecretLength {
		errs = append(errs, fmt.Sprintf("session secret must be at least %d characters", minSessionSecretLength))
	}
	if settings.SessionMaxAge < 0 {
		errs = append(errs, "session max age must not be negative")
	}
	if settings.BcryptCost != 0 && (settings.BcryptCost < bcrypt.MinCost || settings.BcryptCost > bcrypt.MaxCost) {
		errs = append(errs, fmt.Sprintf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}

	return joinErrs("Security", errs)
}

func validateModelSettings(settings *ModelSettings) error {
	var errs []string

	for name, file := range map[string]string{
		"irrigation": settings.Irrigation,
		"pesticide":  settings.Pesticide,
		"health":     settings.Health,
		"yield":      settings.Yield,
		"leaf":       settings.Leaf,
	} {
		if strings.TrimSpace(file) == "" {
			errs = append(errs, fmt.Sprintf("%s model path must not be empty", name))
		}
	}
	if settings.Threads < 0 {
		errs = append(errs, "model threads must be at least 0")
	}

	return joinErrs("Models", errs)
}

func validateDatastoreSettings(settings *DatastoreSettings) error {
	var errs []string

	settings.Type = strings.ToLower(strings.TrimSpace(settings.Type))
	switch settings.Type {
	case DatastoreSQLite:
		if settings.SQLite.Path == "" {
			errs = append(errs, "SQLite path must not be empty")
		}
	case DatastoreMySQL:
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" {
			errs = append(errs, "MySQL host and database are required")
		}
		if settings.MySQL.Port < 1 || settings.MySQL.Port > 65535 {
			errs = append(errs, "MySQL port must be between 1 and 65535")
		}
	case DatastoreMongoDB:
		if settings.MongoDB.URI == "" || settings.MongoDB.Database == "" || settings.MongoDB.Collection == "" {
			errs = append(errs, "MongoDB uri, database and collection are required")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported datastore type %q", settings.Type))
	}

	return joinErrs("Datastore", errs)
}

func validateSeedSettings(settings *SeedSettings) error {
	if !settings.Enabled {
		return nil
	}
	if strings.TrimSpace(settings.Username) == "" || strings.TrimSpace(settings.Password) == "" {
		return joinErrs("Seed", []string{"seed username and password must not be blank"})
	}
	return nil
}

func validateNotificationSettings(settings *NotificationSettings) error {
	var errs []string

	if settings.QueueSize < 0 {
		errs = append(errs, "notification queue size must not be negative")
	}
	if settings.Shoutrrr.Enabled && len(settings.Shoutrrr.URLs) == 0 {
		errs = append(errs, "shoutrrr is enabled but no URLs are configured")
	}
	if settings.MQTT.Enabled {
		if settings.MQTT.Broker == "" {
			errs = append(errs, "MQTT broker must not be empty")
		}
		if settings.MQTT.Topic == "" {
			errs = append(errs, "MQTT topic must not be empty")
		}
	}

	return joinErrs("Notification", errs)
}

func validateTelemetrySettings(settings *TelemetrySettings) error {
	if settings.Enabled && settings.DSN == "" {
		return joinErrs("Telemetry", []string{"telemetry is enabled but no DSN is set"})
	}
	return nil
}
