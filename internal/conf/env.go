// env.go environment variable bindings for farm-advisor
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "FARMADVISOR_DEBUG", validateEnvBool},

		// Web server
		{"webserver.host", "FARMADVISOR_HOST", nil},
		{"webserver.port", "FARMADVISOR_PORT", validateEnvPort},

		// Security
		{"security.sessionsecret", "FARMADVISOR_SESSION_SECRET", validateEnvSecret},
		{"security.securecookies", "FARMADVISOR_SECURE_COOKIES", validateEnvBool},

		// Models
		{"models.dir", "FARMADVISOR_MODEL_DIR", nil},
		{"models.threads", "FARMADVISOR_MODEL_THREADS", validateEnvThreads},
		{"models.usexnnpack", "FARMADVISOR_USEXNNPACK", validateEnvBool},

		// Datastore
		{"datastore.type", "FARMADVISOR_DATASTORE", validateEnvDatastore},
		{"datastore.sqlite.path", "FARMADVISOR_SQLITE_PATH", nil},
		{"datastore.mysql.host", "FARMADVISOR_MYSQL_HOST", nil},
		{"datastore.mysql.port", "FARMADVISOR_MYSQL_PORT", validateEnvPort},
		{"datastore.mysql.username", "FARMADVISOR_MYSQL_USERNAME", nil},
		{"datastore.mysql.password", "FARMADVISOR_MYSQL_PASSWORD", nil},
		{"datastore.mysql.database", "FARMADVISOR_MYSQL_DATABASE", nil},
		{"datastore.mongodb.uri", "FARMADVISOR_MONGODB_URI", validateEnvURL},
		{"datastore.mongodb.database", "FARMADVISOR_MONGODB_DATABASE", nil},

		// Notifications and telemetry
		{"notification.mqtt.broker", "FARMADVISOR_MQTT_BROKER", validateEnvURL},
		{"notification.mqtt.username", "FARMADVISOR_MQTT_USERNAME", nil},
		{"notification.mqtt.password", "FARMADVISOR_MQTT_PASSWORD", nil},
		{"telemetry.dsn", "FARMADVISOR_SENTRY_DSN", validateEnvURL},

		{"logging.defaultlevel", "FARMADVISOR_LOG_LEVEL", validateEnvLogLevel},
	}
}

// bindEnvVars binds every FARMADVISOR_* variable and validates the ones that are set.
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				// secrets are never echoed back
				warnings = append(warnings, fmt.Sprintf("Invalid %s value: %v", binding.EnvVar, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("must be a port number between 1 and 65535")
	}
	return nil
}

func validateEnvThreads(value string) error {
	threads, err := strconv.Atoi(value)
	if err != nil || threads < 0 {
		return fmt.Errorf("must be a non-negative integer")
	}
	return nil
}

func validateEnvSecret(value string) error {
	if len(value) < minSessionSecretLength {
		return fmt.Errorf("must be at least %d characters", minSessionSecretLength)
	}
	return nil
}

func validateEnvDatastore(value string) error {
	switch strings.ToLower(value) {
	case DatastoreSQLite, DatastoreMySQL, DatastoreMongoDB:
		return nil
	}
	return fmt.Errorf("must be one of %s, %s, %s", DatastoreSQLite, DatastoreMySQL, DatastoreMongoDB)
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("must be one of trace, debug, info, warn, error")
}
