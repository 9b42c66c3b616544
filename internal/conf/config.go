// Package conf loads and validates farm-advisor settings from YAML, environment and flags.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/agrisense/farm-advisor/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings is the complete runtime configuration.
type Settings struct {
	Debug bool `yaml:"debug"`

	Main struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
	} `yaml:"main"`

	WebServer    WebServerSettings    `yaml:"webserver"`
	Security     SecuritySettings     `yaml:"security"`
	Models       ModelSettings        `yaml:"models"`
	Datastore    DatastoreSettings    `yaml:"datastore"`
	LeafScan     LeafScanSettings     `yaml:"leafscan"`
	Seed         SeedSettings         `yaml:"seed"`
	Notification NotificationSettings `yaml:"notification"`
	Telemetry    TelemetrySettings    `yaml:"telemetry"`
	Metrics      MetricsSettings      `yaml:"metrics"`
	Logging      logger.LoggingConfig `yaml:"logging"`

	Version   string `yaml:"-" mapstructure:"-"`
	BuildDate string `yaml:"-" mapstructure:"-"`
}

// WebServerSettings configures the HTTP listener.
type WebServerSettings struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readtimeout"`
	WriteTimeout    time.Duration `yaml:"writetimeout"`
	IdleTimeout     time.Duration `yaml:"idletimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdowntimeout"`
	BodyLimit       string        `yaml:"bodylimit"` // echo size string, e.g. "10M"
	AllowedOrigins  []string      `yaml:"allowedorigins"`
}

// Address returns host:port for the listener.
func (w WebServerSettings) Address() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// SecuritySettings configures the session cookie.
type SecuritySettings struct {
	SessionSecret string        `yaml:"sessionsecret"`
	SessionMaxAge time.Duration `yaml:"sessionmaxage"`
	SecureCookies bool          `yaml:"securecookies"`
	BcryptCost    int           `yaml:"bcryptcost"`
}

// ModelSettings locates the five model artifacts. Relative paths resolve against Dir.
type ModelSettings struct {
	Dir        string `yaml:"dir"`
	Irrigation string `yaml:"irrigation"`
	Pesticide  string `yaml:"pesticide"`
	Health     string `yaml:"health"`
	Yield      string `yaml:"yield"`
	Leaf       string `yaml:"leaf"`
	Threads    int    `yaml:"threads"` // 0 selects from CPU core count
	UseXNNPACK bool   `yaml:"usexnnpack"`
}

// Path resolves a model file name against Dir, expanding environment variables and "~/".
func (m ModelSettings) Path(file string) string {
	file = expandPath(file)
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(expandPath(m.Dir), file)
}

// DatastoreSettings selects and configures the credential store backend.
type DatastoreSettings struct {
	Type    string          `yaml:"type"` // sqlite, mysql or mongodb
	SQLite  SQLiteSettings  `yaml:"sqlite"`
	MySQL   MySQLSettings   `yaml:"mysql"`
	MongoDB MongoDBSettings `yaml:"mongodb"`
}

type SQLiteSettings struct {
	Path string `yaml:"path"`
}

type MySQLSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type MongoDBSettings struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LeafScanSettings configures the diagnosis cache.
type LeafScanSettings struct {
	CacheTTL time.Duration `yaml:"cachettl"`
	MaxBytes int64         `yaml:"maxbytes"`
}

// SeedSettings controls the default account created on first start.
type SeedSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NotificationSettings configures outbound advisory events.
type NotificationSettings struct {
	QueueSize int `yaml:"queuesize"`
	Shoutrrr  struct {
		Enabled bool          `yaml:"enabled"`
		URLs    []string      `yaml:"urls"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"shoutrrr"`
	MQTT MQTTSettings `yaml:"mqtt"`
}

type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"clientid"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Retain   bool   `yaml:"retain"`
}

// TelemetrySettings enables Sentry error reporting.
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// MetricsSettings exposes Prometheus metrics.
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configFile (or the first config.yaml on the default search path),
// applies environment overrides and validates the result.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if settings.Security.SessionSecret == "" {
		settings.Security.SessionSecret = GenerateRandomSecret()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper registers defaults and environment bindings, then reads the config file.
func initViper(configFile string) error {
	// .env is optional; variables already set in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	viper.SetConfigType("yaml")
	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		return err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			userDir, dirErr := UserConfigDir()
			if dirErr != nil {
				return dirErr
			}
			return createDefaultConfig(userDir)
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it back.
func createDefaultConfig(dir string) error {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded default config: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("Created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// GetSettings returns the settings loaded by the last successful Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically via a temp file and rename.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
