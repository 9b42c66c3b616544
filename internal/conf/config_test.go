package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests in this file share the global viper instance and must not run in parallel.

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	settings, err := Load(writeConfig(t, "main:\n  name: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", settings.Main.Name)
	assert.Equal(t, 8080, settings.WebServer.Port)
	assert.Equal(t, DatastoreSQLite, settings.Datastore.Type)
	assert.Equal(t, "smart_farming", settings.Datastore.MongoDB.Database)
	assert.Equal(t, "users", settings.Datastore.MongoDB.Collection)
	assert.Equal(t, "admin", settings.Seed.Username)
	assert.Equal(t, "1234", settings.Seed.Password)
	assert.Equal(t, 30*time.Minute, settings.LeafScan.CacheTTL)
	assert.Equal(t, "/metrics", settings.Metrics.Path)
	assert.GreaterOrEqual(t, len(settings.Security.SessionSecret), minSessionSecretLength)
	assert.Same(t, settings, GetSettings())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("FARMADVISOR_PORT", "9191")

	path := writeConfig(t, `
webserver:
  port: 9090
security:
  sessionmaxage: 2h
datastore:
  type: MongoDB
  mongodb:
    uri: mongodb://db:27017
models:
  dir: /opt/models
  yield: custom_yield.tflite
`)
	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, settings.WebServer.Port, "environment wins over file")
	assert.Equal(t, 2*time.Hour, settings.Security.SessionMaxAge)
	assert.Equal(t, DatastoreMongoDB, settings.Datastore.Type, "type is normalised")
	assert.Equal(t, "mongodb://db:27017", settings.Datastore.MongoDB.URI)
	assert.Equal(t, filepath.Join("/opt/models", "custom_yield.tflite"), settings.Models.Path(settings.Models.Yield))
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("FARMADVISOR_DATASTORE", "postgres")

	_, err := Load(writeConfig(t, "debug: false\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FARMADVISOR_DATASTORE")
}

func TestValidateSettings(t *testing.T) {
	valid := func() *Settings {
		s := &Settings{}
		s.WebServer.Port = 8080
		s.WebServer.BodyLimit = "10M"
		s.Security.SessionSecret = GenerateRandomSecret()
		s.Models = ModelSettings{Irrigation: "a", Pesticide: "b", Health: "c", Yield: "d", Leaf: "e"}
		s.Datastore.Type = DatastoreSQLite
		s.Datastore.SQLite.Path = "x.db"
		return s
	}

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"bad port", func(s *Settings) { s.WebServer.Port = 0 }, "port must be between"},
		{"bad body limit", func(s *Settings) { s.WebServer.BodyLimit = "lots" }, "body limit"},
		{"short secret", func(s *Settings) { s.Security.SessionSecret = "short" }, "session secret"},
		{"bcrypt cost", func(s *Settings) { s.Security.BcryptCost = 99 }, "bcrypt cost"},
		{"missing model", func(s *Settings) { s.Models.Leaf = " " }, "leaf model path"},
		{"unknown datastore", func(s *Settings) { s.Datastore.Type = "redis" }, "unsupported datastore"},
		{"blank seed", func(s *Settings) { s.Seed = SeedSettings{Enabled: true, Username: "admin"} }, "seed username"},
		{"shoutrrr without urls", func(s *Settings) { s.Notification.Shoutrrr.Enabled = true }, "no URLs"},
		{"telemetry without dsn", func(s *Settings) { s.Telemetry.Enabled = true }, "no DSN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveYAMLConfig_RoundTrip(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	settings, err := Load(writeConfig(t, "webserver:\n  port: 8181\n"))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, SaveYAMLConfig(out, settings))

	viper.Reset()
	reloaded, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, 8181, reloaded.WebServer.Port)
	assert.Equal(t, settings.Security.SessionSecret, reloaded.Security.SessionSecret)
}
