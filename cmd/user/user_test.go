package user

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrisense/farm-advisor/internal/app"
	"github.com/agrisense/farm-advisor/internal/auth"
	"github.com/agrisense/farm-advisor/internal/conf"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Datastore.Type = conf.DatastoreSQLite
	settings.Datastore.SQLite.Path = filepath.Join(t.TempDir(), "data", "users.db")
	settings.Security.BcryptCost = bcrypt.MinCost
	return settings
}

func runUser(settings *conf.Settings, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := Command(settings)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func login(t *testing.T, settings *conf.Settings, username, password string) error {
	t.Helper()
	svc, store, err := app.OpenAuth(context.Background(), settings, nil)
	require.NoError(t, err)
	defer store.Close()
	_, err = svc.Login(context.Background(), username, password)
	return err
}

func TestAdd_CreatesAccount(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)

	out, err := runUser(settings, "add", "amina", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Created account amina")
	assert.NoError(t, login(t, settings, "amina", "secret"))

	_, err = runUser(settings, "add", "amina", "--password", "other")
	require.ErrorIs(t, err, auth.ErrUserExists)
	assert.NoError(t, login(t, settings, "amina", "secret"), "existing password must survive a rejected add")
}

func TestAdd_RejectsBlankPassword(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)

	_, err := runUser(settings, "add", "kofi")
	require.ErrorIs(t, err, auth.ErrBlankCredentials)
	assert.ErrorIs(t, login(t, settings, "kofi", "anything"), auth.ErrInvalidCredentials)
}

func TestAdd_RequiresUsername(t *testing.T) {
	t.Parallel()

	_, err := runUser(testSettings(t), "add")
	assert.Error(t, err)
}

func TestAdd_PasswordFromEnvironment(t *testing.T) {
	t.Setenv(PasswordEnv, "from-env")
	settings := testSettings(t)

	_, err := runUser(settings, "add", "wanjiru")
	require.NoError(t, err)
	assert.NoError(t, login(t, settings, "wanjiru", "from-env"))
}
