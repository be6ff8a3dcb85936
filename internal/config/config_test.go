package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test from an empty directory so a stray tripledger.toml
// cannot leak in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("TRIPLEDGER_CONFIG", "")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	t.Setenv("TRIPLEDGER_AUTH_JWT_SECRET", "s3cret")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "sqlite", c.Database.Driver)
	assert.Equal(t, "./data/tripledger.db", c.Database.Path)
	assert.Equal(t, "s3cret", c.Auth.JWTSecret)
	assert.Equal(t, 24*time.Hour, c.Auth.TokenTTL)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, 5, c.Ledger.MaxWriteRetries)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9090

[database]
driver = "memory"

[auth]
jwt_secret = "from-file"
token_ttl = "2h"

[ledger]
max_write_retries = 8
`), 0o600))

	t.Setenv("TRIPLEDGER_CONFIG", path)
	t.Setenv("TRIPLEDGER_SERVER_PORT", "9191")
	t.Setenv("TRIPLEDGER_LOG_LEVEL", "debug")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, c.Server.Port, "env beats file")
	assert.Equal(t, "memory", c.Database.Driver)
	assert.Equal(t, "from-file", c.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, c.Auth.TokenTTL)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 8, c.Ledger.MaxWriteRetries)
}

func TestLoad_DefaultFileInWorkingDir(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tripledger.toml"), []byte(`
[auth]
jwt_secret = "local"
`), 0o600))

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "local", c.Auth.JWTSecret)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		isolate(t)
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt_secret")
	})

	t.Run("explicit file must exist", func(t *testing.T) {
		dir := isolate(t)
		t.Setenv("TRIPLEDGER_CONFIG", filepath.Join(dir, "nope.toml"))
		t.Setenv("TRIPLEDGER_AUTH_JWT_SECRET", "x")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		isolate(t)
		t.Setenv("TRIPLEDGER_AUTH_JWT_SECRET", "x")
		t.Setenv("TRIPLEDGER_DATABASE_DRIVER", "postgres")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "postgres")
	})
}
