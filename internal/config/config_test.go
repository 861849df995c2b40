package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "./mercury.db", cfg.Database.DSN)
	assert.Equal(t, 300*time.Second, cfg.Sync.ParseInterval())
	assert.Equal(t, 30*time.Second, cfg.Sync.ParseFetchTimeout())
	assert.Equal(t, 8, cfg.Sync.Workers)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  dsn: postgres://mercury@localhost/mercury?sslmode=disable
sync:
  interval: 2m
  workers: 4
server:
  port: 9090
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Sync.ParseInterval())
	assert.Equal(t, 4, cfg.Sync.Workers)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Sync.ParseFetchTimeout())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MERCURY_DB_DRIVER", "postgres")
	t.Setenv("MERCURY_DB_DSN", "postgres://elsewhere/db")
	t.Setenv("MERCURY_SYNC_INTERVAL", "45s")
	t.Setenv("MERCURY_PORT", "7070")
	t.Setenv("MERCURY_ADMIN_PASS", "sekrit")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://elsewhere/db", cfg.Database.DSN)
	assert.Equal(t, 45*time.Second, cfg.Sync.ParseInterval())
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "sekrit", cfg.Admin.Password)
}

func TestBadDurationFallsBack(t *testing.T) {
	cfg := Default()
	cfg.Sync.Interval = "whenever"
	assert.Equal(t, 300*time.Second, cfg.Sync.ParseInterval())
}
