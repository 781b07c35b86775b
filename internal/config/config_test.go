package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.Database.TxTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Database.ExportTimeout)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routebook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/from-yaml.db
  durability: full
  tx_timeout: 2s
cache:
  ttl: 10s
timezone: UTC
`), 0o644))

	t.Chdir(dir)
	t.Setenv("ROUTEBOOK_DB_PATH", "/tmp/from-env.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-env.db", cfg.Database.Path, "env overrides yaml")
	assert.Equal(t, "full", cfg.Database.Durability)
	assert.Equal(t, 2*time.Second, cfg.Database.TxTimeout)
	assert.Equal(t, 10*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 16*1024, cfg.Database.CacheSizeKiB, "unset keys keep defaults")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("ROUTEBOOK_LOG_LEVEL=debug\n"), 0o644))
	t.Chdir(dir)
	t.Setenv("ROUTEBOOK_LOG_LEVEL", "")
	os.Unsetenv("ROUTEBOOK_LOG_LEVEL")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty path", func(c *Config) { c.Database.Path = " " }},
		{"bad durability", func(c *Config) { c.Database.Durability = "paranoid" }},
		{"zero tx timeout", func(c *Config) { c.Database.TxTimeout = 0 }},
		{"zero export timeout", func(c *Config) { c.Database.ExportTimeout = 0 }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSynchronous(t *testing.T) {
	orig := constrainedHost
	t.Cleanup(func() { constrainedHost = orig })

	d := Default().Database

	constrainedHost = func() bool { return true }
	assert.Equal(t, "FULL", d.Synchronous())

	constrainedHost = func() bool { return false }
	assert.Equal(t, "NORMAL", d.Synchronous())

	d.Durability = "extra"
	assert.Equal(t, "EXTRA", d.Synchronous())
}
