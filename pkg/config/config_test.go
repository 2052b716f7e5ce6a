package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := LoadDefaults()

	assert.Equal(t, "./data", cfg.Database.DataDir)
	assert.False(t, cfg.Database.InMemory)
	assert.False(t, cfg.Database.SyncWrites)
	assert.Equal(t, 0, cfg.Overlay.MaxScopes)
	assert.Equal(t, 64, cfg.Overlay.ViewCacheMaxEntries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("OVERLAYDB_DATA_DIR", "/tmp/overlay")
	t.Setenv("OVERLAYDB_IN_MEMORY", "yes")
	t.Setenv("OVERLAYDB_SYNC_WRITES", "1")
	t.Setenv("OVERLAYDB_MAX_SCOPES", "12")
	t.Setenv("OVERLAYDB_VIEW_CACHE_MAX_ENTRIES", "3")
	t.Setenv("OVERLAYDB_LOG_LEVEL", "DEBUG")
	t.Setenv("OVERLAYDB_LOG_FORMAT", "text")

	cfg := LoadFromEnv()
	assert.Equal(t, "/tmp/overlay", cfg.Database.DataDir)
	assert.True(t, cfg.Database.InMemory)
	assert.True(t, cfg.Database.SyncWrites)
	assert.Equal(t, 12, cfg.Overlay.MaxScopes)
	assert.Equal(t, 3, cfg.Overlay.ViewCacheMaxEntries)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("OVERLAYDB_MAX_SCOPES", "many")
	t.Setenv("OVERLAYDB_IN_MEMORY", "nope")

	cfg := LoadFromEnv()
	assert.Equal(t, 0, cfg.Overlay.MaxScopes, "unparseable ints keep the default")
	assert.False(t, cfg.Database.InMemory)
}

func TestLoadFromFile(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		clearEnvVars(t)
		cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, LoadDefaults(), cfg)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		clearEnvVars(t)
		path := writeConfig(t, `
database:
  data_dir: /var/lib/overlaydb
  sync_writes: true
overlay:
  max_scopes: 500
  view_cache_max_entries: 0
logging:
  level: WARN
`)
		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/overlaydb", cfg.Database.DataDir)
		assert.True(t, cfg.Database.SyncWrites)
		assert.False(t, cfg.Database.InMemory)
		assert.Equal(t, 500, cfg.Overlay.MaxScopes)
		assert.Equal(t, 0, cfg.Overlay.ViewCacheMaxEntries, "explicit zero is honored")
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, "json", cfg.Logging.Format)
	})

	t.Run("environment beats file", func(t *testing.T) {
		clearEnvVars(t)
		path := writeConfig(t, "overlay:\n  max_scopes: 500\n")
		t.Setenv("OVERLAYDB_MAX_SCOPES", "7")

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Overlay.MaxScopes)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		clearEnvVars(t)
		path := writeConfig(t, "overlay: [unterminated\n")
		_, err := LoadFromFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"in memory without data dir", func(c *Config) { c.Database.DataDir = ""; c.Database.InMemory = true }, ""},
		{"missing data dir", func(c *Config) { c.Database.DataDir = "" }, "data dir"},
		{"negative max scopes", func(c *Config) { c.Overlay.MaxScopes = -1 }, "max scopes"},
		{"negative view cache", func(c *Config) { c.Overlay.ViewCacheMaxEntries = -5 }, "view cache"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "log level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigString(t *testing.T) {
	cfg := LoadDefaults()
	s := cfg.String()
	assert.True(t, strings.HasPrefix(s, "Config{"))
	assert.Contains(t, s, "DataDir: ./data")

	cfg.Database.InMemory = true
	assert.Contains(t, cfg.String(), "DataDir: <memory>")
}

func TestFindConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	wd, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	assert.Equal(t, "", FindConfigFile())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "overlaydb.yaml"), []byte("{}"), 0o644))
	assert.Equal(t, "overlaydb.yaml", FindConfigFile())

	homeCfg := filepath.Join(home, ".overlaydb", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(homeCfg), 0o755))
	require.NoError(t, os.WriteFile(homeCfg, []byte("{}"), 0o644))
	assert.Equal(t, homeCfg, FindConfigFile())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	envVars := []string{
		"OVERLAYDB_DATA_DIR",
		"OVERLAYDB_IN_MEMORY",
		"OVERLAYDB_SYNC_WRITES",
		"OVERLAYDB_LOW_MEMORY",
		"OVERLAYDB_MAX_SCOPES",
		"OVERLAYDB_VIEW_CACHE_MAX_ENTRIES",
		"OVERLAYDB_LOG_LEVEL",
		"OVERLAYDB_LOG_FORMAT",
		"OVERLAYDB_LOG_OUTPUT",
	}
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}
