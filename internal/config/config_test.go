package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, used, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, Default(), cfg)
}

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("database = \"objects.db\"\ncodec = \"gzip\"\n"), 0o600))

	cfg, used, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "objects.db", cfg.Database)
	assert.Equal(t, "gzip", cfg.Codec)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, _, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keepsake.toml"), []byte("log_level = \"warn\"\n"), 0o600))
	t.Setenv("KEEPSAKE_LOG_LEVEL", "debug")

	cfg, used, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Contains(t, used, "keepsake.toml")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("codec = \"zstd\"\n"), 0o600))

	_, _, err := Load(viper.New(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "codec")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())

	cfg := Default()
	cfg.Database = ""
	cfg.LogLevel = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
	assert.Contains(t, err.Error(), "log_level")
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "keepsake.toml")
	cfg := Default()
	cfg.Catalog = "catalog"

	require.NoError(t, WriteFile(path, cfg, false))
	assert.Error(t, WriteFile(path, cfg, false))
	require.NoError(t, WriteFile(path, cfg, true))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, _, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

// chdir mirrors testing.T.Chdir (Go 1.24+): it changes the working directory
// for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
