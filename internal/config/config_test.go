package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Database.Path = "/data/statements.db"
	cfg.Logging.Level = "debug"

	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/statements.db", got.Database.Path)
	assert.Equal(t, "debug", got.Logging.Level)
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "estatement.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", got.Logging.Level)
	assert.Equal(t, "estatement.db", got.Database.Path)
}

func TestLoadEmptyDatabasePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: \"\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
