package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SKILLTRACK_SERVER_URL", "https://api.example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Server.BaseURL)
	assert.Equal(t, 15, cfg.Server.TimeoutSeconds)
	assert.Equal(t, "SKILLTRACK_TOKEN", cfg.Server.TokenEnv)
	assert.Equal(t, 1, cfg.Sync.SchemaVersion)
	assert.Equal(t, uint(5), cfg.Sync.MaxRetryAttempts)
	assert.False(t, cfg.Log.Debug)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  base_url: https://learn.example.org
  timeout_seconds: 30
sync:
  schema_version: 4
  interval_seconds: 60
log:
  debug: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://learn.example.org", cfg.Server.BaseURL)
	assert.Equal(t, 30, cfg.Server.TimeoutSeconds)
	assert.Equal(t, 4, cfg.Sync.SchemaVersion)
	assert.Equal(t, 60, cfg.Sync.IntervalSeconds)
	assert.True(t, cfg.Log.Debug)
}

func TestLoadRejectsMissingServerURL(t *testing.T) {
	t.Setenv("SKILLTRACK_SERVER_URL", "")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadRejectsInvalidURL(t *testing.T) {
	t.Setenv("SKILLTRACK_SERVER_URL", "not a url")

	_, err := Load("")
	require.Error(t, err)
}
