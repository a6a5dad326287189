// ABOUTME: Tests for config defaults, file loading, and environment overrides
package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pointXDGAt redirects the XDG data home into a temp dir so tests never touch
// the real config file.
func pointXDGAt(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := pointXDGAt(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "coldflow", "coldflow.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join(dir, "coldflow", "session.json"), cfg.SessionPath)
	assert.Empty(t, cfg.RemoteURL)
	assert.Equal(t, 10, cfg.MinSyncIntervalMin)
	assert.Equal(t, 6, cfg.MorningSyncHour)
	assert.Equal(t, 5, cfg.QueueTickSec)
	assert.Equal(t, 2, cfg.PullTickMin)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "TEXT", cfg.LogFormat)

	assert.Equal(t, 10*time.Minute, cfg.MinSyncInterval())
	assert.Equal(t, 5*time.Second, cfg.QueueTick())
	assert.Equal(t, 2*time.Minute, cfg.PullTick())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	pointXDGAt(t)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.RemoteURL = "https://db.example.com"
	cfg.RemoteAPIKey = "anon-key"
	cfg.AllowedEmails = []string{"ana@example.com", "rui@example.com"}
	cfg.PullTickMin = 7
	require.NoError(t, Save(cfg))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://db.example.com", loaded.RemoteURL)
	assert.Equal(t, "anon-key", loaded.RemoteAPIKey)
	assert.Equal(t, []string{"ana@example.com", "rui@example.com"}, loaded.AllowedEmails)
	assert.Equal(t, 7, loaded.PullTickMin)
}

func TestEnvOverrides(t *testing.T) {
	pointXDGAt(t)

	t.Setenv("COLDFLOW_DB_PATH", "/tmp/other.db")
	t.Setenv("COLDFLOW_REMOTE_URL", "https://env.example.com")
	t.Setenv("COLDFLOW_ALLOWED_EMAILS", "ana@example.com, rui@example.com ,")
	t.Setenv("COLDFLOW_MIN_SYNC_INTERVAL_MIN", "15")
	t.Setenv("COLDFLOW_MORNING_SYNC_HOUR", "0")
	t.Setenv("COLDFLOW_LOG_FORMAT", "JSON")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.DBPath)
	assert.Equal(t, "https://env.example.com", cfg.RemoteURL)
	assert.Equal(t, []string{"ana@example.com", "rui@example.com"}, cfg.AllowedEmails)
	assert.Equal(t, 15, cfg.MinSyncIntervalMin)
	assert.Equal(t, 0, cfg.MorningSyncHour, "midnight is a valid morning hour")
	assert.Equal(t, "JSON", cfg.LogFormat)
}

func TestEnvOverridesIgnoreInvalidNumbers(t *testing.T) {
	pointXDGAt(t)

	t.Setenv("COLDFLOW_MIN_SYNC_INTERVAL_MIN", "not-a-number")
	t.Setenv("COLDFLOW_MORNING_SYNC_HOUR", "25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MinSyncIntervalMin)
	assert.Equal(t, 6, cfg.MorningSyncHour)
}

func TestEnvOverridesApplyOnTopOfFile(t *testing.T) {
	pointXDGAt(t)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.RemoteURL = "https://file.example.com"
	require.NoError(t, Save(cfg))

	t.Setenv("COLDFLOW_REMOTE_URL", "https://env.example.com")

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", loaded.RemoteURL, "environment wins over the file")
}
