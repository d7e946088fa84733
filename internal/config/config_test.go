package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"APP_PORT", "DATA_DIR", "STATIC_DIR", "DATABASE_FILE", "EVENT_NAME", "PASS_WIDTH", "STORE_DRIVER"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, filepath.Join("data", "passes_database.json"), cfg.DatabaseFile)
	assert.Equal(t, filepath.Join("static", "passes"), cfg.PassesDir)
	assert.Equal(t, "SAVORA", cfg.Event.Name)
	assert.Equal(t, 1200, cfg.Pass.Width)
	assert.Equal(t, 400, cfg.Pass.Height)
	assert.Equal(t, "json", cfg.StoreDriver)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STATIC_DIR", "/srv/static")
	t.Setenv("PASS_WIDTH", "900")
	t.Setenv("PASS_HEIGHT", "not-a-number")
	t.Setenv("EVENTS_ENABLED", "yes")
	t.Setenv("SHUTDOWN_GRACE", "3s")
	cfg := Load()
	assert.Equal(t, "/srv/static/sponsors", cfg.SponsorsDir)
	assert.Equal(t, 900, cfg.Pass.Width)
	assert.Equal(t, 400, cfg.Pass.Height)
	assert.True(t, cfg.EventsEnabled)
	assert.Equal(t, 3*time.Second, cfg.ShutdownGraceDuration)
}

func TestBootstrapCreatesDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := Config{
		DataDir:      filepath.Join(root, "data"),
		PassesDir:    filepath.Join(root, "static", "passes"),
		SponsorsDir:  filepath.Join(root, "static", "sponsors"),
		PoweredByDir: filepath.Join(root, "static", "powered_by"),
	}
	require.NoError(t, cfg.Bootstrap())
	require.NoError(t, cfg.Bootstrap())
	for _, dir := range []string{cfg.DataDir, cfg.PassesDir, cfg.SponsorsDir, cfg.PoweredByDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestRateLimitClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	rl := LoadRateLimitConfig()
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 10*time.Second, rl.TTL)
}
