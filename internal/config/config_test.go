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
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7700", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 5*time.Second, cfg.Plugins.CorpusTimeout)
	assert.Equal(t, 2*time.Second, cfg.Plugins.ScriptTimeout)
	assert.Equal(t, 20, cfg.Search.BrowseLimit)
	assert.Equal(t, 900, cfg.Window.Width)
	assert.Equal(t, 72, cfg.Window.SearchHeight)
	assert.Equal(t, 600, cfg.Window.ViewHeight)
	assert.Equal(t, 40, cfg.Window.ToolbarHeight)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LAUNCHER_PORT", "9100")
	t.Setenv("LAUNCHER_CORPUS_TIMEOUT", "10s")
	t.Setenv("LAUNCHER_BROWSE_LIMIT", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Plugins.CorpusTimeout)
	assert.Equal(t, 5, cfg.Search.BrowseLimit)
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launcher.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = "8088"

[window]
width = 1200
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "8088", cfg.Server.Port)
	assert.Equal(t, 1200, cfg.Window.Width)
	// Untouched sections keep their defaults.
	assert.Equal(t, 600, cfg.Window.ViewHeight)
	assert.Equal(t, "./plugins", cfg.Plugins.Root)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestDefaultMatchesLoad(t *testing.T) {
	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), loaded)
}
