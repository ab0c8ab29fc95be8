package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)
	Init()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 30*time.Second, cfg.Client.CallTimeout)
	assert.Equal(t, 5*time.Second, cfg.Client.ShutdownTimeout)
	assert.Equal(t, 3, cfg.Client.MaxReconnectAttempts)
	assert.Equal(t, 2*time.Second, cfg.Client.ReconnectDelay)
	assert.Equal(t, 10*time.Minute, cfg.Install.BuildTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Install.CommandTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.Install.CacheTTL)
	assert.Equal(t, 3, cfg.Install.MaxRetries)
	assert.False(t, cfg.Install.AllowHighRisk)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadExplicitFile(t *testing.T) {
	resetViper(t)
	Init()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("version: 1\ninstall_root: /srv/mcp\nclient:\n  max_reconnect_attempts: 5\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/mcp", cfg.InstallRoot)
	assert.Equal(t, 5, cfg.Client.MaxReconnectAttempts)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Client.CallTimeout)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	resetViper(t)
	Init()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
