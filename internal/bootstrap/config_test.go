package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"signalbridge/internal/config"
	"signalbridge/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	t.Setenv(ConfigEnvVar, "")
	t.Setenv("BRIDGE_PORT", "3333")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 3333, cfg.Bridge.Port)
	assert.Equal(t, "Server", cfg.Bridge.ServerName)
}

func TestLoadConfig_FromEnvVar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bridge:\n  server_name: Paper\n"), 0o600))
	t.Setenv(ConfigEnvVar, path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "Paper", cfg.Bridge.ServerName)
}

func TestCheckPreFlight(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, checkPreFlight(cfg))

	cfg.Bridge.AuthKey = config.Secret("k")
	assert.Error(t, checkPreFlight(cfg))
	cfg.Bridge.Scheme = transport.SchemeWS
	assert.NoError(t, checkPreFlight(cfg))

	cfg.System.LogFile = filepath.Join(t.TempDir(), "missing", "bridge.log")
	assert.Error(t, checkPreFlight(cfg))
	cfg.System.LogFile = filepath.Join(t.TempDir(), "bridge.log")
	assert.NoError(t, checkPreFlight(cfg))
}
