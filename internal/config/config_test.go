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
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.MCP.ConnectTimeout)
	assert.Equal(t, "mcp-connection-manager", cfg.MCP.ClientName)
	assert.True(t, cfg.Breaker.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Empty(t, cfg.File)

	b := cfg.BreakerSettings()
	assert.False(t, b.Disabled)
	assert.Equal(t, uint32(5), b.MinRequests)
	assert.InDelta(t, 0.6, b.FailureRatio, 1e-9)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcpconn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: "127.0.0.1:9090"
mcp:
  connect_timeout: 5s
  autoconnect: true
store:
  in_memory: true
log:
  level: debug
`), 0o600))
	t.Setenv("MCPCONN_LOG_FORMAT", "json")
	t.Setenv("MCPCONN_MCP_CONNECT_TIMEOUT", "7s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, 7*time.Second, cfg.MCP.ConnectTimeout)
	assert.True(t, cfg.MCP.AutoConnect)
	assert.True(t, cfg.Store.InMemory)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{MCP: MCPConfig{ConnectTimeout: time.Second}, Store: StoreConfig{Path: "x"}}
	require.NoError(t, cfg.Validate())

	cfg.Breaker.FailureRatio = 2
	assert.ErrorContains(t, cfg.Validate(), "failure_ratio")

	cfg.Breaker.FailureRatio = 0.5
	cfg.Store.Path = ""
	assert.ErrorContains(t, cfg.Validate(), "store.path")

	cfg.MCP.ConnectTimeout = 0
	assert.ErrorContains(t, cfg.Validate(), "connect_timeout")
}
