package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, fromFile, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.False(t, fromFile)
	require.Equal(t, "scripts", cfg.ScriptsDir)
	require.Equal(t, 2*time.Second, cfg.Transport.Timeout)
}

func TestLoadParsesYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scriptsDir: strategies
metricsAddr: "127.0.0.1:9100"
transport:
  timeout: 5s
  hostRps: 50
credentials:
  sub1:
    apiKey: k
    apiSecret: s
`), 0o600))

	cfg, fromFile, err := Load(path)
	require.NoError(t, err)
	require.True(t, fromFile)
	require.Equal(t, "strategies", cfg.ScriptsDir)
	require.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	require.Equal(t, 5*time.Second, cfg.Transport.Timeout)
	require.Equal(t, float64(50), cfg.Transport.HostRPS)
	require.Equal(t, "k", cfg.Credentials["sub1"].APIKey)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scriptsDir: [unterminated"), 0o600))
	_, _, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GRASSHOPPER_SCRIPTS_DIR", "/opt/scripts")
	t.Setenv("GRASSHOPPER_LOCAL_ADDRS", "10.0.0.1, 10.0.0.2")
	t.Setenv("GRASSHOPPER_API_KEY", "envkey")

	cfg, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "/opt/scripts", cfg.ScriptsDir)
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Transport.LocalAddrs)
	require.Equal(t, "envkey", cfg.Credentials[""].APIKey)
}
