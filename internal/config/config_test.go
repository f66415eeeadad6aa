package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmcore/pmcore/internal/reqport"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, Keys.Port, cfg.Port)
}

func TestLoadValidConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"address": "loopback",
		"port": 55000,
		"family": "inet6",
		"diagAddr": ":9090",
		"archive": {"kind": "fs", "path": "/tmp/archive"},
		"authMechanisms": ["JWT"],
		"discovery": {"enabled": true, "subnets": ["10.0.0.0/24"], "ports": [44321]}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 55000, cfg.Port)
	require.Equal(t, "inet6", cfg.Family)
	require.True(t, cfg.Discovery.Enabled)
	require.Equal(t, reqport.FamilyInet6, cfg.PortSpec().Family)
}

func TestLoadRejectsUnknownFamily(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"archive": {"kind": "fs", "path": "/tmp"}, "family": "carrier-pigeon"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
