package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigreer/lsblkpro/internal/collector"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
display:
  include: [HCTL]
  highlight: TRAN
sources:
  zpool: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"HCTL"}, cfg.Display.Include)
	assert.Equal(t, "TRAN", cfg.Display.Highlight)
	assert.Equal(t, ColorAuto, cfg.Display.Color)
	assert.Equal(t, "/sys", cfg.Sources.SysRoot)
	assert.Equal(t, "lsblk", cfg.Sources.Lsblk)
	assert.Equal(t, "/var/lib/lsblkpro/history.db", cfg.History.Path)

	opts := cfg.CollectorOptions(true)
	assert.True(t, opts.All)
	assert.Empty(t, opts.ZpoolCommand)
	assert.Equal(t, collector.DefaultUdevRoot, opts.UdevRoot)
}

func TestLoadUdevDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, "sources:\n  udev_root: none\n"))
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Sources.UdevRoot)
	assert.Empty(t, cfg.CollectorOptions(false).UdevRoot)
}

func TestLoadZpoolCommand(t *testing.T) {
	cfg, err := Load(writeConfig(t, "sources:\n  zpool_command: [/sbin/zpool, status]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/sbin/zpool", "status"}, cfg.CollectorOptions(false).ZpoolCommand)

	cfg, err = Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, collector.DefaultZpoolCommand, cfg.CollectorOptions(false).ZpoolCommand)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "display: [not, a, map]\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "display:\n  color: sometimes\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "history:\n  keep: -1\n"))
	assert.Error(t, err)
}

func TestDefaultIsACopy(t *testing.T) {
	cfg := Default()
	cfg.Sources.ZpoolCommand[0] = "doas"
	assert.Equal(t, "sudo", Default().Sources.ZpoolCommand[0])
}
