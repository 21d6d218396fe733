package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".pyforge"), cfg.DataDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "pyforge.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join(cfg.DataDir, "requirements"), cfg.RequirementsDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "envs"), cfg.EnvsDir())
	assert.Equal(t, 15*time.Minute, cfg.Health.Interval)
	assert.NotEmpty(t, cfg.Embedded.Version)
	assert.Contains(t, cfg.Embedded.InstallDir, cfg.Embedded.Version)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pyforge.yaml")
	content := `
data_dir: ` + dir + `
requirements_dir: ` + filepath.Join(dir, "reqs") + `
embedded:
  version: "3.12.3"
health:
  interval: 5m
logger:
  level: debug
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "reqs"), cfg.RequirementsDir)
	assert.Equal(t, "3.12.3", cfg.Embedded.Version)
	assert.Equal(t, 5*time.Minute, cfg.Health.Interval)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pyforge.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("data_dir: "+filepath.Join(dir, "data")+"\n"), 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.NoError(t, cfg.EnsureDirs())

	for _, d := range []string{cfg.DataDir, cfg.RequirementsDir, cfg.TemplatesDir, cfg.EnvsDir()} {
		info, err := os.Stat(d)
		require.NoError(t, err, d)
		assert.True(t, info.IsDir(), d)
	}
}
