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
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "restore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
  file: restore.log
workers: 6
poll_interval: 250ms
default_preset: inpainting
`), 0o644))

	t.Setenv(EnvWorkers, "3")
	t.Setenv(EnvProfile, "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "restore.log", cfg.Logging.File)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "inpainting", cfg.DefaultPreset)
	assert.True(t, cfg.Profile)
}

func TestLoadDotEnv(t *testing.T) {
	env := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(env, []byte("RESTORE_PRESET=resize\nRESTORE_POLL_INTERVAL=20ms\n"), 0o644))
	t.Setenv(EnvPreset, "")
	os.Unsetenv(EnvPreset)
	t.Setenv(EnvPollInterval, "")
	os.Unsetenv(EnvPollInterval)

	cfg, err := Load("", env, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "resize", cfg.DefaultPreset)
	assert.Equal(t, 20*time.Millisecond, cfg.PollInterval)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv(EnvWorkers, "many")
	_, err = Load("")
	assert.ErrorContains(t, err, EnvWorkers)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Workers = -1
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.PollInterval = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.DefaultPreset = "sharpen"
	assert.Error(t, bad.Validate())
}
