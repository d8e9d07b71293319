// Package config loads the settings of the restore command line tools from a
// YAML file, a .env file and RESTORE_* environment variables, in that order of
// increasing precedence.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-restore/logging"
)

// Environment variables overriding file values.
const (
	EnvLogLevel     = "RESTORE_LOG_LEVEL"
	EnvLogFile      = "RESTORE_LOG_FILE"
	EnvDevelopment  = "RESTORE_DEVELOPMENT"
	EnvWorkers      = "RESTORE_WORKERS"
	EnvPollInterval = "RESTORE_POLL_INTERVAL"
	EnvSettingsPath = "RESTORE_SETTINGS"
	EnvPreset       = "RESTORE_PRESET"
	EnvProfile      = "RESTORE_PROFILE"
)

// Presets accepted by DefaultPreset.
var Presets = []string{"restoration", "inpainting", "resize"}

// Config holds the tool configuration.
type Config struct {
	Logging logging.Config `yaml:"logging"`

	// Workers forces the diffusion worker pool size; 0 derives it from the CPU count.
	Workers int `yaml:"workers"`
	// PollInterval is how often a running pass is sampled for progress.
	PollInterval time.Duration `yaml:"poll_interval"`
	// SettingsPath is the YAML file holding the remembered settings groups.
	SettingsPath string `yaml:"settings_path"`
	// DefaultPreset names the settings used when none are remembered.
	DefaultPreset string `yaml:"default_preset"`
	// Profile enables periodic runtime profiling reports.
	Profile bool `yaml:"profile"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging:       logging.Config{Level: "info"},
		PollInterval:  100 * time.Millisecond,
		SettingsPath:  "restore-settings.yaml",
		DefaultPreset: "restoration",
	}
}

// Load builds the configuration. path may be empty; a missing .env file is ignored.
//
// Arguments:
//   - path: The YAML configuration file, optional.
//   - envFiles: .env files to load before reading the environment.
//
// Returns:
//   - Config: The validated configuration.
//   - error: An error if a file cannot be parsed or the result is invalid.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, errors.Wrapf(err, "failed to load %s", f)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Logging.Level = v
	}
	if v, ok := os.LookupEnv(EnvLogFile); ok {
		c.Logging.File = v
	}
	if v, ok := os.LookupEnv(EnvSettingsPath); ok {
		c.SettingsPath = v
	}
	if v, ok := os.LookupEnv(EnvPreset); ok {
		c.DefaultPreset = v
	}
	if v, ok := os.LookupEnv(EnvDevelopment); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvDevelopment)
		}
		c.Logging.Development = b
	}
	if v, ok := os.LookupEnv(EnvProfile); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvProfile)
		}
		c.Profile = b
	}
	if v, ok := os.LookupEnv(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvWorkers)
		}
		c.Workers = n
	}
	if v, ok := os.LookupEnv(EnvPollInterval); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvPollInterval)
		}
		c.PollInterval = d
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return errors.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.PollInterval <= 0 {
		return errors.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	for _, p := range Presets {
		if strings.EqualFold(c.DefaultPreset, p) {
			return nil
		}
	}
	return errors.Errorf("unknown default preset %q", c.DefaultPreset)
}
