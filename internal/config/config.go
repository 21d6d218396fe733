package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all pyforge settings. Values come from defaults, an optional
// YAML config file, and PYFORGE_* environment variables, in that order.
type Config struct {
	DataDir         string
	DBPath          string
	RequirementsDir string
	TemplatesDir    string

	Embedded EmbeddedConfig
	Health   HealthConfig
	Logger   LoggerConfig

	// SearchPaths are extra directories scanned for Python installations,
	// in addition to PATH and the managed embedded directory.
	SearchPaths []string
}

// EmbeddedConfig controls embedded-distribution provisioning.
type EmbeddedConfig struct {
	Version    string
	BaseURL    string
	InstallDir string
}

// HealthConfig controls the background health monitor.
type HealthConfig struct {
	Interval time.Duration
}

// LoggerConfig controls logrus output.
type LoggerConfig struct {
	Level  string
	Format string
}

// Load reads configuration. configFile may be empty, in which case only
// defaults, <dataDir>/pyforge.yaml (if present), and environment apply.
func Load(configFile string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	dataDir := filepath.Join(home, ".pyforge")

	v := viper.New()

	// Defaults
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("requirements_dir", "")
	v.SetDefault("templates_dir", "")
	v.SetDefault("embedded.version", "3.11.9")
	v.SetDefault("embedded.base_url", "https://github.com/indygreg/python-build-standalone/releases/download")
	v.SetDefault("embedded.install_dir", "")
	v.SetDefault("health.interval", "15m")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("search_paths", []string{})

	// Optional config file
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("pyforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(dataDir)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				if !os.IsNotExist(err) {
					return nil, fmt.Errorf("failed to read config: %w", err)
				}
			}
		}
	}

	// Env
	v.SetEnvPrefix("PYFORGE")
	v.AutomaticEnv()

	cfg := &Config{
		DataDir:         v.GetString("data_dir"),
		RequirementsDir: v.GetString("requirements_dir"),
		TemplatesDir:    v.GetString("templates_dir"),
		Embedded: EmbeddedConfig{
			Version:    v.GetString("embedded.version"),
			BaseURL:    v.GetString("embedded.base_url"),
			InstallDir: v.GetString("embedded.install_dir"),
		},
		Health: HealthConfig{
			Interval: v.GetDuration("health.interval"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("logger.level"),
			Format: v.GetString("logger.format"),
		},
		SearchPaths: v.GetStringSlice("search_paths"),
	}

	// Derived paths default under the data dir.
	cfg.DBPath = filepath.Join(cfg.DataDir, "pyforge.db")
	if cfg.RequirementsDir == "" {
		cfg.RequirementsDir = filepath.Join(cfg.DataDir, "requirements")
	}
	if cfg.TemplatesDir == "" {
		cfg.TemplatesDir = filepath.Join(cfg.DataDir, "templates")
	}
	if cfg.Embedded.InstallDir == "" {
		cfg.Embedded.InstallDir = filepath.Join(cfg.DataDir, "embedded", cfg.Embedded.Version)
	}
	if cfg.Health.Interval <= 0 {
		cfg.Health.Interval = 15 * time.Minute
	}

	return cfg, nil
}

// EnvsDir returns the directory that managed virtualenvs are created under.
func (c *Config) EnvsDir() string {
	return filepath.Join(c.DataDir, "envs")
}

// EnsureDirs creates the data directory tree.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.RequirementsDir, c.TemplatesDir, c.EnvsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
