// Package config loads and persists intermap configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete intermap configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	LiveChanges LiveChangesConfig `json:"liveChanges" mapstructure:"liveChanges"`
	Structure   StructureConfig   `json:"structure" mapstructure:"structure"`
	Ignore      IgnoreConfig      `json:"ignore" mapstructure:"ignore"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging"`
}

// LiveChangesConfig controls the live-change attribution engine
type LiveChangesConfig struct {
	// Mode selects the diff parsing and matching strategy: "optimized" or "legacy"
	Mode              string      `json:"mode" mapstructure:"mode"`
	GitTimeoutSeconds int         `json:"gitTimeoutSeconds" mapstructure:"gitTimeoutSeconds"`
	SymbolCache       CacheLimits `json:"symbolCache" mapstructure:"symbolCache"`
	BaselineCache     CacheLimits `json:"baselineCache" mapstructure:"baselineCache"`
}

// CacheLimits bounds an in-memory cache by entry count and approximate bytes
type CacheLimits struct {
	MaxEntries int `json:"maxEntries" mapstructure:"maxEntries"`
	MaxBytes   int `json:"maxBytes" mapstructure:"maxBytes"`
}

// StructureConfig controls code structure extraction
type StructureConfig struct {
	Language   string `json:"language" mapstructure:"language"`
	MaxResults int    `json:"maxResults" mapstructure:"maxResults"`
}

// IgnoreConfig controls ignore pattern handling
type IgnoreConfig struct {
	IncludeGitignore bool `json:"includeGitignore" mapstructure:"includeGitignore"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		RepoRoot: ".",
		LiveChanges: LiveChangesConfig{
			Mode:              "optimized",
			GitTimeoutSeconds: 10,
			SymbolCache: CacheLimits{
				MaxEntries: 2048,
				MaxBytes:   8 * 1024 * 1024,
			},
			BaselineCache: CacheLimits{
				MaxEntries: 1024,
				MaxBytes:   8 * 1024 * 1024,
			},
		},
		Structure: StructureConfig{
			Language:   "python",
			MaxResults: 1000,
		},
		Ignore: IgnoreConfig{
			IncludeGitignore: false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from .intermap/config.json
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)
	v.SetDefault("repoRoot", ".")

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, ".intermap"))

	if err := v.ReadInConfig(); err != nil {
		// If config doesn't exist, return default config
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to .intermap/config.json
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ".intermap")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.LiveChanges.GitTimeoutSeconds <= 0 {
		return &ConfigError{Field: "liveChanges.gitTimeoutSeconds", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
