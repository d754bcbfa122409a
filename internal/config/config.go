package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Passes         Passes        `yaml:"passes"`
	AgeThresholds  AgeThresholds `yaml:"age_thresholds"`
	Scan           ScanConfig    `yaml:"scan"`
	Trash          TrashConfig   `yaml:"trash"`
	Monitor        MonitorConfig `yaml:"monitor"`
	Logging        LoggingConfig `yaml:"logging"`
	ProtectedPaths []string      `yaml:"protected_paths"`
	Verbose        bool          `yaml:"verbose"`
}

// Passes defines which scan passes are enabled by default
type Passes struct {
	Caches           bool `yaml:"caches"`
	Logs             bool `yaml:"logs"`
	Packages         bool `yaml:"packages"`
	FilesystemHealth bool `yaml:"filesystem_health"`
	StorageRecovery  bool `yaml:"storage_recovery"`
}

// AgeThresholds defines age cutoffs (in days) for different categories
type AgeThresholds struct {
	Downloads    int `yaml:"downloads"`
	Logs         int `yaml:"logs"`
	OrphanedTemp int `yaml:"orphaned_temp"`
}

// ScanConfig bounds traversal cost
type ScanConfig struct {
	IncludeHidden      bool   `yaml:"include_hidden"`
	MaxDepth           int    `yaml:"max_depth"`
	MaxItems           int    `yaml:"max_items"`
	LargeFileThreshold string `yaml:"large_file_threshold"`
	DuplicateMinSize   string `yaml:"duplicate_min_size"`
	HashWorkers        int    `yaml:"hash_workers"`
	TimeoutMinutes     int    `yaml:"timeout_minutes"`
}

// TrashConfig controls the recoverable-deletion engine
type TrashConfig struct {
	RetentionDays int `yaml:"retention_days"`
	SweepHours    int `yaml:"sweep_hours"`
}

// MonitorConfig controls the cache-growth watcher
type MonitorConfig struct {
	Enabled       bool     `yaml:"enabled"`
	WatchPaths    []string `yaml:"watch_paths"`
	SnapshotHours int      `yaml:"snapshot_hours"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load loads configuration from a file, falling back to defaults when the
// file does not exist.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefault(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Save saves configuration to a file
func Save(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.AgeThresholds.Downloads < 0 {
		return fmt.Errorf("downloads age threshold must be >= 0")
	}
	if c.AgeThresholds.Logs < 0 {
		return fmt.Errorf("logs age threshold must be >= 0")
	}
	if c.AgeThresholds.OrphanedTemp < 0 {
		return fmt.Errorf("orphaned temp age threshold must be >= 0")
	}

	if c.Trash.RetentionDays < 1 {
		return fmt.Errorf("trash retention must be at least 1 day")
	}

	if c.Scan.MaxDepth < 1 {
		return fmt.Errorf("scan max depth must be at least 1")
	}
	if c.Scan.MaxItems < 1 {
		return fmt.Errorf("scan max items must be at least 1")
	}
	if c.Scan.HashWorkers < 0 {
		return fmt.Errorf("scan hash workers must be >= 0")
	}

	for _, path := range c.ProtectedPaths {
		if !filepath.IsAbs(path) {
			return fmt.Errorf("protected path must be absolute: %s", path)
		}
	}

	return nil
}

// GetConfigPath returns the default config path
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "sweeper", "config.yaml"), nil
}
