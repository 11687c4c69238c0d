// Package config handles configuration loading and validation for tempo.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Range presets accepted by report and sync commands.
const (
	RangeToday     = "today"
	RangeThisWeek  = "this-week"
	RangeThisMonth = "this-month"
	RangeCustom    = "custom"
	RangeAll       = "all"
)

// Config holds the application configuration.
type Config struct {
	Report  ReportConfig `yaml:"report"`
	Sync    SyncConfig   `yaml:"sync"`
	Watch   WatchConfig  `yaml:"watch"`
	DataDir string       `yaml:"-"` // set by caller, not from config file
}

// ReportConfig holds reporting defaults.
type ReportConfig struct {
	// Period is the default granularity for period reports: day or week.
	Period string `yaml:"period"`
	// Range is the default range preset for report commands.
	Range string `yaml:"range"`
}

// SyncConfig holds sync bridge tuning.
type SyncConfig struct {
	// TimeoutMs is the per-request bridge timeout in milliseconds.
	TimeoutMs int64 `yaml:"timeout_ms"`
}

// WatchConfig holds live-view tuning.
type WatchConfig struct {
	// RefreshMs is the watch view refresh interval in milliseconds.
	RefreshMs int64 `yaml:"refresh_ms"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Report: ReportConfig{
			Period: "day",
			Range:  RangeThisWeek,
		},
		Sync: SyncConfig{
			TimeoutMs: 15_000,
		},
		Watch: WatchConfig{
			RefreshMs: 1_000,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the
// provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Report.Period == "" {
		c.Report.Period = defaults.Report.Period
	}
	if c.Report.Range == "" {
		c.Report.Range = defaults.Report.Range
	}
	if c.Sync.TimeoutMs == 0 {
		c.Sync.TimeoutMs = defaults.Sync.TimeoutMs
	}
	if c.Watch.RefreshMs == 0 {
		c.Watch.RefreshMs = defaults.Watch.RefreshMs
	}
}

// DataFile returns the path to the persistent KV namespace file.
func (c *Config) DataFile() string {
	return filepath.Join(c.DataDir, "tempo.json")
}

// IsValidRange reports whether preset is a known range preset.
func IsValidRange(preset string) bool {
	switch preset {
	case RangeToday, RangeThisWeek, RangeThisMonth, RangeCustom, RangeAll:
		return true
	default:
		return false
	}
}
