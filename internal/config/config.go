package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/farmkonnect/reconcile/internal/db"
)

// Config represents the application configuration
type Config struct {
	Database db.Config     `toml:"database"`
	Engine   EngineConfig  `toml:"engine"`
	Metrics  MetricsConfig `toml:"metrics"`
	Logging  LoggingConfig `toml:"logging"`
}

// EngineConfig holds reconciliation engine settings
type EngineConfig struct {
	// TickInterval is how often the run loop polls for due jobs.
	TickInterval time.Duration `toml:"tick_interval"`
	// ResultRetention bounds the per-job result history; zero keeps
	// everything.
	ResultRetention int `toml:"result_retention"`
	// HistoryLimit caps the flattened per-farm history view.
	HistoryLimit int `toml:"history_limit"`
}

// MetricsConfig holds metrics/monitoring settings
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Port    int    `toml:"port"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `toml:"level"`
	// File receives a JSON copy of the log stream when set.
	File string `toml:"file"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: db.Config{
			Driver:          "sqlite3",
			DSN:             "reconcile.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Engine: EngineConfig{
			TickInterval:    30 * time.Second,
			ResultRetention: 50,
			HistoryLimit:    100,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "0.0.0.0",
			Port:    9090,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a TOML file
func LoadFromFile(path string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	// Parse TOML file
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadConfig loads configuration: defaults first, then the config file
// when one is specified
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}
	return LoadFromFile(configPath)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Database validation
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver must be specified")
	}
	if c.Database.Driver != "sqlite3" {
		return fmt.Errorf("unsupported database driver: %s (must be sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN must be specified")
	}

	// Engine validation
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine tick_interval must be positive")
	}
	if c.Engine.ResultRetention < 0 {
		return fmt.Errorf("engine result_retention must not be negative")
	}
	if c.Engine.HistoryLimit < 0 {
		return fmt.Errorf("engine history_limit must not be negative")
	}

	// Metrics validation
	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics port must be between 1 and 65535")
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}
