// Package config loads YAML configuration with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Sync     SyncConfig     `yaml:"sync"`
	Server   ServerConfig   `yaml:"server"`
	Admin    AdminConfig    `yaml:"admin"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	// DSN is a file path for sqlite or a connection string for postgres.
	DSN string `yaml:"dsn"`
}

// SyncConfig configures the feed synchronization pipeline.
type SyncConfig struct {
	Interval     string `yaml:"interval"`
	FetchTimeout string `yaml:"fetch_timeout"`
	Workers      int    `yaml:"workers"`
}

// ParseInterval returns the sync period as time.Duration.
func (s SyncConfig) ParseInterval() time.Duration {
	d, err := time.ParseDuration(s.Interval)
	if err != nil {
		return 300 * time.Second
	}
	return d
}

// ParseFetchTimeout returns the per-fetch timeout as time.Duration.
func (s SyncConfig) ParseFetchTimeout() time.Duration {
	d, err := time.ParseDuration(s.FetchTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// AdminConfig seeds the admin account.
type AdminConfig struct {
	Password string `yaml:"password"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "./mercury.db",
		},
		Sync: SyncConfig{
			Interval:     "300s",
			FetchTimeout: "30s",
			Workers:      8,
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MERCURY_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("MERCURY_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("MERCURY_SYNC_INTERVAL"); v != "" {
		cfg.Sync.Interval = v
	}
	if v := os.Getenv("MERCURY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("MERCURY_ADMIN_PASS"); v != "" {
		cfg.Admin.Password = v
	}
}
