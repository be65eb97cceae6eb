// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Entities EntitiesConfig `yaml:"entities"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite3" (cgo) or "sqlite" (pure Go)
	DSN    string `yaml:"dsn"`
}

// EngineConfig configures the persistence engine.
type EngineConfig struct {
	// Transactional wraps each save, cascade included, in a transaction.
	// Pointer to distinguish "not set" (default true) from false.
	Transactional *bool `yaml:"transactional"`
	PageSize      int   `yaml:"page_size"` // rows per cursor query
	MaxDepth      int   `yaml:"max_depth"` // longest reference chain followed
}

// IsTransactional reports whether saves run in a transaction.
func (e EngineConfig) IsTransactional() bool {
	return e.Transactional == nil || *e.Transactional
}

// EntitiesConfig lists where entity declarations are loaded from.
type EntitiesConfig struct {
	Paths []string `yaml:"paths"` // YAML files or directories
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// ServerConfig configures the browse API server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	ROWMAP_DATABASE_DRIVER       - sqlite3 or sqlite (default: sqlite3)
//	ROWMAP_DATABASE_DSN          - Database path (default: rowmap.db)
//	ROWMAP_ENGINE_TRANSACTIONAL  - Wrap saves in a transaction (default: true)
//	ROWMAP_ENGINE_PAGE_SIZE      - Rows per cursor query (default: 100)
//	ROWMAP_ENGINE_MAX_DEPTH      - Longest reference chain (default: 32)
//	ROWMAP_ENTITIES_PATHS        - Comma separated declaration paths (default: entities)
//	ROWMAP_LOG_LEVEL             - Log level: debug, info, warn, error (default: info)
//	ROWMAP_LOG_FORMAT            - Log format: json or console (default: json)
//	ROWMAP_METRICS_ENABLED       - Enable /metrics endpoint (default: false)
//	ROWMAP_METRICS_PATH          - Metrics path (default: /metrics)
//	ROWMAP_SERVER_HOST           - Server host (default: 127.0.0.1)
//	ROWMAP_SERVER_PORT           - Server port (default: 8090)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to environment
// variables and defaults otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// HasEnvConfig returns true if a database is configured through the environment.
func HasEnvConfig() bool {
	return os.Getenv("ROWMAP_DATABASE_DSN") != ""
}

// applyEnvOverrides applies ROWMAP_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Database configuration
	if v := os.Getenv("ROWMAP_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("ROWMAP_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Engine configuration
	if v := os.Getenv("ROWMAP_ENGINE_TRANSACTIONAL"); v != "" {
		b := parseBool(v)
		cfg.Engine.Transactional = &b
	}
	if v := os.Getenv("ROWMAP_ENGINE_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.PageSize = n
		}
	}
	if v := os.Getenv("ROWMAP_ENGINE_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxDepth = n
		}
	}

	// Entity declarations
	if v := os.Getenv("ROWMAP_ENTITIES_PATHS"); v != "" {
		var paths []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		cfg.Entities.Paths = paths
	}

	// Logging configuration
	if v := os.Getenv("ROWMAP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ROWMAP_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("ROWMAP_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("ROWMAP_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// Server configuration
	if v := os.Getenv("ROWMAP_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ROWMAP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite3"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "rowmap.db"
	}

	if cfg.Engine.Transactional == nil {
		t := true
		cfg.Engine.Transactional = &t
	}
	if cfg.Engine.PageSize == 0 {
		cfg.Engine.PageSize = 100
	}
	if cfg.Engine.MaxDepth == 0 {
		cfg.Engine.MaxDepth = 32
	}

	if len(cfg.Entities.Paths) == 0 {
		cfg.Entities.Paths = []string{"entities"}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
}

func validate(cfg *Config) error {
	validDrivers := map[string]bool{"sqlite3": true, "sqlite": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite3' or 'sqlite', got %q", cfg.Database.Driver)
	}

	if cfg.Engine.PageSize < 1 {
		return fmt.Errorf("engine.page_size must be positive, got %d", cfg.Engine.PageSize)
	}
	if cfg.Engine.MaxDepth < 1 {
		return fmt.Errorf("engine.max_depth must be positive, got %d", cfg.Engine.MaxDepth)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", cfg.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	return nil
}
