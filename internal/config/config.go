// Package config loads the waved configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverBolt     = "bolt"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Cache eviction policies
const (
	PolicyRandom = "random"
	PolicyLRU    = "lru"
)

// Config is the root of the waved configuration file
type Config struct {
	Storage         StorageConfig `yaml:"storage"`
	HTTP            HTTPConfig    `yaml:"http"`
	LogLevel        string        `yaml:"log_level"`
	Cache           CacheConfig   `yaml:"cache"`
	StrictMonotonic bool          `yaml:"strict_monotonic"`
}

// StorageConfig selects the backend
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"` // путь к файлу для bolt/sqlite, строка подключения для postgres
}

// CacheConfig bounds the change-detection cache
type CacheConfig struct {
	Policy string `yaml:"policy"`
	Hard   int    `yaml:"hard"`
	Soft   int    `yaml:"soft"`
}

// HTTPConfig configures the API server
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	RateLimit       int           `yaml:"rate_limit"` // запросов на клиента за RateWindow, 0 - без лимита
	RateWindow      time.Duration `yaml:"rate_window"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Driver: DriverMemory},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			RateWindow:      time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Policy: PolicyRandom,
			Hard:   120,
			Soft:   100,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks driver, cache bounds and log level
func (c *Config) Validate() error {
	var errs *multierror.Error

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverBolt, DriverSQLite, DriverPostgres:
		if c.Storage.DSN == "" {
			errs = multierror.Append(errs, fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	switch c.Cache.Policy {
	case PolicyRandom:
		if c.Cache.Soft < 1 || c.Cache.Soft > c.Cache.Hard {
			errs = multierror.Append(errs, fmt.Errorf("cache bounds must satisfy 1 <= soft <= hard, got %d/%d", c.Cache.Soft, c.Cache.Hard))
		}
	case PolicyLRU:
		if c.Cache.Hard < 1 {
			errs = multierror.Append(errs, errors.New("cache.hard must be positive"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown cache policy %q", c.Cache.Policy))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = multierror.Append(errs, err)
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.RateWindow <= 0 {
		errs = multierror.Append(errs, errors.New("http.rate_window must be positive when rate_limit is set"))
	}

	return errs.ErrorOrNil()
}

// ParseLevel maps debug/info/warn/error to slog levels
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}
