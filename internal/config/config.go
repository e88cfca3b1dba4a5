// Package config handles application configuration loading from an optional
// YAML file and environment variables. Environment variables win over the
// file; the file wins over built-in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration values.
type Config struct {
	// Server settings
	Host           string        `yaml:"host"`
	Port           string        `yaml:"port"`
	Env            string        `yaml:"env"` // "development", "production", "testing"
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimit      int           `yaml:"rate_limit"` // mutating requests per minute per client, 0 disables

	// Logging
	LogLevel  string `yaml:"log_level"`  // "debug", "info", "warn", "error"
	LogFormat string `yaml:"log_format"` // "text" or "json"

	// Database
	DBDriver   string `yaml:"db_driver"` // "postgres" or "sqlite"
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	SQLitePath string `yaml:"sqlite_path"`

	// Category tree
	MaxTreeDepth int `yaml:"max_tree_depth"`

	// Valkey (Redis-compatible cache); empty host disables the tree cache
	ValkeyHost     string        `yaml:"valkey_host"`
	ValkeyPort     string        `yaml:"valkey_port"`
	ValkeyPassword string        `yaml:"valkey_password"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// defaults returns the development configuration.
func defaults() *Config {
	return &Config{
		Host:           "0.0.0.0",
		Port:           "8080",
		Env:            "development",
		RequestTimeout: 10 * time.Second,
		RateLimit:      120,

		LogLevel:  "debug",
		LogFormat: "text",

		DBDriver:   "postgres",
		DBHost:     "localhost",
		DBPort:     "5432",
		DBUser:     "eventtree",
		DBPassword: "changeme",
		DBName:     "eventtree",
		SQLitePath: "eventtree.db",

		MaxTreeDepth: 512,

		ValkeyPort: "6379",
		CacheTTL:   5 * time.Minute,
	}
}

// Load reads configuration from the file named by CONFIG_FILE (if set) and
// from environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile reads configuration from the YAML file at path, when path is not
// empty, then applies environment variable overrides. Returns an error if
// critical values are missing in production mode.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Host = envOrDefault("APP_HOST", cfg.Host)
	cfg.Port = envOrDefault("APP_PORT", cfg.Port)
	cfg.Env = envOrDefault("APP_ENV", cfg.Env)

	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOrDefault("LOG_FORMAT", cfg.LogFormat)

	cfg.DBDriver = envOrDefault("DB_DRIVER", cfg.DBDriver)
	cfg.DBHost = envOrDefault("POSTGRES_HOST", cfg.DBHost)
	cfg.DBPort = envOrDefault("POSTGRES_PORT", cfg.DBPort)
	cfg.DBUser = envOrDefault("POSTGRES_USER", cfg.DBUser)
	cfg.DBPassword = envOrDefault("POSTGRES_PASSWORD", cfg.DBPassword)
	cfg.DBName = envOrDefault("POSTGRES_DB", cfg.DBName)
	cfg.SQLitePath = envOrDefault("SQLITE_PATH", cfg.SQLitePath)

	cfg.ValkeyHost = envOrDefault("VALKEY_HOST", cfg.ValkeyHost)
	cfg.ValkeyPort = envOrDefault("VALKEY_PORT", cfg.ValkeyPort)
	cfg.ValkeyPassword = envOrDefault("VALKEY_PASSWORD", cfg.ValkeyPassword)

	var err error
	if cfg.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return err
	}
	if cfg.CacheTTL, err = envDuration("CACHE_TTL", cfg.CacheTTL); err != nil {
		return err
	}
	if cfg.RateLimit, err = envInt("RATE_LIMIT", cfg.RateLimit); err != nil {
		return err
	}
	if cfg.MaxTreeDepth, err = envInt("MAX_TREE_DEPTH", cfg.MaxTreeDepth); err != nil {
		return err
	}
	return nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}

	if c.MaxTreeDepth <= 0 {
		return fmt.Errorf("MAX_TREE_DEPTH must be positive, got %d", c.MaxTreeDepth)
	}

	if c.Env == "production" {
		if c.DBDriver == "postgres" && c.DBPassword == "changeme" {
			return fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
	}
	return nil
}

// DSN returns the connection string for the configured driver: a PostgreSQL
// URL, or the SQLite file path.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// CacheEnabled reports whether a Valkey host is configured.
func (c *Config) CacheEnabled() bool {
	return c.ValkeyHost != ""
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
