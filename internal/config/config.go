// Package config handles application configuration from a .env file, an
// optional YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Port        string         `yaml:"port" validate:"required,numeric"`
	Env         string         `yaml:"env"`
	LogLevel    string         `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	HTTPTimeout time.Duration  `yaml:"http_timeout" validate:"gte=0"`
	Database    DatabaseConfig `yaml:"database"`
	Feed        FeedConfig     `yaml:"feed"`
}

// DatabaseConfig locates the document store. Both values may be empty; the
// server then runs without a database and reports so on /test.
type DatabaseConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// FeedConfig configures the optional GTFS-realtime transit ingester.
type FeedConfig struct {
	URL      string        `yaml:"url" validate:"omitempty,url"`
	Agency   string        `yaml:"agency"`
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:        "8000",
		Env:         "development",
		LogLevel:    "info",
		HTTPTimeout: 15 * time.Second,
		Feed: FeedConfig{
			Interval: 60 * time.Second,
			CacheTTL: 10 * time.Minute,
		},
	}
}

// Load builds the configuration. A .env file in the working directory is
// loaded first if present, then the YAML file at path (if path is not
// empty), then environment variables override individual values.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Env = getEnv("ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.HTTPTimeout = getSecondsEnv("HTTP_TIMEOUT_SECONDS", c.HTTPTimeout)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.Name = getEnv("DATABASE_NAME", c.Database.Name)

	c.Feed.URL = getEnv("FEED_URL", c.Feed.URL)
	c.Feed.Agency = getEnv("FEED_AGENCY", c.Feed.Agency)
	c.Feed.Interval = getSecondsEnv("FEED_INTERVAL_SECONDS", c.Feed.Interval)
	c.Feed.CacheTTL = getSecondsEnv("CACHE_TTL_SECONDS", c.Feed.CacheTTL)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Validate checks that configured values are well formed.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
