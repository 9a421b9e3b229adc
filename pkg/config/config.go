// Package config loads and validates application configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:feedtide.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Schedule struct {
		PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" jsonschema:"default=5m,description=How often the due-feeds check runs"`
		FetchPacing  time.Duration `yaml:"fetch_pacing" json:"fetch_pacing" jsonschema:"default=500ms,description=Delay between consecutive feed fetches in one cycle"`
		FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout" jsonschema:"default=30s,description=HTTP timeout for a single feed fetch"`
		UserAgent    string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=feedtide/1.0,description=User agent for feed requests"`
	} `yaml:"schedule" json:"schedule" jsonschema:"description=Feed polling configuration"`

	Enrichment EnrichmentConfig `yaml:"enrichment" json:"enrichment" jsonschema:"description=OpenGraph enrichment configuration"`
}

// EnrichmentConfig holds OpenGraph enrichment settings
type EnrichmentConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled" jsonschema:"default=true,description=Enable OpenGraph enrichment of new articles"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=10s,description=HTTP timeout per article page"`
	Pacing    time.Duration `yaml:"pacing" json:"pacing" jsonschema:"default=100ms,description=Delay between article pages in one batch"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=feedtide/1.0,description=User agent for page requests"`
}

// Load reads configuration from a YAML file, expanding environment
// variables before parsing
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	if c.Database.DSN == "" {
		c.Database.DSN = "file:feedtide.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	if c.Schedule.PollInterval == 0 {
		c.Schedule.PollInterval = 5 * time.Minute
	}
	if c.Schedule.FetchPacing == 0 {
		c.Schedule.FetchPacing = 500 * time.Millisecond
	}
	if c.Schedule.FetchTimeout == 0 {
		c.Schedule.FetchTimeout = 30 * time.Second
	}
	if c.Schedule.UserAgent == "" {
		c.Schedule.UserAgent = "feedtide/1.0"
	}

	if c.Enrichment.Timeout == 0 {
		c.Enrichment.Timeout = 10 * time.Second
	}
	if c.Enrichment.Pacing == 0 {
		c.Enrichment.Pacing = 100 * time.Millisecond
	}
	if c.Enrichment.UserAgent == "" {
		c.Enrichment.UserAgent = "feedtide/1.0"
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Schedule.PollInterval < time.Minute {
		return fmt.Errorf("schedule.poll_interval must be at least 1m")
	}
	if cfg.Schedule.FetchPacing < 0 {
		return fmt.Errorf("schedule.fetch_pacing must be non-negative")
	}
	if cfg.Schedule.FetchTimeout < time.Second {
		return fmt.Errorf("schedule.fetch_timeout must be at least 1s")
	}
	if cfg.Enrichment.Pacing < 0 {
		return fmt.Errorf("enrichment.pacing must be non-negative")
	}
	return nil
}
