package config

import (
	"fmt"
	"time"
)

// API server defaults.
const (
	DefaultAPIListen           = ":8080"
	DefaultRequestsPerMinute   = 120
	DefaultIndexingInterval    = "5m"
	DefaultIndexingConcurrency = 4
	DefaultDatabaseDriver      = "sqlite"
	DefaultDatabaseDSN         = "querybench-index.db"
)

// APIConfig contains all API server configuration.
type APIConfig struct {
	Server   APIServerConfig    `yaml:"server"`
	Database DatabaseConfig     `yaml:"database"`
	Indexing *APIIndexingConfig `yaml:"indexing,omitempty"`
}

// APIServerConfig contains HTTP server settings.
type APIServerConfig struct {
	Listen      string          `yaml:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute,omitempty"`
	Burst             int  `yaml:"burst,omitempty"`
}

// DatabaseConfig selects the runs-index database backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// APIIndexingConfig configures the background indexing service that
// scans storage and maintains a queryable runs index.
type APIIndexingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Interval    string `yaml:"interval,omitempty"`
	Concurrency int    `yaml:"concurrency,omitempty"`
}

func (c *APIConfig) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultAPIListen
	}

	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerMinute == 0 {
		c.Server.RateLimit.RequestsPerMinute = DefaultRequestsPerMinute
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDatabaseDriver
	}

	if c.Database.DSN == "" {
		c.Database.DSN = DefaultDatabaseDSN
	}

	if c.Indexing != nil {
		if c.Indexing.Interval == "" {
			c.Indexing.Interval = DefaultIndexingInterval
		}

		if c.Indexing.Concurrency == 0 {
			c.Indexing.Concurrency = DefaultIndexingConcurrency
		}
	}
}

func (c *APIConfig) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("api.database: unknown driver %q (sqlite or postgres)", c.Database.Driver)
	}

	if c.Indexing != nil && c.Indexing.Interval != "" {
		if _, err := time.ParseDuration(c.Indexing.Interval); err != nil {
			return fmt.Errorf("api.indexing: invalid interval: %w", err)
		}
	}

	return nil
}

// IndexingInterval returns the parsed indexing interval.
func (c *APIConfig) IndexingInterval() time.Duration {
	if c.Indexing == nil || c.Indexing.Interval == "" {
		d, _ := time.ParseDuration(DefaultIndexingInterval)

		return d
	}

	d, err := time.ParseDuration(c.Indexing.Interval)
	if err != nil {
		d, _ = time.ParseDuration(DefaultIndexingInterval)
	}

	return d
}
