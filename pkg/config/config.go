package config

import (
	"fmt"
	"os"

	"github.com/querybench/querybench/pkg/compare"
	"github.com/querybench/querybench/pkg/ingest"
	"github.com/querybench/querybench/pkg/naming"
	"github.com/querybench/querybench/pkg/scaling"
	"github.com/querybench/querybench/pkg/summary"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultRetryAttempts bounds remote storage read retries.
	DefaultRetryAttempts = 3

	// DefaultRetryDelay is the initial backoff between retries.
	DefaultRetryDelay = "500ms"
)

// Config is the root configuration for querybench.
type Config struct {
	Global GlobalConfig `yaml:"global"`

	Ingest  ingest.ClassifierConfig `yaml:"ingest"`
	Summary summary.Config          `yaml:"summary"`
	Naming  naming.Config           `yaml:"naming"`
	Compare compare.Config          `yaml:"compare"`
	Scaling scaling.Config          `yaml:"scaling"`

	// EnginePatterns maps JDBC driver-class substrings to engine tags.
	// Empty means the built-in table.
	EnginePatterns []naming.EnginePattern `yaml:"engine_patterns,omitempty"`

	// ClusterCores overrides the cluster-size core-count table.
	ClusterCores map[string]int `yaml:"cluster_cores,omitempty"`

	Storage StorageConfig `yaml:"storage"`
	API     APIConfig     `yaml:"api"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
}

// StorageConfig selects the storage backend run data lives in. Only
// one backend may be enabled at a time.
type StorageConfig struct {
	S3    *S3Config           `yaml:"s3,omitempty"`
	Local *LocalStorageConfig `yaml:"local,omitempty"`
}

// S3Config contains S3-compatible storage settings.
type S3Config struct {
	EndpointURL     string `yaml:"endpoint_url,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	StorageClass    string `yaml:"storage_class,omitempty"`
	ACL             string `yaml:"acl,omitempty"`

	// RetryAttempts and RetryDelay bound read retries. A read that
	// exhausts its attempts fails only the affected run's analysis.
	RetryAttempts int    `yaml:"retry_attempts,omitempty"`
	RetryDelay    string `yaml:"retry_delay,omitempty"`
}

// LocalStorageConfig reads run data from a local directory tree laid
// out the same way as the S3 bucket.
type LocalStorageConfig struct {
	Root string `yaml:"root"`
}

// Load reads and parses a configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// Default returns a configuration with every default applied, for
// commands that run without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()

	return cfg
}

// ApplyDefaults sets default values for unspecified options.
func (c *Config) ApplyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Naming.Rules == nil {
		c.Naming = naming.DefaultConfig()
	}

	if c.Storage.S3 != nil {
		if c.Storage.S3.RetryAttempts == 0 {
			c.Storage.S3.RetryAttempts = DefaultRetryAttempts
		}

		if c.Storage.S3.RetryDelay == "" {
			c.Storage.S3.RetryDelay = DefaultRetryDelay
		}
	}

	c.API.applyDefaults()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Storage.S3 != nil && c.Storage.Local != nil {
		return fmt.Errorf("storage: only one backend (s3 or local) may be configured")
	}

	if c.Storage.S3 != nil && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3: bucket is required")
	}

	if c.Storage.Local != nil && c.Storage.Local.Root == "" {
		return fmt.Errorf("storage.local: root is required")
	}

	return c.API.validate()
}
