// Package config holds the relay settings loaded from YAML and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultAPIBaseURL     = "http://localhost:3000"
	DefaultTimeoutSeconds = 15.0
	DefaultPeriod         = 3600
	DefaultWidth          = 900
	DefaultHeight         = 200
	DefaultGraphFilename  = "zabbix-graph.png"
	DefaultArchivePrefix  = "charts"
	DefaultArchiveKeep    = 50
)

// ErrInvalid marks a configuration that fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the application configuration.
type Config struct {
	API struct {
		BaseURL        string  `yaml:"base_url"`
		Token          string  `yaml:"token"`
		TimeoutSeconds float64 `yaml:"timeout_seconds"`
		Insecure       bool    `yaml:"insecure"`
	} `yaml:"api"`
	Zabbix struct {
		URL      string `yaml:"url"`
		Token    string `yaml:"token"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"zabbix"`
	Graph struct {
		Period   int    `yaml:"period"`
		Width    int    `yaml:"width"`
		Height   int    `yaml:"height"`
		Filename string `yaml:"filename"`
	} `yaml:"graph"`
	Archive struct {
		Enabled         bool   `yaml:"enabled"`
		Bucket          string `yaml:"bucket"`
		Region          string `yaml:"region"`
		Endpoint        string `yaml:"endpoint"`
		AccessKeyID     string `yaml:"access_key_id"`
		SecretAccessKey string `yaml:"secret_access_key"`
		Prefix          string `yaml:"prefix"`
		Keep            int    `yaml:"keep"`
	} `yaml:"archive"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(&cfg)
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultAPIBaseURL
	}
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if cfg.Graph.Period == 0 {
		cfg.Graph.Period = DefaultPeriod
	}
	if cfg.Graph.Width == 0 {
		cfg.Graph.Width = DefaultWidth
	}
	if cfg.Graph.Height == 0 {
		cfg.Graph.Height = DefaultHeight
	}
	if cfg.Graph.Filename == "" {
		cfg.Graph.Filename = DefaultGraphFilename
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = DefaultArchivePrefix
	}
	if cfg.Archive.Keep == 0 {
		cfg.Archive.Keep = DefaultArchiveKeep
	}
}

// Timeout returns the per-request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds * float64(time.Second))
}

// Validate checks the settings needed before any request is made. A graph
// request requires the Zabbix URL. Graph dimensions are passed to Zabbix as
// given.
func (c *Config) Validate(graphRequested bool) error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: --api-base-url must not be empty", ErrInvalid)
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: --timeout must be positive", ErrInvalid)
	}
	if !graphRequested {
		return nil
	}
	if c.Zabbix.URL == "" {
		return fmt.Errorf("%w: --zabbix-url is required when --graph-id is used", ErrInvalid)
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("%w: archive.bucket is required when archiving is enabled", ErrInvalid)
	}
	return nil
}
