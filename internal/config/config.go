// Package config provides configuration management for NumIntel.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lvonguyen/numintel/internal/api/gateway"
	"github.com/lvonguyen/numintel/internal/collect"
	"github.com/lvonguyen/numintel/internal/fusion"
	"github.com/lvonguyen/numintel/internal/investigation"
	"github.com/lvonguyen/numintel/internal/repository"
	"github.com/lvonguyen/numintel/internal/sources"
)

// Config holds all NumIntel configuration.
type Config struct {
	Server       ServerConfig                    `yaml:"server"`
	RateLimit    gateway.Config                  `yaml:"rate_limit"`
	Redis        repository.Config               `yaml:"redis"`
	Logging      LoggingConfig                   `yaml:"logging"`
	Fusion       fusion.Config                   `yaml:"fusion"`
	Orchestrator investigation.Config            `yaml:"orchestrator"`
	Sources      map[string]sources.ClientConfig `yaml:"sources"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Load reads configuration from a YAML file and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns sensible defaults, including the static source
// weight table. Weights are a property of each source's reliability;
// the fusion core never computes them.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		RateLimit:    gateway.DefaultConfig(),
		Redis:        repository.DefaultConfig(),
		Logging:      LoggingConfig{Level: "info", Format: "json"},
		Fusion:       fusion.DefaultConfig(),
		Orchestrator: investigation.DefaultConfig(),
		Sources: map[string]sources.ClientConfig{
			sources.SourceCarrierLookup: {
				Enabled:   true,
				BaseURL:   "https://api.carrierlookup.example.com",
				APIKeyEnv: "CARRIERLOOKUP_API_KEY",
				Timeout:   15 * time.Second,
				Weight:    0.9,
				Retry:     collect.DefaultRetryPolicy(),
			},
			sources.SourcePeopleFinder: {
				Enabled:   true,
				BaseURL:   "https://api.peoplefinder.example.com",
				APIKeyEnv: "PEOPLEFINDER_API_KEY",
				Timeout:   30 * time.Second,
				Weight:    0.7,
				Retry:     collect.DefaultRetryPolicy(),
			},
			sources.SourceBreachIndex: {
				Enabled:   true,
				BaseURL:   "https://api.breachindex.example.com",
				APIKeyEnv: "BREACHINDEX_API_KEY",
				Timeout:   30 * time.Second,
				Weight:    0.85,
				Retry:     collect.DefaultRetryPolicy(),
			},
			sources.SourceMailPattern: {
				Enabled: true,
				Weight:  0.3,
			},
			sources.SourceRecordScrape: {
				Enabled:   true,
				BaseURL:   "https://records.example.com",
				APIKeyEnv: "RECORDSCRAPE_API_KEY",
				Timeout:   60 * time.Second,
				Weight:    0.3,
				Retry:     collect.DefaultRetryPolicy(),
			},
			sources.SourceProfNet: {
				Enabled:   true,
				BaseURL:   "https://api.profnet.example.com",
				APIKeyEnv: "PROFNET_API_KEY",
				Timeout:   30 * time.Second,
				Weight:    0.6,
				Retry:     collect.DefaultRetryPolicy(),
			},
			sources.SourceCodeSearch: {
				Enabled:   true,
				BaseURL:   "https://api.codesearch.example.com",
				APIKeyEnv: "CODESEARCH_API_KEY",
				Timeout:   30 * time.Second,
				Weight:    0.5,
				Retry:     collect.DefaultRetryPolicy(),
			},
			sources.SourceNameIndex: {
				Enabled:   true,
				BaseURL:   "https://api.nameindex.example.com",
				APIKeyEnv: "NAMEINDEX_API_KEY",
				Timeout:   45 * time.Second,
				Weight:    0.4,
				Retry:     collect.DefaultRetryPolicy(),
			},
		},
	}
}

// Validate checks tuning values that would silently corrupt fusion or
// scheduling if out of range.
func (c *Config) Validate() error {
	if c.Fusion.SimilarityThreshold <= 0 || c.Fusion.SimilarityThreshold > 1 {
		return fmt.Errorf("fusion.similarity_threshold must be in (0,1], got %v", c.Fusion.SimilarityThreshold)
	}
	if c.Fusion.ConfidenceCap <= 0 || c.Fusion.ConfidenceCap >= 1 {
		return fmt.Errorf("fusion.confidence_cap must be in (0,1), got %v", c.Fusion.ConfidenceCap)
	}
	if c.Orchestrator.PoolSize < 1 {
		return fmt.Errorf("orchestrator.pool_size must be at least 1, got %d", c.Orchestrator.PoolSize)
	}
	for name, src := range c.Sources {
		if src.Weight < 0 || src.Weight > 1 {
			return fmt.Errorf("sources.%s.weight must be in [0,1], got %v", name, src.Weight)
		}
	}
	return nil
}

// EnabledSources returns the names of enabled sources.
func (c *Config) EnabledSources() []string {
	var names []string
	for name, src := range c.Sources {
		if src.Enabled {
			names = append(names, name)
		}
	}
	return names
}
