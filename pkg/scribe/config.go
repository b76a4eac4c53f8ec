package scribe

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all capture engine configuration.
type Config struct {
	// Target is the origin traffic is forwarded to.
	Target string `json:"target" yaml:"target"`

	// Listen is the address the proxy server binds to.
	Listen string `json:"listen" yaml:"listen"`

	// Title and Version fill the generated document's info block.
	Title   string `json:"title" yaml:"title"`
	Version string `json:"version" yaml:"version"`

	// Request timeout for forwarded traffic.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxBodyBytes caps how much of each body is captured.
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes"`

	// Rate limiting for forwarded traffic. Zero disables throttling.
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	// State persistence.
	State StateConfig `json:"state" yaml:"state"`

	// FormDiscovery registers endpoints found in HTML forms on proxied
	// pages before any live call reaches them.
	FormDiscovery bool `json:"form_discovery" yaml:"form_discovery"`

	// RecordAsync hands captures to the engine off the request path.
	RecordAsync bool `json:"record_async" yaml:"record_async"`

	// SkipTLSVerify disables upstream certificate checks.
	SkipTLSVerify bool `json:"skip_tls_verify" yaml:"skip_tls_verify"`

	// Verbose logging.
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Debug mode.
	Debug bool `json:"debug" yaml:"debug"`
}

// RateLimitConfig throttles forwarded traffic.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
}

// StateConfig controls on-disk persistence of captured traffic.
type StateConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	FilePath string `json:"file_path" yaml:"file_path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:        "127.0.0.1:8085",
		Title:         "Observed API",
		Version:       "0.0.1",
		Timeout:       30 * time.Second,
		MaxBodyBytes:  10 * 1024 * 1024,
		RateLimit:     RateLimitConfig{Burst: 10},
		FormDiscovery: true,
		RecordAsync:   true,
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if len(path) > 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("target URL is required")
	}

	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}

	if c.State.Enabled && c.State.FilePath == "" {
		return fmt.Errorf("state file path is required when persistence is enabled")
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	return clone
}
