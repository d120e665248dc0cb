package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultServerURL is used when no server is configured.
const DefaultServerURL = "http://localhost:4000"

// DefaultRequestTimeoutSeconds bounds every outgoing API call.
const DefaultRequestTimeoutSeconds = 15

// Config represents the global ~/.parley/config.toml.
type Config struct {
	DefaultProfile        string `toml:"default_profile"`
	ServerURL             string `toml:"server_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ServerURLOrDefault returns the configured server URL or the default.
func (c *Config) ServerURLOrDefault() string {
	if c == nil || c.ServerURL == "" {
		return DefaultServerURL
	}
	return c.ServerURL
}

// RequestTimeoutOrDefault returns the configured request timeout in seconds.
func (c *Config) RequestTimeoutOrDefault() int {
	if c == nil || c.RequestTimeoutSeconds <= 0 {
		return DefaultRequestTimeoutSeconds
	}
	return c.RequestTimeoutSeconds
}
