package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultServerURL is used when the config file does not name a server.
const DefaultServerURL = "http://localhost:3000"

// DefaultTypingCooldown mirrors the server contract: a typing indicator
// expires after three seconds without further input.
const DefaultTypingCooldown = 3 * time.Second

// Config represents the global ~/.chirp/config.toml.
type Config struct {
	ServerURL         string `toml:"server_url"`
	DefaultSession    string `toml:"default_session"`
	TypingCooldownSec int    `toml:"typing_cooldown_sec"`
}

// Load reads config from the given path. Returns an error if the file is
// missing; callers fall back to defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
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

// TypingCooldown returns the configured cooldown window or the default.
func (c *Config) TypingCooldown() time.Duration {
	if c == nil || c.TypingCooldownSec <= 0 {
		return DefaultTypingCooldown
	}
	return time.Duration(c.TypingCooldownSec) * time.Second
}
