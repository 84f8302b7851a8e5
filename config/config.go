// Package config provides configuration loading for dining-cli.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/robertmeta/dining-cli/api"
	"github.com/robertmeta/dining-cli/identity"
	"gopkg.in/yaml.v3"
)

// Config represents the complete dining-cli configuration
type Config struct {
	Endpoints api.Endpoints           `yaml:"endpoints"`
	Firebase  identity.FirebaseConfig `yaml:"firebase"`
	Store     StoreConfig             `yaml:"store"`
	Log       LogConfig               `yaml:"log"`
	MenuFeed  MenuFeedConfig          `yaml:"menu_feed"`
	Session   SessionConfig           `yaml:"session"`
}

// StoreConfig configures the local snapshot database
type StoreConfig struct {
	// Path is the SQLite file (default: ~/.config/dining-cli/dining-cli.db)
	Path string `yaml:"path"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
}

// MenuFeedConfig configures the RSS/Atom menu import
type MenuFeedConfig struct {
	URL string `yaml:"url"`
}

// SessionConfig configures the rating synchronizer
type SessionConfig struct {
	// RefetchAfterRate starts a background catalog refresh after each rating
	RefetchAfterRate bool `yaml:"refetch_after_rate"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Firebase: identity.FirebaseConfig{
			SignInURL: identity.DefaultSignInURL,
			TokenURL:  identity.DefaultTokenURL,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid. Endpoints are checked
// per operation, not here.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Firebase.SignInURL == "" {
		return fmt.Errorf("firebase.sign_in_url is required")
	}
	if c.Firebase.TokenURL == "" {
		return fmt.Errorf("firebase.token_url is required")
	}
	return nil
}

// ParseLevel converts a level name to a slog.Level
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: expected debug, info, warn or error", level)
	}
	return l, nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Endpoints
	mergeString(&c.Endpoints.Catalog, other.Endpoints.Catalog)
	mergeString(&c.Endpoints.Rate, other.Endpoints.Rate)
	mergeString(&c.Endpoints.LogMacros, other.Endpoints.LogMacros)
	mergeString(&c.Endpoints.FetchMacros, other.Endpoints.FetchMacros)
	mergeString(&c.Endpoints.ResetMacros, other.Endpoints.ResetMacros)
	mergeString(&c.Endpoints.RatedHistory, other.Endpoints.RatedHistory)
	mergeString(&c.Endpoints.RegisterUser, other.Endpoints.RegisterUser)

	// Firebase
	mergeString(&c.Firebase.APIKey, other.Firebase.APIKey)
	mergeString(&c.Firebase.SignInURL, other.Firebase.SignInURL)
	mergeString(&c.Firebase.TokenURL, other.Firebase.TokenURL)

	mergeString(&c.Store.Path, other.Store.Path)
	mergeString(&c.Log.Level, other.Log.Level)
	mergeString(&c.MenuFeed.URL, other.MenuFeed.URL)

	if other.Session.RefetchAfterRate {
		c.Session.RefetchAfterRate = true
	}
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}
