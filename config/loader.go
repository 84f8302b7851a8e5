package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	// UserConfigDir is the directory for user-level config and data
	UserConfigDir = ".config/dining-cli"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
	// DatabaseFile is the name of the snapshot database
	DatabaseFile = "dining-cli.db"
	// EnvFile is the dotenv file read from the working directory
	EnvFile = ".env"
)

// envBindings maps environment variables to config fields. Later entries
// win, so the DINING_ names override the frontend-era VITE_ aliases.
var envBindings = []struct {
	name string
	set  func(c *Config, v string)
}{
	{"VITE_FETCH_USER_MACROS_URL", func(c *Config, v string) { c.Endpoints.FetchMacros = v }},
	{"VITE_HANDLE_RESET_USER_MACROS_URL", func(c *Config, v string) { c.Endpoints.ResetMacros = v }},
	{"VITE_MAKE_USER_URL", func(c *Config, v string) { c.Endpoints.RegisterUser = v }},
	{"DINING_CATALOG_URL", func(c *Config, v string) { c.Endpoints.Catalog = v }},
	{"DINING_RATE_URL", func(c *Config, v string) { c.Endpoints.Rate = v }},
	{"DINING_LOG_MACROS_URL", func(c *Config, v string) { c.Endpoints.LogMacros = v }},
	{"DINING_FETCH_MACROS_URL", func(c *Config, v string) { c.Endpoints.FetchMacros = v }},
	{"DINING_RESET_MACROS_URL", func(c *Config, v string) { c.Endpoints.ResetMacros = v }},
	{"DINING_RATED_URL", func(c *Config, v string) { c.Endpoints.RatedHistory = v }},
	{"DINING_REGISTER_URL", func(c *Config, v string) { c.Endpoints.RegisterUser = v }},
	{"DINING_FIREBASE_API_KEY", func(c *Config, v string) { c.Firebase.APIKey = v }},
	{"DINING_FIREBASE_SIGN_IN_URL", func(c *Config, v string) { c.Firebase.SignInURL = v }},
	{"DINING_FIREBASE_TOKEN_URL", func(c *Config, v string) { c.Firebase.TokenURL = v }},
	{"DINING_DB", func(c *Config, v string) { c.Store.Path = v }},
	{"DINING_LOG_LEVEL", func(c *Config, v string) { c.Log.Level = v }},
	{"DINING_MENU_FEED_URL", func(c *Config, v string) { c.MenuFeed.URL = v }},
	{"DINING_REFETCH_AFTER_RATE", func(c *Config, v string) {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Session.RefetchAfterRate = b
		}
	}},
}

// ApplyEnv overrides fields from variables found by lookup. Empty values
// are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for _, b := range envBindings {
		if v, ok := lookup(b.name); ok && v != "" {
			b.set(c, v)
		}
	}
}

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
	// ConfigPath overrides the user config file
	ConfigPath string
	// EnvPath overrides the dotenv file
	EnvPath string
	lookupEnv func(string) (string, bool)
	homeDir   func() (string, error)
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger:    logger,
		lookupEnv: os.LookupEnv,
		homeDir:   os.UserHomeDir,
	}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/dining-cli/config.yaml or ConfigPath)
// 3. Dotenv file (.env in the working directory or EnvPath)
// 4. Process environment variables
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Load user config
	configPath := l.ConfigPath
	if configPath == "" {
		configPath = l.userPath(UserConfigFile)
	}
	if configPath != "" {
		if fileConfig, err := LoadFromFile(configPath); err == nil {
			l.logger.Debug("Loaded config file", slog.String("path", configPath))
			config.Merge(fileConfig)
		} else if l.ConfigPath != "" || !errors.Is(err, os.ErrNotExist) {
			// An explicit path must exist
			return nil, err
		}
	}

	// Dotenv values sit between the file and the real environment
	envPath := l.EnvPath
	if envPath == "" {
		envPath = EnvFile
	}
	if values, err := godotenv.Read(envPath); err == nil {
		l.logger.Debug("Loaded env file", slog.String("path", envPath), slog.Int("vars", len(values)))
		config.ApplyEnv(func(k string) (string, bool) {
			v, ok := values[k]
			return v, ok
		})
	} else if !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("Failed to load env file", slog.String("path", envPath), slog.String("error", err.Error()))
	}

	config.ApplyEnv(l.lookupEnv)

	// Default database location
	if config.Store.Path == "" {
		config.Store.Path = l.userPath(DatabaseFile)
		if config.Store.Path == "" {
			config.Store.Path = DatabaseFile
		}
	}

	// Validate final config
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// userPath returns a path inside the user config directory
func (l *Loader) userPath(name string) string {
	home, err := l.homeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, name)
}
