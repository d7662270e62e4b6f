package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Journal JournalConfig `mapstructure:"journal"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the HTTP host configuration
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`       // Listen address, e.g. ":8089"
	RateLimit int    `mapstructure:"rate_limit"` // Requests per minute per client IP (0 disables)
}

// CatalogConfig holds catalog behavior
type CatalogConfig struct {
	Strict bool `mapstructure:"strict"` // Fail children queries for unknown parents
}

// NotifyConfig holds children-changed notification settings
type NotifyConfig struct {
	Delay             time.Duration `mapstructure:"delay"`
	ItemCountHint     int           `mapstructure:"item_count_hint"`
	UnsubscribePolicy string        `mapstructure:"unsubscribe_policy"` // "overwrite" or "clear"
}

// JournalConfig holds the notification journal settings
type JournalConfig struct {
	Path   string `mapstructure:"path"`   // bbolt file; empty keeps the journal in memory
	Retain int    `mapstructure:"retain"` // Max records kept
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"` // Empty logs to stderr
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8089",
			RateLimit: 600,
		},
		Catalog: CatalogConfig{
			Strict: false,
		},
		Notify: NotifyConfig{
			Delay:             5 * time.Second,
			ItemCountHint:     250,
			UnsubscribePolicy: "overwrite",
		},
		Journal: JournalConfig{
			Path:   "",
			Retain: 1000,
		},
		Logging: LoggingConfig{
			File:  "",
			Level: "INFO",
		},
	}
}

// DefaultConfigPath returns the default config directory for the current OS
func DefaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "tuner")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "tuner")
	}
}

// DefaultJournalPath returns the default journal database path for the current OS
func DefaultJournalPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "tuner", "journal.db")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "tuner", "journal.db")
	}
}

func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Environment variable overrides (TUNER_NOTIFY_DELAY etc.)
	v.SetEnvPrefix("TUNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults register every key so env overrides apply on Unmarshal
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.rate_limit", cfg.Server.RateLimit)
	v.SetDefault("catalog.strict", cfg.Catalog.Strict)
	v.SetDefault("notify.delay", cfg.Notify.Delay)
	v.SetDefault("notify.item_count_hint", cfg.Notify.ItemCountHint)
	v.SetDefault("notify.unsubscribe_policy", cfg.Notify.UnsubscribePolicy)
	v.SetDefault("journal.path", cfg.Journal.Path)
	v.SetDefault("journal.retain", cfg.Journal.Retain)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	return v
}

// LoadConfig loads configuration from file and environment. Directories in
// searchPaths are tried first, then the default config dir and ".".
func LoadConfig(searchPaths ...string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)

	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(DefaultConfigPath())
	v.AddConfigPath(".")

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the services cannot run with
func (c *Config) Validate() error {
	if c.Notify.Delay < 0 {
		return fmt.Errorf("notify.delay must not be negative, got %s", c.Notify.Delay)
	}
	if c.Journal.Retain <= 0 {
		return fmt.Errorf("journal.retain must be positive, got %d", c.Journal.Retain)
	}
	switch c.Notify.UnsubscribePolicy {
	case "", "overwrite", "clear":
	default:
		return fmt.Errorf("notify.unsubscribe_policy must be overwrite or clear, got %q", c.Notify.UnsubscribePolicy)
	}
	return nil
}

// SaveConfig writes cfg to config.yaml in dir (DefaultConfigPath when empty)
// and returns the written file path
func SaveConfig(cfg *Config, dir string) (string, error) {
	if dir == "" {
		dir = DefaultConfigPath()
	}

	// Ensure config directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("server.rate_limit", cfg.Server.RateLimit)
	v.Set("catalog.strict", cfg.Catalog.Strict)
	v.Set("notify.delay", cfg.Notify.Delay.String())
	v.Set("notify.item_count_hint", cfg.Notify.ItemCountHint)
	v.Set("notify.unsubscribe_policy", cfg.Notify.UnsubscribePolicy)
	v.Set("journal.path", cfg.Journal.Path)
	v.Set("journal.retain", cfg.Journal.Retain)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configFile, nil
}
