// Package config loads launcher configuration from environment variables,
// optionally overlaid by a TOML config file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all launcher configuration.
type Config struct {
	Server    ServerConfig
	Plugins   PluginConfig
	Search    SearchConfig
	Window    WindowConfig
	Store     StoreConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"LAUNCHER_PORT" toml:"port" default:"7700"`
	Host string `envconfig:"LAUNCHER_HOST" toml:"host" default:"127.0.0.1"`
}

// PluginConfig holds plugin discovery configuration.
type PluginConfig struct {
	// Root is the plugins directory; each immediate subdirectory is one
	// plugin package.
	Root string `envconfig:"LAUNCHER_PLUGINS_ROOT" toml:"root" default:"./plugins"`

	// CorpusTimeout bounds a single plugin's batch search call.
	CorpusTimeout time.Duration `envconfig:"LAUNCHER_CORPUS_TIMEOUT" toml:"corpus_timeout" default:"5s"`

	// ScriptTimeout bounds any single plugin script evaluation.
	ScriptTimeout time.Duration `envconfig:"LAUNCHER_SCRIPT_TIMEOUT" toml:"script_timeout" default:"2s"`
}

// SearchConfig holds ranking configuration.
type SearchConfig struct {
	// BrowseLimit caps the zero-score corpus listing shown for an empty query.
	BrowseLimit int `envconfig:"LAUNCHER_BROWSE_LIMIT" toml:"browse_limit" default:"20"`
}

// WindowConfig holds host window geometry.
type WindowConfig struct {
	Width         int `envconfig:"LAUNCHER_WINDOW_WIDTH" toml:"width" default:"900"`
	SearchHeight  int `envconfig:"LAUNCHER_SEARCH_HEIGHT" toml:"search_height" default:"72"`
	ViewHeight    int `envconfig:"LAUNCHER_VIEW_HEIGHT" toml:"view_height" default:"600"`
	ToolbarHeight int `envconfig:"LAUNCHER_TOOLBAR_HEIGHT" toml:"toolbar_height" default:"40"`
}

// StoreConfig holds the plugin key-value store location.
type StoreConfig struct {
	Dir string `envconfig:"LAUNCHER_STORE_DIR" toml:"dir" default:"./data/store"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LAUNCHER_LOG_LEVEL" toml:"level" default:"info"`
	Development bool   `envconfig:"LAUNCHER_LOG_DEV" toml:"development" default:"false"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"LAUNCHER_RATE_LIMIT_RPS" toml:"requests_per_second" default:"100"`
	Burst             int  `envconfig:"LAUNCHER_RATE_LIMIT_BURST" toml:"burst" default:"200"`
	Enabled           bool `envconfig:"LAUNCHER_RATE_LIMIT_ENABLED" toml:"enabled" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads configuration from the environment and overlays a TOML
// config file on top. File values win over environment defaults.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "7700",
			Host: "127.0.0.1",
		},
		Plugins: PluginConfig{
			Root:          "./plugins",
			CorpusTimeout: 5 * time.Second,
			ScriptTimeout: 2 * time.Second,
		},
		Search: SearchConfig{
			BrowseLimit: 20,
		},
		Window: WindowConfig{
			Width:         900,
			SearchHeight:  72,
			ViewHeight:    600,
			ToolbarHeight: 40,
		},
		Store: StoreConfig{
			Dir: "./data/store",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
