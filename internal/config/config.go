// Package config handles loading and saving the songtutor configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for songtutor.
type Config struct {
	Version   int             `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	Messenger MessengerConfig `yaml:"messenger"`
	Brain     BrainConfig     `yaml:"brain"`
	Search    SearchConfig    `yaml:"search"`
	Store     StoreConfig     `yaml:"store"`
	Reminders ReminderConfig  `yaml:"reminders"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the webhook HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MessengerConfig configures the Messenger Graph API connection.
type MessengerConfig struct {
	VerifyToken     string `yaml:"verify_token"`
	PageAccessToken string `yaml:"page_access_token"`
	GraphURL        string `yaml:"graph_url"`
}

// BrainConfig configures the language model.
type BrainConfig struct {
	APIKey        string  `yaml:"api_key"`
	BaseURL       string  `yaml:"base_url"` // empty = provider default
	ChatModel     string  `yaml:"chat_model"`
	ReviewModel   string  `yaml:"review_model"`
	Temperature   float64 `yaml:"temperature"`
	MaxToolRounds int     `yaml:"max_tool_rounds"`
	TurnTimeout   int     `yaml:"turn_timeout_seconds"`
}

// SearchConfig configures the Tavily web search used for lyrics discovery.
type SearchConfig struct {
	APIKey     string `yaml:"api_key"`
	MaxResults int    `yaml:"max_results"`
}

// StoreConfig configures persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ReminderConfig configures the daily practice reminder jobs.
type ReminderConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Times    []string `yaml:"times"` // "HH:MM", local to Timezone
	Timezone string   `yaml:"timezone"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
	File   string `yaml:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Messenger: MessengerConfig{
			GraphURL: "https://graph.facebook.com/v21.0",
		},
		Brain: BrainConfig{
			ChatModel:     "gpt-4.1-mini",
			ReviewModel:   "gpt-4.1-mini",
			Temperature:   0.7,
			MaxToolRounds: 5,
			TurnTimeout:   90,
		},
		Search: SearchConfig{
			MaxResults: 10,
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Reminders: ReminderConfig{
			Enabled:  true,
			Times:    []string{"07:00", "19:00"},
			Timezone: "Asia/Bangkok",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from path, falling back to defaults for any
// missing fields, then applies environment overrides for secrets. An empty
// path loads defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path in YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// applyEnv overrides secrets from the environment. The config file is the
// source of truth for everything else.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Brain.APIKey = v
	}
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		c.Search.APIKey = v
	}
	if v := os.Getenv("PAGE_ACCESS_TOKEN"); v != "" {
		c.Messenger.PageAccessToken = v
	}
	if v := os.Getenv("VERIFY_TOKEN"); v != "" {
		c.Messenger.VerifyToken = v
	}
}

// Validate checks constraints that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Brain.MaxToolRounds <= 0 {
		return fmt.Errorf("brain.max_tool_rounds must be positive, got %d", c.Brain.MaxToolRounds)
	}
	if c.Brain.TurnTimeout <= 0 {
		return fmt.Errorf("brain.turn_timeout_seconds must be positive, got %d", c.Brain.TurnTimeout)
	}
	for _, t := range c.Reminders.Times {
		if len(t) != 5 || t[2] != ':' {
			return fmt.Errorf("invalid reminder time %q, want HH:MM", t)
		}
	}
	return nil
}

// defaultStorePath returns the default SQLite database location.
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "songtutor.db"
	}
	return filepath.Join(home, ".songtutor", "songtutor.db")
}
