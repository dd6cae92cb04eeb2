// Package config loads daybook's YAML configuration. Secrets are never
// stored in the file; key fields name the environment variable that
// holds the value.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Backend    Backend    `yaml:"backend"`
	Pipeline   Pipeline   `yaml:"pipeline"`
	Connectors Connectors `yaml:"connectors"`
	Transform  Transform  `yaml:"transform"`
	Entries    Entries    `yaml:"entries"`
	Wizard     Wizard     `yaml:"wizard"`
	Server     Server     `yaml:"server"`
	History    History    `yaml:"history"`
	Discord    Discord    `yaml:"discord"`
	Logging    Logging    `yaml:"logging"`
}

// Backend is the MCP integration service that owns tool connections and
// raw activity fetching.
type Backend struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type Pipeline struct {
	StageTimeoutSeconds int `yaml:"stage_timeout_seconds"`
}

type Connectors struct {
	CacheSize       int    `yaml:"cache_size"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	ConfigPath      string `yaml:"config_path"`
}

// Transform is the backend Format7 transform endpoint. Empty base_url
// means entries are assembled client-side.
type Transform struct {
	BaseURL string `yaml:"base_url"`
}

type Entries struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type Wizard struct {
	IdleExpiryMinutes int `yaml:"idle_expiry_minutes"`
}

type Server struct {
	Port int `yaml:"port"`
}

type History struct {
	DBPath string `yaml:"db_path"`
}

type Discord struct {
	Enabled      bool   `yaml:"enabled"`
	TokenEnv     string `yaml:"token_env"`
	ChannelID    string `yaml:"channel_id"`
	ChannelIDEnv string `yaml:"channel_id_env"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for daybook.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "daybook")
}

// DataDir returns the XDG data directory for daybook.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "daybook")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/daybook/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf("no config file found; searched:\n  %s\n  ./config.yaml", xdgConfig)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// LoadOrDefault loads the resolved config file, or falls back to the
// embedded defaults when none exists.
func LoadOrDefault(explicit string) (*Config, error) {
	path, err := ResolveConfigPath(explicit)
	if err != nil {
		return parse(DefaultConfigYAML)
	}
	return Load(path)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Backend: Backend{
			BaseURL:   "http://localhost:3100",
			APIKeyEnv: "DAYBOOK_API_KEY",
		},
		Pipeline:   Pipeline{StageTimeoutSeconds: 60},
		Connectors: Connectors{CacheSize: 32, CacheTTLSeconds: 300},
		Entries: Entries{
			BaseURL:   "http://localhost:3100",
			APIKeyEnv: "DAYBOOK_API_KEY",
		},
		Wizard:  Wizard{IdleExpiryMinutes: 60},
		Server:  Server{Port: 8200},
		Discord: Discord{TokenEnv: "DISCORD_BOT_TOKEN", ChannelIDEnv: "DISCORD_CHANNEL_ID"},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// APIKey resolves the backend API key from the configured env var.
func (b Backend) APIKey() string {
	return os.Getenv(b.APIKeyEnv)
}

// APIKey resolves the entry API key from the configured env var.
func (e Entries) APIKey() string {
	return os.Getenv(e.APIKeyEnv)
}

// Token resolves the bot token from the configured env var.
func (d Discord) Token() string {
	return os.Getenv(d.TokenEnv)
}

// Channel resolves the notification channel, preferring the literal
// channel_id over the env indirection.
func (d Discord) Channel() string {
	if d.ChannelID != "" {
		return d.ChannelID
	}
	return os.Getenv(d.ChannelIDEnv)
}

// StageTimeout returns the per-stage pipeline timeout.
func (p Pipeline) StageTimeout() time.Duration {
	return time.Duration(p.StageTimeoutSeconds) * time.Second
}

// CacheTTL returns the fetch cache entry lifetime.
func (c Connectors) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// IdleExpiry returns how long an untouched wizard session survives.
func (w Wizard) IdleExpiry() time.Duration {
	return time.Duration(w.IdleExpiryMinutes) * time.Minute
}

// HistoryDBPath returns the effective history database path.
func (c *Config) HistoryDBPath() string {
	if c.History.DBPath != "" {
		return c.History.DBPath
	}
	return filepath.Join(DataDir(), "history.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
