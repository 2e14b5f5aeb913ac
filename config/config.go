// Package config merges the persisted settings file with environment
// variables and provides a typed Config used across the app. Credentials are
// required for any API work; everything else has defaults so the binary can
// run with minimal setup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/onnwee/vodchat/twitchapi"
)

const settingsFileName = "settings.json"

// Settings is the on-disk settings.json shape.
type Settings struct {
	Twitch struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		Comment      string `json:"_comment,omitempty"`
	} `json:"twitch"`
	UI struct {
		SortOrder string `json:"sort_order,omitempty"`
	} `json:"ui"`
}

// Config is the resolved runtime configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	SortOrder    string

	ConfigDir      string // settings + token cache
	CacheDir       string // video caches, comment downloads, database
	DownloadDir    string // comment CSV output
	DBPath         string
	TokenCachePath string

	ScraperPath string // external chat scraper executable
	MetricsAddr string // optional localhost /metrics listener
}

// Load reads settings.json (creating a template on first run), applies
// environment overrides, and resolves directories. A malformed settings file
// is a configuration error, not a silent default.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ConfigDir = os.Getenv("VODCHAT_CONFIG_DIR")
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = "config"
	}
	cfg.CacheDir = os.Getenv("VODCHAT_CACHE_DIR")
	if cfg.CacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.CacheDir = filepath.Join(home, ".vodchat")
	}
	cfg.DownloadDir = filepath.Join(cfg.CacheDir, "comments")
	cfg.DBPath = filepath.Join(cfg.CacheDir, "vodchat.db")
	cfg.TokenCachePath = filepath.Join(cfg.ConfigDir, "token_cache.json")

	settings, err := loadSettings(filepath.Join(cfg.ConfigDir, settingsFileName))
	if err != nil {
		return nil, err
	}
	cfg.ClientID = settings.Twitch.ClientID
	cfg.ClientSecret = settings.Twitch.ClientSecret
	cfg.SortOrder = settings.UI.SortOrder
	if cfg.SortOrder == "" {
		cfg.SortOrder = "latest"
	}

	// Environment overrides win over the settings file.
	if v := os.Getenv("TWITCH_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := os.Getenv("TWITCH_CLIENT_SECRET"); v != "" {
		cfg.ClientSecret = v
	}

	cfg.ScraperPath = os.Getenv("SCRAPER_PATH")
	if cfg.ScraperPath == "" {
		cfg.ScraperPath = "twitch-chat-scraper"
	}
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	return cfg, nil
}

// ValidateCredentials checks that API credentials are present. Returns a
// *twitchapi.ConfigError carrying remediation instructions when they are
// not; callers treat this as fatal at startup.
func (c *Config) ValidateCredentials() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return &twitchapi.ConfigError{Reason: "client_id or client_secret missing"}
	}
	return nil
}

// EnsureDirs creates the cache and download directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.CacheDir, c.DownloadDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// loadSettings reads the settings file, writing a commented template when it
// does not exist yet so the operator knows what to fill in.
func loadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s := defaultSettings()
		if werr := writeSettings(path, s); werr != nil {
			return nil, fmt.Errorf("write default settings: %w", werr)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("settings file %s is malformed: %w", path, err)
	}
	return &s, nil
}

func defaultSettings() *Settings {
	s := &Settings{}
	s.Twitch.Comment = "Create an application at https://dev.twitch.tv/console and fill in client_id and client_secret."
	s.UI.SortOrder = "latest"
	return s
}

func writeSettings(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
