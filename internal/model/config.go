package model

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIConfig locates the backend.
type APIConfig struct {
	// BaseURL is the REST root (e.g., http://localhost:5000/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// SocketURL overrides the push channel URL. When empty it is derived
	// from BaseURL.
	SocketURL string `mapstructure:"socket_url" yaml:"socket_url"`

	// TimeoutSec bounds a single REST round trip.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// FeedConfig controls the snapshot fetch.
type FeedConfig struct {
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
}

// ChannelConfig controls push channel reconnects and keepalive.
type ChannelConfig struct {
	BackoffInitialMs int `mapstructure:"backoff_initial_ms" yaml:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms" yaml:"backoff_max_ms"`
	PingIntervalSec  int `mapstructure:"ping_interval_sec" yaml:"ping_interval_sec"`
}

// SyncConfig controls the periodic reseed.
type SyncConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// LogConfig controls where log output goes while the TUI owns the terminal.
type LogConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Feed    FeedConfig    `mapstructure:"feed" yaml:"feed"`
	Channel ChannelConfig `mapstructure:"channel" yaml:"channel"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

const (
	defaultBaseURL          = "http://localhost:5000/api"
	defaultTimeoutSec       = 30
	defaultPageSize         = 50
	defaultBackoffInitialMs = 500
	defaultBackoffMaxMs     = 30000
	defaultPingIntervalSec  = 25
	defaultSyncIntervalSec  = 120
)

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/bizdesk/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "bizdesk", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    defaultBaseURL,
			TimeoutSec: defaultTimeoutSec,
		},
		Feed: FeedConfig{PageSize: defaultPageSize},
		Channel: ChannelConfig{
			BackoffInitialMs: defaultBackoffInitialMs,
			BackoffMaxMs:     defaultBackoffMaxMs,
			PingIntervalSec:  defaultPingIntervalSec,
		},
		Sync:    SyncConfig{IntervalSec: defaultSyncIntervalSec},
		Display: DisplayConfig{Theme: "default"},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
// BIZDESK_API_URL overrides api.base_url.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("api.base_url", defaultBaseURL)
	v.SetDefault("api.timeout_sec", defaultTimeoutSec)
	v.SetDefault("feed.page_size", defaultPageSize)
	v.SetDefault("channel.backoff_initial_ms", defaultBackoffInitialMs)
	v.SetDefault("channel.backoff_max_ms", defaultBackoffMaxMs)
	v.SetDefault("channel.ping_interval_sec", defaultPingIntervalSec)
	v.SetDefault("sync.interval_sec", defaultSyncIntervalSec)
	v.SetDefault("display.theme", "default")

	v.SetEnvPrefix("bizdesk")
	_ = v.BindEnv("api.base_url", "BIZDESK_API_URL")

	cfg := defaultAppConfig()
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if _, ok := err.(*os.PathError); !ok && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Feed.PageSize <= 0 {
		cfg.Feed.PageSize = defaultPageSize
	}
	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = defaultTimeoutSec
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("feed", cfg.Feed)
	v.Set("channel", cfg.Channel)
	v.Set("sync", cfg.Sync)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Timeout returns the REST round-trip bound.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// PushURL returns the websocket URL for the push channel. An explicit
// SocketURL wins; otherwise a trailing /api segment is stripped from
// BaseURL, the scheme is swapped to ws/wss and /ws is appended.
func (c APIConfig) PushURL() (string, error) {
	if c.SocketURL != "" {
		return c.SocketURL, nil
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing api base url %q: %w", c.BaseURL, err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}

	p := strings.TrimRight(u.Path, "/")
	p = strings.TrimSuffix(p, "/api")
	u.Path = p + "/ws"
	u.RawQuery = ""

	return u.String(), nil
}

// Backoff returns the configured reconnect bounds.
func (c ChannelConfig) Backoff() (initial, max time.Duration) {
	initial = time.Duration(c.BackoffInitialMs) * time.Millisecond
	max = time.Duration(c.BackoffMaxMs) * time.Millisecond
	return initial, max
}

// PingInterval returns the websocket keepalive period.
func (c ChannelConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSec) * time.Second
}

// Interval returns the periodic reseed period.
func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}
