package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Store modes selecting which repository adapter the process runs with.
const (
	StoreModeLocal  = "local"
	StoreModeRemote = "remote"
)

// StoreConfig selects and configures the task repository backend.
type StoreConfig struct {
	// Mode is "local" (embedded sqlite) or "remote" (live task store).
	Mode string `mapstructure:"mode" yaml:"mode"`

	// Path is the sqlite database file used in local mode.
	Path string `mapstructure:"path" yaml:"path"`

	// RemoteAddress is the base URL of the remote live store.
	RemoteAddress string `mapstructure:"remote_address" yaml:"remote_address"`

	// RemoteDatabase is the database/module name on the remote store.
	RemoteDatabase string `mapstructure:"remote_database" yaml:"remote_database"`
}

// DiscordConfig holds the Discord-facing settings. The bot token and the
// interaction public key live in the system keyring, not here.
type DiscordConfig struct {
	// WebhookURL is the user-supplied channel webhook. Empty means
	// reminder delivery is disabled.
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`

	// ApplicationID is the Discord application used for slash-command
	// registration.
	ApplicationID string `mapstructure:"application_id" yaml:"application_id"`
}

// DispatchConfig tunes the reminder dispatch loop.
type DispatchConfig struct {
	IntervalSec        int `mapstructure:"interval_sec" yaml:"interval_sec"`
	DeliveryTimeoutSec int `mapstructure:"delivery_timeout_sec" yaml:"delivery_timeout_sec"`
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Discord  DiscordConfig  `mapstructure:"discord" yaml:"discord"`
	Dispatch DispatchConfig `mapstructure:"dispatch" yaml:"dispatch"`
	LogLevel string         `mapstructure:"log_level" yaml:"log_level"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskbot/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "taskbot", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		HTTP: HTTPConfig{Address: ":8080"},
		Store: StoreConfig{
			Mode: StoreModeLocal,
			Path: defaultDBPath(),
		},
		Dispatch: DispatchConfig{
			IntervalSec:        60,
			DeliveryTimeoutSec: 10,
		},
		LogLevel: "info",
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "taskbot.db")
	}
	return filepath.Join(home, ".config", "taskbot", "taskbot.db")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("http.address", ":8080")
	v.SetDefault("store.mode", StoreModeLocal)
	v.SetDefault("store.path", defaultDBPath())
	v.SetDefault("dispatch.interval_sec", 60)
	v.SetDefault("dispatch.delivery_timeout_sec", 10)
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. Used when the webhook URL is
// updated at runtime through the settings endpoint.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("http", cfg.HTTP)
	v.Set("store", cfg.Store)
	v.Set("discord", cfg.Discord)
	v.Set("dispatch", cfg.Dispatch)
	v.Set("log_level", cfg.LogLevel)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
