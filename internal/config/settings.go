package config

import "sync"

// Settings wraps an AppConfig with synchronized access for the values
// that are mutable at runtime. The dispatch loop reads the webhook URL
// on every scan while the settings endpoint may replace it.
type Settings struct {
	mu   sync.RWMutex
	path string
	cfg  *AppConfig
}

// NewSettings wraps cfg, persisting changes back to the config file at path.
func NewSettings(path string, cfg *AppConfig) *Settings {
	return &Settings{path: path, cfg: cfg}
}

// Config returns a copy of the current configuration.
func (s *Settings) Config() AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cfg
}

// WebhookURL returns the currently configured Discord webhook URL,
// or the empty string when delivery is unconfigured.
func (s *Settings) WebhookURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Discord.WebhookURL
}

// SetWebhookURL updates the webhook URL and persists the configuration.
// Callers validate the URL before storing it.
func (s *Settings) SetWebhookURL(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Discord.WebhookURL = url
	return SaveConfig(s.path, s.cfg)
}
