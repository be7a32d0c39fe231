// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for the chat core.
// Environment variables are parsed with the CHALKBOARD_ prefix,
// e.g. CHALKBOARD_OPENROUTER_API_KEY, CHALKBOARD_TUNNEL_URL.
type Config struct {
	// OpenRouterAPIKey authenticates the hosted backend. Hosted requests
	// fail fast when it is empty; the tunnel backend never needs it.
	OpenRouterAPIKey string `envconfig:"OPENROUTER_API_KEY" default:""`
	OpenRouterURL    string `envconfig:"OPENROUTER_URL" default:"https://openrouter.ai/api/v1"`

	// TunnelURL is the self-hosted OpenAI-compatible endpoint.
	TunnelURL string `envconfig:"TUNNEL_URL" default:"http://localhost:11434/v1"`

	// Attribution headers sent to OpenRouter on every request.
	SiteURL  string `envconfig:"SITE_URL" default:"http://localhost:3000"`
	SiteName string `envconfig:"SITE_NAME" default:"Chalkboard"`

	// IdentityURL serves random teacher identities (name + portrait).
	IdentityURL string `envconfig:"IDENTITY_URL" default:"https://randomuser.me/api/"`

	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"2m"`

	// SendDebounce delays generation after a user send so rapid edits
	// coalesce into one request.
	SendDebounce time.Duration `envconfig:"SEND_DEBOUNCE" default:"300ms"`

	// LessonAdvanceDelay is the pause between detecting an end-of-lesson
	// marker and re-activating the teacher's agent conversation.
	LessonAdvanceDelay time.Duration `envconfig:"LESSON_ADVANCE_DELAY" default:"2s"`

	// SQLitePath switches persistence from the in-memory store to a
	// SQLite file when set.
	SQLitePath string `envconfig:"SQLITE_PATH" default:""`
}

// New creates a Config by parsing CHALKBOARD_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("CHALKBOARD", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the core cannot run with.
func (c *Config) Validate() error {
	if c.OpenRouterURL == "" {
		return fmt.Errorf("openrouter url must not be empty")
	}
	if c.TunnelURL == "" {
		return fmt.Errorf("tunnel url must not be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.SendDebounce < 0 || c.LessonAdvanceDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	return nil
}

// NewForTesting returns a config with short delays suitable for tests.
func NewForTesting() *Config {
	return &Config{
		OpenRouterURL:      "https://openrouter.ai/api/v1",
		TunnelURL:          "http://localhost:11434/v1",
		SiteURL:            "http://localhost:3000",
		SiteName:           "Chalkboard",
		IdentityURL:        "https://randomuser.me/api/",
		HTTPTimeout:        5 * time.Second,
		SendDebounce:       time.Millisecond,
		LessonAdvanceDelay: time.Millisecond,
	}
}
