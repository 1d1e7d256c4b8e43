// Package config loads the service configuration: listen address, session
// defaults, and the provider routing table. Values come from an optional YAML
// file overlaid on built-in defaults; credentials always come from the
// environment (loaded from .env by the entry point via godotenv).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "24h" or "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full service configuration.
type Config struct {
	ListenAddr      string           `yaml:"listen_addr"`
	DefaultProvider string           `yaml:"default_provider"`
	Session         SessionConfig    `yaml:"session"`
	Providers       []ProviderConfig `yaml:"providers"`
}

// SessionConfig holds the defaults applied to new sessions and the store's
// expiry behavior.
type SessionConfig struct {
	SystemPrompt  string   `yaml:"system_prompt"`
	Model         string   `yaml:"model"`
	Temperature   float64  `yaml:"temperature"`
	MaxTokens     int      `yaml:"max_tokens"`
	MaxHistory    int      `yaml:"max_history"`
	Retention     Duration `yaml:"retention"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// ProviderConfig declares one provider: where its credential lives and which
// models it serves. The routing table is data, not code, so deployments can
// extend it without a rebuild.
type ProviderConfig struct {
	ID           string   `yaml:"id"`
	APIKeyEnv    string   `yaml:"api_key_env"`
	BaseURLEnv   string   `yaml:"base_url_env"`
	Models       []string `yaml:"models"`
	Prefixes     []string `yaml:"prefixes"`
	DefaultModel string   `yaml:"default_model"`
}

// APIKey resolves the provider credential from the environment. Empty means
// the provider is unconfigured and must be skipped at registration time.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// BaseURL resolves the optional endpoint override from the environment.
func (p ProviderConfig) BaseURL() string {
	if p.BaseURLEnv == "" {
		return ""
	}
	return os.Getenv(p.BaseURLEnv)
}

// Default returns the built-in configuration: the three stock providers with
// their model tables, OpenAI as the routing fallback, and a 24h session
// retention swept at most hourly.
func Default() *Config {
	return &Config{
		ListenAddr:      ":8080",
		DefaultProvider: "openai",
		Session: SessionConfig{
			SystemPrompt:  "You are a helpful assistant.",
			Model:         "gpt-4o",
			Temperature:   0.7,
			MaxTokens:     1024,
			MaxHistory:    20,
			Retention:     Duration(24 * time.Hour),
			SweepInterval: Duration(time.Hour),
		},
		Providers: []ProviderConfig{
			{
				ID:           "openai",
				APIKeyEnv:    "OPENAI_API_KEY",
				BaseURLEnv:   "OPENAI_API_BASE_URL",
				Models:       []string{"gpt-4", "gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo"},
				Prefixes:     []string{"gpt-", "o1-", "o3-"},
				DefaultModel: "gpt-4o",
			},
			{
				ID:           "anthropic",
				APIKeyEnv:    "ANTHROPIC_API_KEY",
				BaseURLEnv:   "ANTHROPIC_API_BASE_URL",
				Models:       []string{"claude-3-opus", "claude-3-sonnet", "claude-3-haiku", "claude-sonnet-4"},
				Prefixes:     []string{"claude-"},
				DefaultModel: "claude-3-sonnet",
			},
			{
				ID:           "groq",
				APIKeyEnv:    "GROQ_API_KEY",
				BaseURLEnv:   "GROQ_API_BASE_URL",
				Models:       []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant", "mixtral-8x7b-32768"},
				Prefixes:     []string{"llama-", "mixtral-", "gemma-"},
				DefaultModel: "llama-3.3-70b-versatile",
			},
		},
	}
}

// Load returns the default configuration overlaid with the YAML file at path.
// An empty path skips the file entirely; a missing file at an explicit path
// is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Session.Temperature < 0 || c.Session.Temperature > 2 {
		return fmt.Errorf("session temperature %v out of range [0, 2]", c.Session.Temperature)
	}
	if c.Session.MaxHistory <= 0 {
		return fmt.Errorf("session max_history must be positive")
	}

	ids := make(map[string]bool, len(c.Providers))
	for _, provider := range c.Providers {
		if provider.ID == "" {
			return fmt.Errorf("provider with empty id")
		}
		if ids[provider.ID] {
			return fmt.Errorf("duplicate provider id %q", provider.ID)
		}
		ids[provider.ID] = true
	}

	if c.DefaultProvider != "" && !ids[c.DefaultProvider] {
		return fmt.Errorf("default_provider %q is not declared", c.DefaultProvider)
	}
	return nil
}
