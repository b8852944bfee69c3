package cobalt

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the COBALT engine.
type Config struct {
	// Registry endpoint configuration.
	Registry RegistryConfig `json:"registry" yaml:"registry"`

	// AI configures the language-model provider used for summaries and chat.
	AI AIConfig `json:"ai" yaml:"ai"`

	// Extraction limits.
	MaxDocuments    int `json:"max_documents" yaml:"max_documents"`         // per extraction batch
	MaxCombinedText int `json:"max_combined_text" yaml:"max_combined_text"` // chars returned to clients

	// Sessions selects the chat session store: "memory" (default) or "sqlite".
	Sessions SessionConfig `json:"sessions" yaml:"sessions"`
}

// RegistryConfig configures access to the BRRTS-style registry.
type RegistryConfig struct {
	// BaseURL is the registry origin, e.g. "https://apps.dnr.wi.gov".
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Browser enables headless-browser document listing. When disabled or
	// when no browser binary is found, listing falls back to static parsing
	// with reduced fidelity.
	Browser bool `json:"browser" yaml:"browser"`

	// TimeoutSeconds bounds a single registry request (fetch or listing).
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// AIConfig configures a single LLM provider endpoint.
type AIConfig struct {
	Provider string `json:"provider" yaml:"provider"` // openrouter, openai, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// SessionConfig configures the chat session store.
type SessionConfig struct {
	Backend string `json:"backend" yaml:"backend"` // memory, sqlite
	DBPath  string `json:"db_path" yaml:"db_path"` // sqlite only
}

// DefaultConfig returns a Config with working defaults: the Wisconsin DNR
// registry, OpenRouter for AI (key from environment), in-memory sessions.
func DefaultConfig() Config {
	return Config{
		Registry: RegistryConfig{
			BaseURL:        "https://apps.dnr.wi.gov",
			Browser:        true,
			TimeoutSeconds: 60,
		},
		AI: AIConfig{
			Provider: "openrouter",
			Model:    "google/gemini-2.0-flash-001",
		},
		MaxDocuments:    20,
		MaxCombinedText: 50000,
		Sessions: SessionConfig{
			Backend: "memory",
		},
	}
}

// LoadConfig reads a YAML config file and merges it over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Registry.BaseURL == "" {
		return fmt.Errorf("%w: registry.base_url is required", ErrInvalidConfig)
	}
	if c.MaxDocuments <= 0 {
		return fmt.Errorf("%w: max_documents must be positive", ErrInvalidConfig)
	}
	switch c.Sessions.Backend {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("%w: unknown session backend %q", ErrInvalidConfig, c.Sessions.Backend)
	}
	return nil
}
