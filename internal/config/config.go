// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. CARE_LLM__MODEL.
const EnvPrefix = "CARE_"

// Provider identifies a language model backend.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// Config holds all application configuration.
type Config struct {
	Port           string          `koanf:"port"`
	FrontendURL    string          `koanf:"frontend_url"`
	AllowedOrigins []string        `koanf:"allowed_origins"`
	DataDir        string          `koanf:"data_dir"`
	ArchivePath    string          `koanf:"archive_path"`
	GRPCAddr       string          `koanf:"grpc_addr"`
	TurnTimeout    time.Duration   `koanf:"turn_timeout"`
	MaxBodyBytes   int64           `koanf:"max_body_bytes"`
	Session        SessionConfig   `koanf:"session"`
	RateLimit      RateLimitConfig `koanf:"rate_limit"`
	LLM            LLMConfig       `koanf:"llm"`
}

// SessionConfig controls in-memory session lifetime.
type SessionConfig struct {
	IdleTTL          time.Duration `koanf:"idle_ttl"`
	SweepInterval    time.Duration `koanf:"sweep_interval"`
	ArchiveRetention time.Duration `koanf:"archive_retention"`
}

// RateLimitConfig controls per-client request throttling on chat endpoints.
type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

// LLMConfig selects and tunes the language model backend.
type LLMConfig struct {
	Provider          Provider      `koanf:"provider"`
	Model             string        `koanf:"model"`
	BaseURL           string        `koanf:"base_url"`
	APIKey            string        `koanf:"api_key"`
	Temperature       float64       `koanf:"temperature"`
	MaxTokens         int           `koanf:"max_tokens"`
	RequestsPerMinute int           `koanf:"requests_per_minute"`
	Timeout           time.Duration `koanf:"timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:           "8080",
		AllowedOrigins: []string{"*"},
		TurnTimeout:    2 * time.Minute,
		MaxBodyBytes:   1 << 20,
		Session: SessionConfig{
			IdleTTL:          30 * time.Minute,
			SweepInterval:    5 * time.Minute,
			ArchiveRetention: 7 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Requests: 20,
			Window:   time.Minute,
		},
		LLM: LLMConfig{
			Provider:    ProviderOllama,
			Model:       "llama3.2",
			Temperature: 0.7,
			Timeout:     60 * time.Second,
		},
	}
}

// Load reads the optional YAML file at path, overlays CARE_* environment
// variables and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	// CARE_LLM__BASE_URL -> llm.base_url
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.LLM.APIKey == "" && cfg.LLM.Provider == ProviderOpenAI {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.TurnTimeout <= 0 {
		return fmt.Errorf("turn_timeout must be > 0")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be > 0")
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("session.idle_ttl must be > 0")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session.sweep_interval must be > 0")
	}
	if c.Session.ArchiveRetention < 0 {
		return fmt.Errorf("session.archive_retention must be non-negative")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.requests and rate_limit.window must be > 0")
	}
	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid llm.provider %q: must be one of ollama, openai", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.Provider == ProviderOpenAI && c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.api_key is required for the openai provider")
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute must be non-negative")
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must be non-negative")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// ArchiveEnabled reports whether completed turns are written to SQLite.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchivePath != ""
}
