package llm

import (
	"fmt"

	"github.com/ashureev/care-assistant/internal/config"
)

// NewProvider creates the provider selected by cfg, rate limited when
// requests_per_minute is set.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	var p Provider
	switch cfg.Provider {
	case config.ProviderOllama:
		p = NewOllamaProvider(cfg.BaseURL, cfg.Model)
	case config.ProviderOpenAI:
		p = NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider)
	}

	if cfg.RequestsPerMinute > 0 {
		p = NewRateLimitedProvider(p, cfg.RequestsPerMinute)
	}
	return p, nil
}
