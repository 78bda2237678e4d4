package factory

import (
	"fmt"

	"github.com/chatcrm/crm-backend/internal/config"
	"github.com/chatcrm/crm-backend/internal/providers"
	"github.com/chatcrm/crm-backend/internal/providers/anthropic"
	"github.com/chatcrm/crm-backend/internal/providers/openai"
)

// New builds the configured summary provider. It returns (nil, nil) when
// summaries should stay heuristic: provider disabled, unknown or missing
// its API key.
func New(cfg config.SummaryConfig) (providers.Provider, error) {
	if !cfg.ProviderEnabled() {
		return nil, nil
	}

	model := cfg.ResolveModel()
	switch cfg.ProviderKind() {
	case config.ProviderOpenAI:
		return openai.NewProvider(openai.Config{APIKey: cfg.APIKey, Model: model, BaseURL: cfg.BaseURL})
	case config.ProviderAnthropic:
		return anthropic.NewProvider(anthropic.Config{APIKey: cfg.APIKey, Model: model, BaseURL: cfg.BaseURL})
	default:
		return nil, fmt.Errorf("unsupported summary provider: %s", cfg.Provider)
	}
}
