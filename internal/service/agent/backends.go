package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"

	"github.com/eunoia/backend/internal/config"
)

var providerLabels = map[string]string{
	ProviderOpenAI:    "OpenAI",
	ProviderGemini:    "Gemini",
	ProviderAnthropic: "Claude",
	ProviderArk:       "Ark",
}

// Label returns the display name used in fallback replies.
func Label(provider string) string {
	if label, ok := providerLabels[provider]; ok {
		return label
	}
	return provider
}

// NewBackends creates a chat model for every configured provider. Providers
// without credentials are skipped.
func NewBackends(ctx context.Context, cfg config.ProvidersConfig) (map[string]model.ChatModel, error) {
	backends := make(map[string]model.ChatModel)

	if cfg.OpenAI.Enabled() {
		backends[ProviderOpenAI] = NewOpenAIChatModel(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	}
	if cfg.Gemini.Enabled() {
		backends[ProviderGemini] = NewOpenAIChatModel(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, cfg.Gemini.Model)
	}
	if cfg.Anthropic.Enabled() {
		backends[ProviderAnthropic] = NewAnthropicChatModel(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	}
	if cfg.Ark.Enabled() {
		arkModel, err := cfg.Ark.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create ark chat model: %w", err)
		}
		backends[ProviderArk] = arkModel
	}

	return backends, nil
}

// NewRouterFromBackends wraps every backend in an Adapter and registers it.
func NewRouterFromBackends(ctx context.Context, backends map[string]model.ChatModel) (*Router, error) {
	router := NewRouter()
	for name, chatModel := range backends {
		adapter, err := NewAdapter(ctx, name, Label(name), chatModel)
		if err != nil {
			return nil, err
		}
		router.Register(name, adapter)
		log.Printf("[agent] provider %s registered", name)
	}
	return router, nil
}
