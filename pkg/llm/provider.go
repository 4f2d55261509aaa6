package llm

import (
	"context"
	"fmt"

	"github.com/introlix/explorer/pkg/config"
)

// Provider generates text from a system instruction and a user prompt.
// The engine uses it for result filtering and answer synthesis; neither
// needs tools, streaming or multi-turn state.
type Provider interface {
	Generate(ctx context.Context, system, user string) (string, error)
	Model() string
	Close() error
}

// New creates a Provider from config. The "openai" type covers any
// OpenAI-compatible endpoint, including a local Ollama under /v1.
func New(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Type {
	case "openai", "":
		return NewOpenAI(cfg)
	case "gemini":
		return NewGemini(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider type: %s", cfg.Type)
	}
}

// resolveAPIKey falls back to the provider's conventional environment
// variable when the config carries no key.
func resolveAPIKey(cfg config.LLMConfig) string {
	if cfg.APIKey != "" {
		return cfg.APIKey
	}
	return config.ProviderAPIKey(cfg.Type)
}
