package factory

import (
	"context"
	"fmt"

	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/llm/gemini"
	"ai-assistant-be/pkg/llm/ollama"
)

func NewLLMProvider(ctx context.Context, providerType, modelName, baseURL, apiKey string) (llm.StreamingProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "gemini":
		return gemini.NewGeminiProvider(ctx, apiKey, modelName)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}

// Registry resolves a catalog provider key to a streaming backend.
type Registry struct {
	providers map[string]llm.StreamingProvider
	fallback  string
}

func NewRegistry(fallback string) *Registry {
	return &Registry{providers: map[string]llm.StreamingProvider{}, fallback: fallback}
}

func (r *Registry) Register(key string, p llm.StreamingProvider) {
	r.providers[key] = p
}

// Get returns the provider for key, or the fallback provider.
func (r *Registry) Get(key string) (llm.StreamingProvider, error) {
	if p, ok := r.providers[key]; ok {
		return p, nil
	}
	if p, ok := r.providers[r.fallback]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no LLM provider registered for %q", key)
}

func (r *Registry) Default() (llm.StreamingProvider, error) {
	return r.Get(r.fallback)
}
