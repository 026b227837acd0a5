package providers

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/Davincible/byok-router/internal/wire"
)

// Registry maps provider types to adapters. Adding a provider type means
// registering one more adapter.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter under its provider type
func (r *Registry) Register(adapter Adapter) {
	r.adapters[adapter.Name()] = adapter
}

// Get retrieves the adapter for a provider type
func (r *Registry) Get(providerType string) (Adapter, bool) {
	adapter, exists := r.adapters[strings.TrimSpace(providerType)]
	return adapter, exists
}

// TypeForBaseURL guesses the provider type from an API base URL. Hosts that are
// not known to speak the Anthropic protocol are treated as OpenAI-compatible.
func TypeForBaseURL(apiBase string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(apiBase))
	if err != nil {
		return "", fmt.Errorf("invalid API base URL: %w", err)
	}

	domain := strings.ToLower(u.Hostname())
	if domain == "" {
		return "", fmt.Errorf("invalid API base URL: missing host in %q", apiBase)
	}

	// Domain mapping to provider types
	domainTypeMap := map[string]string{
		"api.anthropic.com":        TypeAnthropic,
		"anthropic.com":            TypeAnthropic,
		"openrouter.ai":            TypeOpenAICompatible,
		"api.openrouter.ai":        TypeOpenAICompatible,
		"api.openai.com":           TypeOpenAICompatible,
		"integrate.api.nvidia.com": TypeOpenAICompatible,
		"api.deepseek.com":         TypeOpenAICompatible,
	}

	if providerType, exists := domainTypeMap[domain]; exists {
		return providerType, nil
	}
	return TypeOpenAICompatible, nil
}

// List returns all registered provider types, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Initialize registers all built-in adapters
func (r *Registry) Initialize(client *wire.Client, logger *slog.Logger) {
	r.Register(NewOpenAIProvider(client, logger))
	r.Register(NewAnthropicProvider(client, logger))
}
