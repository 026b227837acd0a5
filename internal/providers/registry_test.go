package providers

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/byok-router/internal/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	provider := NewAnthropicProvider(wire.NewClient(nil, nil), testLogger())

	// Register provider
	registry.Register(provider)

	// Get provider
	retrievedProvider, exists := registry.Get("anthropic")
	assert.True(t, exists, "provider should exist after registration")
	assert.Equal(t, "anthropic", retrievedProvider.Name(), "provider name should match")

	_, exists = registry.Get(" anthropic ")
	assert.True(t, exists, "lookup should ignore surrounding whitespace")
}

func TestTypeForBaseURL(t *testing.T) {
	testCases := []struct {
		baseURL  string
		expected string
	}{
		{"https://openrouter.ai/api/v1", TypeOpenAICompatible},
		{"https://api.openai.com/v1", TypeOpenAICompatible},
		{"https://api.anthropic.com/v1", TypeAnthropic},
		{"https://integrate.api.nvidia.com/v1", TypeOpenAICompatible},
		{"http://localhost:11434/v1", TypeOpenAICompatible},
	}

	for _, tc := range testCases {
		providerType, err := TypeForBaseURL(tc.baseURL)
		require.NoError(t, err, "should detect type for %s", tc.baseURL)
		assert.Equal(t, tc.expected, providerType, "provider type should match for %s", tc.baseURL)
	}
}

func TestTypeForBaseURL_InvalidURL(t *testing.T) {
	_, err := TypeForBaseURL("invalid-url")
	assert.Error(t, err, "should get error for URL without host")

	_, err = TypeForBaseURL("://bad")
	assert.Error(t, err, "should get error for unparsable URL")
}

func TestRegistry_List(t *testing.T) {
	registry := NewRegistry()
	registry.Initialize(wire.NewClient(nil, nil), testLogger())

	assert.Equal(t, []string{"anthropic", "openai_compatible"}, registry.List())
}

func TestRegistry_GetNonExistent(t *testing.T) {
	registry := NewRegistry()

	_, exists := registry.Get("nonexistent")
	assert.False(t, exists, "non-existent provider should not exist")
}
