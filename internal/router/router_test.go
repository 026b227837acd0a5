package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/byok-router/internal/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		Enabled: true,
		Providers: []config.Provider{
			{ID: "p1", Type: config.ProviderOpenAICompatible, Models: []string{"p1-small", "p1-large"}, DefaultModel: "p1-small"},
			{ID: "p2", Type: config.ProviderAnthropic, Models: []string{"p2-default"}, DefaultModel: "p2-default"},
		},
		Routing: config.Routing{
			DefaultMode: config.ModeByok,
			Rules:       map[string]config.RoutingRule{},
		},
	}
	config.Normalize(cfg)
	return cfg
}

func TestParseByokModelID(t *testing.T) {
	tests := []struct {
		input    string
		expected ByokModelID
		ok       bool
	}{
		{"byok:openai:gpt-4o", ByokModelID{ProviderID: "openai", ModelID: "gpt-4o"}, true},
		{"byok:ollama:llama3:8b", ByokModelID{ProviderID: "ollama", ModelID: "llama3:8b"}, true},
		{"  byok:p:m  ", ByokModelID{ProviderID: "p", ModelID: "m"}, true},
		{"gpt-4o", ByokModelID{}, false},
		{"byok:openai", ByokModelID{}, false},
		{"byok::gpt-4o", ByokModelID{}, false},
		{"byok:openai:", ByokModelID{}, false},
		{"BYOK:openai:gpt-4o", ByokModelID{}, false},
		{"xbyok:openai:gpt-4o", ByokModelID{}, false},
		{"", ByokModelID{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			parsed, ok := ParseByokModelID(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, parsed)
		})
	}

	assert.Equal(t, "byok:ollama:llama3:8b", ByokModelID{ProviderID: "ollama", ModelID: "llama3:8b"}.String())
}

func TestDecide_Precedence(t *testing.T) {
	disabledCfg := testConfig()
	disabledCfg.Enabled = false

	tests := []struct {
		name     string
		cfg      *config.Config
		endpoint string
		runtime  bool
		mode     config.Mode
		reason   Reason
	}{
		{"empty endpoint", testConfig(), "  ", true, config.ModeOfficial, ReasonEmptyEndpoint},
		{"slashes only", testConfig(), "///", true, config.ModeOfficial, ReasonEmptyEndpoint},
		{"kill switch beats everything", testConfig(), "/chat", false, config.ModeOfficial, ReasonRollbackDisabled},
		{"config disabled", disabledCfg, "/chat", true, config.ModeOfficial, ReasonByokDisabled},
		{"nil config", nil, "/chat", true, config.ModeOfficial, ReasonByokDisabled},
		{"default mode byok", testConfig(), "chat", true, config.ModeByok, ReasonByok},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route := Decide(tt.cfg, tt.endpoint, nil, tt.runtime)
			assert.Equal(t, tt.mode, route.Mode)
			assert.Equal(t, tt.reason, route.Reason)
		})
	}
}

func TestDecide_RuleModes(t *testing.T) {
	cfg := testConfig()
	cfg.Routing.Rules = map[string]config.RoutingRule{
		"/chat":       {Mode: config.ModeOfficial},
		"/edit":       {Mode: config.ModeDisabled},
		"/completion": {Mode: "weird"},
		"/next_edit_loc": {
			ProviderID: "p2",
		},
	}

	route := Decide(cfg, "/chat", nil, true)
	assert.Equal(t, Route{Mode: config.ModeOfficial, Endpoint: "/chat", Reason: ReasonRule}, route)

	route = Decide(cfg, "/edit/", nil, true)
	assert.Equal(t, Route{Mode: config.ModeDisabled, Endpoint: "/edit", Reason: ReasonRule}, route)

	route = Decide(cfg, "/completion", nil, true)
	assert.Equal(t, Route{Mode: config.ModeOfficial, Endpoint: "/completion", Reason: ReasonUnknownMode}, route)

	// Empty rule mode falls back to the default mode
	route = Decide(cfg, "/next_edit_loc", nil, true)
	assert.Equal(t, config.ModeByok, route.Mode)
	require.NotNil(t, route.Provider)
	assert.Equal(t, "p2", route.Provider.ID)

	cfg.Routing.DefaultMode = ""
	route = Decide(cfg, "/next_edit_loc", nil, true)
	assert.Equal(t, config.ModeOfficial, route.Mode, "no rule mode and no default mode means official")
	assert.Equal(t, ReasonRule, route.Reason)
}

func TestDecide_RulePinBeatsBodyHint(t *testing.T) {
	cfg := testConfig()
	cfg.Routing.Rules["/chat"] = config.RoutingRule{Mode: config.ModeByok, ProviderID: "p1"}

	route := Decide(cfg, "/chat", Model("byok:p2:foo"), true)

	require.NotNil(t, route.Provider)
	assert.Equal(t, "p1", route.Provider.ID)
	assert.Equal(t, "p1-small", route.Model, "a hint naming another provider is ignored")
	assert.Equal(t, "byok:p2:foo", route.RequestedModel)
}

func TestDecide_BodyHintSelectsProvider(t *testing.T) {
	cfg := testConfig()

	route := Decide(cfg, "/chat", Model("byok:p2:foo"), true)

	require.NotNil(t, route.Provider)
	assert.Equal(t, "p2", route.Provider.ID)
	assert.Equal(t, "foo", route.Model)
}

func TestDecide_ProviderAndModelFallbacks(t *testing.T) {
	t.Run("rule model wins over hint", func(t *testing.T) {
		cfg := testConfig()
		cfg.Routing.Rules["/chat"] = config.RoutingRule{Mode: config.ModeByok, ProviderID: "p1", Model: "pinned"}

		route := Decide(cfg, "/chat", Model("byok:p1:p1-large"), true)
		assert.Equal(t, "pinned", route.Model)
	})

	t.Run("hint for same provider is honored", func(t *testing.T) {
		cfg := testConfig()
		cfg.Routing.Rules["/chat"] = config.RoutingRule{Mode: config.ModeByok, ProviderID: "p1"}

		route := Decide(cfg, "/chat", Model("byok:p1:p1-large"), true)
		assert.Equal(t, "p1-large", route.Model)
	})

	t.Run("bare model name is never a pin", func(t *testing.T) {
		cfg := testConfig()
		cfg.Routing.DefaultProviderID = "p2"

		route := Decide(cfg, "/chat", Model("p1-large"), true)
		assert.Equal(t, "p2", route.Provider.ID)
		assert.Equal(t, "p2-default", route.Model)
	})

	t.Run("unknown provider falls back to first", func(t *testing.T) {
		cfg := testConfig()

		route := Decide(cfg, "/chat", Model("byok:ghost:model"), true)
		require.NotNil(t, route.Provider)
		assert.Equal(t, "p1", route.Provider.ID)
		assert.Equal(t, "p1-small", route.Model)
	})

	t.Run("no providers", func(t *testing.T) {
		cfg := testConfig()
		cfg.Providers = nil

		route := Decide(cfg, "/chat", Model("byok:p1:x"), true)
		assert.Equal(t, config.ModeByok, route.Mode)
		assert.Nil(t, route.Provider)
		assert.Equal(t, "", route.Model)
	})
}

func TestDecide_IsPure(t *testing.T) {
	cfg := testConfig()
	cfg.Routing.Rules["/chat-stream"] = config.RoutingRule{Mode: config.ModeByok, ProviderID: "p2"}

	inputs := []struct {
		endpoint string
		hint     ModelHint
		runtime  bool
	}{
		{"/chat-stream", Model("byok:p2:x"), true},
		{"/chat", Model("byok:p1:p1-large"), true},
		{"/chat", nil, false},
		{"", nil, true},
	}

	for _, in := range inputs {
		first := Decide(cfg, in.endpoint, in.hint, in.runtime)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Decide(cfg, in.endpoint, in.hint, in.runtime))
		}
	}
}
