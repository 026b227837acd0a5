package config

import (
	"fmt"
	"strings"

	"github.com/Davincible/byok-router/internal/endpoint"
)

const (
	DefaultPort             = 6971
	DefaultHost             = "127.0.0.1"
	DefaultConfigFilename   = "config.yaml"
	DefaultUpstreamMs       = 120000
	DefaultOfficialEndpoint = "https://api.augmentcode.com/"
)

// Mode is the routing outcome for an endpoint.
type Mode string

const (
	ModeOfficial Mode = "official"
	ModeByok     Mode = "byok"
	ModeDisabled Mode = "disabled"
)

// ParseMode returns the mode named by s, or "" when s is not a known mode.
func ParseMode(s string) Mode {
	switch m := Mode(strings.TrimSpace(s)); m {
	case ModeOfficial, ModeByok, ModeDisabled:
		return m
	default:
		return ""
	}
}

// Provider types.
const (
	ProviderOpenAICompatible = "openai_compatible"
	ProviderAnthropic        = "anthropic"
)

type Provider struct {
	ID              string            `json:"id" yaml:"id"`
	Type            string            `json:"type" yaml:"type"`
	BaseURL         string            `json:"base_url" yaml:"base_url"`
	APIKey          string            `json:"api_key" yaml:"api_key"`
	Models          []string          `json:"models" yaml:"models"`
	DefaultModel    string            `json:"default_model" yaml:"default_model"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	RequestDefaults map[string]any    `json:"request_defaults,omitempty" yaml:"request_defaults,omitempty"`
}

type RoutingRule struct {
	Mode       Mode   `json:"mode,omitempty" yaml:"mode,omitempty"`
	ProviderID string `json:"provider_id,omitempty" yaml:"provider_id,omitempty"`
	Model      string `json:"model,omitempty" yaml:"model,omitempty"`
}

type Routing struct {
	DefaultMode       Mode                   `json:"default_mode" yaml:"default_mode"`
	DefaultProviderID string                 `json:"default_provider_id,omitempty" yaml:"default_provider_id,omitempty"`
	Rules             map[string]RoutingRule `json:"rules" yaml:"rules"`
}

// Official is the first-party backend connection used for fallthrough and get-models.
type Official struct {
	CompletionURL string `json:"completion_url" yaml:"completion_url"`
	APIToken      string `json:"api_token,omitempty" yaml:"api_token,omitempty"`
}

type Timeouts struct {
	UpstreamMs int `json:"upstream_ms" yaml:"upstream_ms"`
}

type Telemetry struct {
	DisabledEndpoints []string `json:"disabled_endpoints" yaml:"disabled_endpoints"`
}

// Server configures the HTTP listener in front of the gateway.
type Server struct {
	Host   string `json:"host,omitempty" yaml:"host,omitempty"`
	Port   int    `json:"port,omitempty" yaml:"port,omitempty"`
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// Config is an immutable snapshot. Callers must not modify a Config obtained from
// a Manager; build a new one and Save it instead.
type Config struct {
	Version   int        `json:"version" yaml:"version"`
	Enabled   bool       `json:"enabled" yaml:"enabled"`
	Server    Server     `json:"server" yaml:"server"`
	Official  Official   `json:"official" yaml:"official"`
	Providers []Provider `json:"providers" yaml:"providers"`
	Routing   Routing    `json:"routing" yaml:"routing"`
	Timeouts  Timeouts   `json:"timeouts" yaml:"timeouts"`
	Telemetry Telemetry  `json:"telemetry" yaml:"telemetry"`
}

// RuntimeContext is what a single call reads once at its start.
type RuntimeContext struct {
	Config         *Config
	RuntimeEnabled bool
}

// DefaultTelemetryEndpoints are answered locally with an empty result.
var DefaultTelemetryEndpoints = []string{
	"/client-metrics",
	"/client-completion-timelines",
	"/record-preference-sample",
	"/record-request-events",
	"/record-session-events",
	"/record-user-events",
	"/report-error",
	"/resolve-completions",
	"/resolve-edit",
	"/resolve-instruction",
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	rules := make(map[string]RoutingRule, len(endpoint.Specs))
	for _, p := range endpoint.Paths() {
		rules[p] = RoutingRule{Mode: ModeByok}
	}

	return &Config{
		Version: 1,
		Enabled: true,
		Server: Server{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Official: Official{CompletionURL: DefaultOfficialEndpoint},
		Providers: []Provider{
			{
				ID:           "openai",
				Type:         ProviderOpenAICompatible,
				BaseURL:      "https://api.openai.com/v1",
				Models:       []string{"gpt-4o-mini"},
				DefaultModel: "gpt-4o-mini",
			},
			{
				ID:           "anthropic",
				Type:         ProviderAnthropic,
				BaseURL:      "https://api.anthropic.com/v1",
				Models:       []string{"claude-3-5-sonnet-20241022"},
				DefaultModel: "claude-3-5-sonnet-20241022",
			},
		},
		Routing: Routing{
			DefaultMode: ModeOfficial,
			Rules:       rules,
		},
		Timeouts:  Timeouts{UpstreamMs: DefaultUpstreamMs},
		Telemetry: Telemetry{DisabledEndpoints: append([]string(nil), DefaultTelemetryEndpoints...)},
	}
}

// Normalize fills defaults and canonicalizes a freshly decoded Config in place.
// Providers without an id or type are dropped; endpoint keys are normalized.
func Normalize(cfg *Config) {
	if cfg.Version <= 0 {
		cfg.Version = 1
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	cfg.Official.CompletionURL = strings.TrimSpace(cfg.Official.CompletionURL)
	if cfg.Official.CompletionURL == "" {
		cfg.Official.CompletionURL = DefaultOfficialEndpoint
	}
	cfg.Official.APIToken = strings.TrimSpace(cfg.Official.APIToken)
	if cfg.Timeouts.UpstreamMs <= 0 {
		cfg.Timeouts.UpstreamMs = DefaultUpstreamMs
	}

	telemetry := make([]string, 0, len(cfg.Telemetry.DisabledEndpoints))
	seen := make(map[string]bool)
	for _, ep := range cfg.Telemetry.DisabledEndpoints {
		if ep = endpoint.Normalize(ep); ep != "" && !seen[ep] {
			seen[ep] = true
			telemetry = append(telemetry, ep)
		}
	}
	cfg.Telemetry.DisabledEndpoints = telemetry

	cfg.Routing.DefaultMode = ParseMode(string(cfg.Routing.DefaultMode))
	if cfg.Routing.DefaultMode == "" {
		cfg.Routing.DefaultMode = ModeOfficial
	}
	cfg.Routing.DefaultProviderID = strings.TrimSpace(cfg.Routing.DefaultProviderID)

	rules := make(map[string]RoutingRule, len(cfg.Routing.Rules))
	for key, rule := range cfg.Routing.Rules {
		ep := endpoint.Normalize(key)
		if ep == "" {
			continue
		}
		rules[ep] = RoutingRule{
			Mode:       ParseMode(string(rule.Mode)),
			ProviderID: strings.TrimSpace(rule.ProviderID),
			Model:      strings.TrimSpace(rule.Model),
		}
	}
	cfg.Routing.Rules = rules

	providers := make([]Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		p.ID = strings.TrimSpace(p.ID)
		p.Type = strings.TrimSpace(p.Type)
		if p.ID == "" || p.Type == "" {
			continue
		}
		p.BaseURL = strings.TrimSpace(p.BaseURL)
		p.APIKey = strings.TrimSpace(p.APIKey)
		p.DefaultModel = strings.TrimSpace(p.DefaultModel)
		p.Models = dedupe(p.Models)
		if len(p.Models) == 0 && p.DefaultModel != "" {
			p.Models = []string{p.DefaultModel}
		}
		if p.DefaultModel == "" && len(p.Models) > 0 {
			p.DefaultModel = p.Models[0]
		}
		if p.Headers == nil {
			p.Headers = map[string]string{}
		}
		if p.RequestDefaults == nil {
			p.RequestDefaults = map[string]any{}
		}
		providers = append(providers, p)
	}
	cfg.Providers = providers
}

// Validate reports every problem that would make routing fail at call time.
func (c *Config) Validate() []error {
	var errs []error

	ids := make(map[string]bool)
	for i, p := range c.Providers {
		if ids[p.ID] {
			errs = append(errs, fmt.Errorf("provider %d: duplicate id %q", i, p.ID))
		}
		ids[p.ID] = true

		if p.Type != ProviderOpenAICompatible && p.Type != ProviderAnthropic {
			errs = append(errs, fmt.Errorf("provider %q: unknown type %q", p.ID, p.Type))
		}
		if p.BaseURL == "" {
			errs = append(errs, fmt.Errorf("provider %q: base_url is required", p.ID))
		}
		if p.APIKey == "" {
			errs = append(errs, fmt.Errorf("provider %q: api_key is required", p.ID))
		}
		if len(p.Models) > 0 && p.DefaultModel == "" {
			errs = append(errs, fmt.Errorf("provider %q: default_model is required", p.ID))
		}
	}

	if id := c.Routing.DefaultProviderID; id != "" && !ids[id] {
		errs = append(errs, fmt.Errorf("routing: default provider %q is not configured", id))
	}
	for ep, rule := range c.Routing.Rules {
		if rule.ProviderID != "" && !ids[rule.ProviderID] {
			errs = append(errs, fmt.Errorf("routing rule %s: provider %q is not configured", ep, rule.ProviderID))
		}
	}

	if c.Timeouts.UpstreamMs <= 0 {
		errs = append(errs, fmt.Errorf("timeouts: upstream_ms must be positive"))
	}

	return errs
}

// Provider returns the provider with the given id.
func (c *Config) Provider(id string) (*Provider, bool) {
	for i := range c.Providers {
		if c.Providers[i].ID == id {
			return &c.Providers[i], true
		}
	}
	return nil, false
}

// TelemetryDisabled reports whether ep is answered with an empty stub.
func (c *Config) TelemetryDisabled(ep string) bool {
	for _, e := range c.Telemetry.DisabledEndpoints {
		if e == ep {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
