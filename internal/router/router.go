// Package router decides, per call, whether an endpoint is served by the official
// backend, rejected, or sent to a configured BYOK provider.
package router

import (
	"strings"

	"github.com/Davincible/byok-router/internal/config"
	"github.com/Davincible/byok-router/internal/endpoint"
)

// Reason explains which step of the decision produced a Route.
type Reason string

const (
	ReasonEmptyEndpoint    Reason = "empty_endpoint"
	ReasonRollbackDisabled Reason = "rollback_disabled"
	ReasonByokDisabled     Reason = "byok_disabled"
	ReasonRule             Reason = "rule"
	ReasonUnknownMode      Reason = "unknown_mode"
	ReasonByok             Reason = "byok"
)

const byokPrefix = "byok:"

// ModelHint is implemented by request bodies that may name a model.
type ModelHint interface {
	RequestedModel() string
}

// Model is a bare model hint.
type Model string

func (m Model) RequestedModel() string { return string(m) }

// Route is the decision for one call. Provider and Model are only set for byok.
type Route struct {
	Mode           config.Mode
	Endpoint       string
	Reason         Reason
	Provider       *config.Provider
	Model          string
	RequestedModel string
}

// ByokModelID is the parsed form of "byok:<providerId>:<modelId>".
type ByokModelID struct {
	ProviderID string
	ModelID    string
}

func (id ByokModelID) String() string {
	return FormatByokModelID(id.ProviderID, id.ModelID)
}

func FormatByokModelID(providerID, modelID string) string {
	return byokPrefix + providerID + ":" + modelID
}

// ParseByokModelID parses s strictly: the prefix must be exactly "byok:" and both
// ids must be non-empty. The model id may itself contain colons.
func ParseByokModelID(s string) (ByokModelID, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), byokPrefix)
	if !ok {
		return ByokModelID{}, false
	}

	providerID, modelID, ok := strings.Cut(rest, ":")
	providerID = strings.TrimSpace(providerID)
	modelID = strings.TrimSpace(modelID)
	if !ok || providerID == "" || modelID == "" {
		return ByokModelID{}, false
	}

	return ByokModelID{ProviderID: providerID, ModelID: modelID}, true
}

// Decide resolves the route for a call. It reads nothing but its arguments, so the
// same inputs always produce the same Route.
func Decide(cfg *config.Config, rawEndpoint string, body ModelHint, runtimeEnabled bool) Route {
	ep := endpoint.Normalize(rawEndpoint)
	if ep == "" {
		return Route{Mode: config.ModeOfficial, Endpoint: ep, Reason: ReasonEmptyEndpoint}
	}
	if !runtimeEnabled {
		return Route{Mode: config.ModeOfficial, Endpoint: ep, Reason: ReasonRollbackDisabled}
	}
	if cfg == nil || !cfg.Enabled {
		return Route{Mode: config.ModeOfficial, Endpoint: ep, Reason: ReasonByokDisabled}
	}

	rule := cfg.Routing.Rules[ep]

	mode := rule.Mode
	if mode == "" {
		mode = cfg.Routing.DefaultMode
	}
	if mode == "" {
		mode = config.ModeOfficial
	}

	switch mode {
	case config.ModeOfficial, config.ModeDisabled:
		return Route{Mode: mode, Endpoint: ep, Reason: ReasonRule}
	case config.ModeByok:
	default:
		return Route{Mode: config.ModeOfficial, Endpoint: ep, Reason: ReasonUnknownMode}
	}

	var requested string
	if body != nil {
		requested = strings.TrimSpace(body.RequestedModel())
	}
	parsed, hasParsed := ParseByokModelID(requested)

	providerID := firstNonEmpty(rule.ProviderID, parsed.ProviderID, cfg.Routing.DefaultProviderID)
	provider := pickProvider(cfg, providerID)

	var parsedModel string
	if hasParsed && provider != nil && parsed.ProviderID == provider.ID {
		parsedModel = parsed.ModelID
	}

	var defaultModel string
	if provider != nil {
		defaultModel = provider.DefaultModel
	}

	return Route{
		Mode:           config.ModeByok,
		Endpoint:       ep,
		Reason:         ReasonByok,
		Provider:       provider,
		Model:          firstNonEmpty(rule.Model, parsedModel, defaultModel),
		RequestedModel: requested,
	}
}

func pickProvider(cfg *config.Config, id string) *config.Provider {
	if id != "" {
		if p, ok := cfg.Provider(id); ok {
			return p
		}
	}
	if len(cfg.Providers) > 0 {
		return &cfg.Providers[0]
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
