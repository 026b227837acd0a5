package protocol

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/Davincible/byok-router/internal/config"
	"github.com/Davincible/byok-router/internal/endpoint"
)

const (
	// modelCompletionTimeoutMs is advertised for every synthesized BYOK model.
	modelCompletionTimeoutMs = 120000

	flagEnableModelRegistry = "enable_model_registry"
	flagModelRegistry       = "model_registry"
)

// ModelInfo describes one model in a /get-models result.
type ModelInfo struct {
	Name                     string `json:"name"`
	SuggestedPrefixCharCount int    `json:"suggested_prefix_char_count"`
	SuggestedSuffixCharCount int    `json:"suggested_suffix_char_count"`
	CompletionTimeoutMs      int    `json:"completion_timeout_ms"`
}

func NewModelInfo(name string) ModelInfo {
	return ModelInfo{Name: name, CompletionTimeoutMs: modelCompletionTimeoutMs}
}

// GetModelsResult is the locally synthesized /get-models answer used when the
// official backend cannot be reached.
type GetModelsResult struct {
	DefaultModel string         `json:"default_model"`
	Models       []ModelInfo    `json:"models"`
	FeatureFlags map[string]any `json:"feature_flags"`
}

// ByokModelIDs lists every "byok:<provider>:<model>" the config can serve: each
// provider's models and default model, then every rule that pins both a provider
// and a model. Order is kept and duplicates are dropped.
func ByokModelIDs(cfg *config.Config) []string {
	if cfg == nil {
		return []string{}
	}

	var (
		out  []string
		seen = make(map[string]bool)
	)
	add := func(providerID, modelID string) {
		providerID, modelID = strings.TrimSpace(providerID), strings.TrimSpace(modelID)
		if providerID == "" || modelID == "" {
			return
		}
		id := "byok:" + providerID + ":" + modelID
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	for _, p := range cfg.Providers {
		for _, m := range p.Models {
			add(p.ID, m)
		}
		add(p.ID, p.DefaultModel)
	}

	for _, ep := range sortedRuleKeys(cfg.Routing.Rules) {
		rule := cfg.Routing.Rules[ep]
		add(rule.ProviderID, rule.Model)
	}

	if out == nil {
		out = []string{}
	}
	return out
}

// LocalModels is the /get-models fallback built from the BYOK ids alone.
func LocalModels(byokIDs []string) GetModelsResult {
	models := make([]ModelInfo, 0, len(byokIDs))
	for _, id := range byokIDs {
		models = append(models, NewModelInfo(id))
	}

	defaultModel := "unknown"
	if len(byokIDs) > 0 {
		defaultModel = byokIDs[0]
	}

	return GetModelsResult{
		DefaultModel: defaultModel,
		Models:       models,
		FeatureFlags: map[string]any{},
	}
}

// MergeModels adds the BYOK ids missing from an upstream /get-models answer.
// Every upstream field is kept; default_model falls back to the first model and
// the model registry flags are switched on for the BYOK ids.
func MergeModels(upstream map[string]any, byokIDs []string) map[string]any {
	out := make(map[string]any, len(upstream)+3)
	for k, v := range upstream {
		out[k] = v
	}

	var models []any
	if list, ok := upstream["models"].([]any); ok {
		models = append(models, list...)
	}

	existing := make(map[string]bool, len(models))
	for _, m := range models {
		if name := modelName(m); name != "" {
			existing[name] = true
		}
	}
	for _, id := range byokIDs {
		if id == "" || existing[id] {
			continue
		}
		existing[id] = true
		models = append(models, modelInfoMap(NewModelInfo(id)))
	}
	if models == nil {
		models = []any{}
	}

	defaultModel, _ := upstream["default_model"].(string)
	if defaultModel == "" {
		defaultModel = "unknown"
		if len(models) > 0 {
			if name := modelName(models[0]); name != "" {
				defaultModel = name
			}
		}
	}

	baseFlags, _ := upstream["feature_flags"].(map[string]any)

	out["models"] = models
	out["default_model"] = defaultModel
	out["feature_flags"] = withModelRegistry(baseFlags, byokIDs)
	return out
}

// withModelRegistry returns a copy of flags with the model registry enabled and
// the BYOK ids registered. The registry is a JSON encoded object of id to id,
// merged with whatever the upstream registry already holds.
func withModelRegistry(flags map[string]any, byokIDs []string) map[string]any {
	out := make(map[string]any, len(flags)+2)
	for k, v := range flags {
		out[k] = v
	}

	registry := map[string]any{}
	switch existing := flags[flagModelRegistry].(type) {
	case string:
		_ = json.Unmarshal([]byte(existing), &registry)
	case map[string]any:
		for k, v := range existing {
			registry[k] = v
		}
	}
	if registry == nil {
		registry = map[string]any{}
	}

	for _, id := range byokIDs {
		registry[id] = id
	}

	encoded, err := json.Marshal(registry)
	if err != nil {
		encoded = []byte("{}")
	}

	out[flagEnableModelRegistry] = true
	out[flagModelRegistry] = string(encoded)
	return out
}

func modelName(m any) string {
	obj, ok := m.(map[string]any)
	if !ok {
		return ""
	}
	name, _ := obj["name"].(string)
	return name
}

func modelInfoMap(info ModelInfo) map[string]any {
	return map[string]any{
		"name":                        info.Name,
		"suggested_prefix_char_count": info.SuggestedPrefixCharCount,
		"suggested_suffix_char_count": info.SuggestedSuffixCharCount,
		"completion_timeout_ms":       info.CompletionTimeoutMs,
	}
}

// sortedRuleKeys orders rule endpoints by the endpoint table, then by name.
func sortedRuleKeys(rules map[string]config.RoutingRule) []string {
	rank := make(map[string]int)
	for i, p := range endpoint.Paths() {
		rank[p] = i
	}

	keys := make([]string, 0, len(rules))
	for k := range rules {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iKnown := rank[keys[i]]
		rj, jKnown := rank[keys[j]]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown != jKnown:
			return iKnown
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}
