// Package gateway is the entry point for intercepted endpoint calls. It decides
// the route of each call, runs BYOK calls against the configured provider and
// shapes the answer into the endpoint's response contract.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Davincible/byok-router/internal/apierr"
	"github.com/Davincible/byok-router/internal/config"
	"github.com/Davincible/byok-router/internal/endpoint"
	"github.com/Davincible/byok-router/internal/metrics"
	"github.com/Davincible/byok-router/internal/prompts"
	"github.com/Davincible/byok-router/internal/protocol"
	"github.com/Davincible/byok-router/internal/providers"
	"github.com/Davincible/byok-router/internal/router"
	"github.com/Davincible/byok-router/internal/wire"
)

// Snapshotter hands out the config and kill switch a call runs with.
// config.Manager implements it.
type Snapshotter interface {
	Snapshot() config.RuntimeContext
}

// TransformFunc post-processes every result before it is returned to the caller.
type TransformFunc func(ep string, result any) (any, error)

// Call is one intercepted endpoint call.
type Call struct {
	Endpoint string
	Body     json.RawMessage
	// Transform defaults to the identity.
	Transform TransformFunc
	// Timeout overrides timeouts.upstream_ms when positive.
	Timeout time.Duration
	// UpstreamToken overrides the official API token for /get-models.
	UpstreamToken string
}

// TokenCounter estimates the number of tokens in a prompt.
type TokenCounter func(text string) int

type Gateway struct {
	snapshots Snapshotter
	registry  *providers.Registry
	prompts   prompts.Builder
	client    *wire.Client
	logger    *slog.Logger
	metrics   *metrics.Recorder
	tokens    TokenCounter
}

type Option func(*Gateway)

// WithPrompts replaces the default prompt builders.
func WithPrompts(b prompts.Builder) Option {
	return func(g *Gateway) { g.prompts = b }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithTokenCounter enables prompt token estimates in logs and metrics.
func WithTokenCounter(c TokenCounter) Option {
	return func(g *Gateway) { g.tokens = c }
}

func New(snapshots Snapshotter, registry *providers.Registry, client *wire.Client, logger *slog.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if client == nil {
		client = wire.NewClient(nil, logger)
	}

	g := &Gateway{
		snapshots: snapshots,
		registry:  registry,
		prompts:   prompts.Default(),
		client:    client,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// call is the per-call state resolved before dispatch.
type call struct {
	Call
	ep      string
	spec    endpoint.Spec
	cfg     *config.Config
	req     *protocol.Request
	route   router.Route
	timeout time.Duration
}

// HandleCall serves a single-response endpoint. handled is false when the call
// must go to the official backend instead.
func (g *Gateway) HandleCall(ctx context.Context, in Call) (result any, handled bool, err error) {
	c, stub, handled, err := g.prepare(in, endpoint.KindSingle)
	if !handled || err != nil {
		return nil, handled, err
	}
	if stub {
		return g.telemetryStub(c)
	}

	var raw any
	switch c.spec.Shape {
	case endpoint.ShapeGetModels:
		raw = g.getModels(ctx, c)
	case endpoint.ShapeNextEditLocation:
		raw = protocol.NewNextEditLocationResult(protocol.PickNextEditLocations(c.req))
	case endpoint.ShapeChat, endpoint.ShapeCompletion, endpoint.ShapeCodeEdit:
		text, err := g.completeText(ctx, c)
		if err != nil {
			return nil, true, err
		}
		raw = singleResult(c, text)
	default:
		return nil, false, nil
	}

	out, err := c.transform(raw)
	if err != nil {
		return nil, true, err
	}
	return out, true, nil
}

func singleResult(c *call, text string) any {
	switch c.spec.Shape {
	case endpoint.ShapeChat:
		return protocol.NewChatResult(text, c.req.Nodes, true)
	case endpoint.ShapeCompletion:
		return protocol.NewCompletionResult(text, int(c.timeout/time.Millisecond))
	default:
		return protocol.NewCodeEditResult(text)
	}
}

// prepare runs the checks shared by both call kinds. stub reports a
// telemetry-disabled endpoint that must be answered locally.
func (g *Gateway) prepare(in Call, kind endpoint.Kind) (c *call, stub, handled bool, err error) {
	ep := endpoint.Normalize(in.Endpoint)
	if ep == "" {
		return nil, false, false, nil
	}

	rc := g.snapshots.Snapshot()
	if !rc.RuntimeEnabled {
		return nil, false, false, nil
	}

	c = &call{Call: in, ep: ep, cfg: rc.Config}
	if c.cfg != nil && c.cfg.TelemetryDisabled(ep) {
		return c, true, true, nil
	}

	spec, ok := endpoint.Lookup(ep)
	if !ok || spec.Kind != kind {
		return nil, false, false, nil
	}
	c.spec = spec

	req, decodeErr := protocol.DecodeRequest(in.Body)
	c.req = req
	c.route = router.Decide(c.cfg, ep, req, rc.RuntimeEnabled)
	g.metrics.RouteDecision(ep, string(c.route.Mode), string(c.route.Reason))

	g.logger.Debug("Route decided",
		"endpoint", ep,
		"mode", c.route.Mode,
		"reason", c.route.Reason,
		"requested_model", c.route.RequestedModel,
	)

	switch c.route.Mode {
	case config.ModeByok:
	case config.ModeDisabled:
		return nil, false, true, &apierr.RoutingDisabledError{Endpoint: ep}
	default:
		return nil, false, false, nil
	}

	if decodeErr != nil {
		return nil, false, true, &apierr.RequestError{Endpoint: ep, Err: decodeErr}
	}

	c.timeout = in.Timeout
	if c.timeout <= 0 {
		c.timeout = time.Duration(c.cfg.Timeouts.UpstreamMs) * time.Millisecond
	}

	return c, false, true, nil
}

func (g *Gateway) telemetryStub(c *call) (any, bool, error) {
	out, err := c.transform(map[string]any{})
	if err != nil {
		g.logger.Warn("Telemetry stub transform failed, falling back to official", "endpoint", c.ep, "error", err)
		return nil, false, nil
	}
	g.metrics.TelemetryStubbed(c.ep)
	return out, true, nil
}

func (c *call) transform(raw any) (any, error) {
	if c.Transform == nil {
		return raw, nil
	}
	out, err := c.Transform(c.ep, raw)
	if err != nil {
		return nil, fmt.Errorf("transform %s result: %w", c.ep, err)
	}
	return out, nil
}

// providerRequest resolves the adapter and builds the provider request for c.
func (g *Gateway) providerRequest(c *call) (providers.Adapter, providers.Request, error) {
	p := c.route.Provider
	if p == nil {
		return nil, providers.Request{}, &apierr.ConfigurationError{Label: "byok", Field: "provider"}
	}

	label := fmt.Sprintf("provider %q", p.ID)
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, providers.Request{}, &apierr.ConfigurationError{Label: label, Field: "api_key"}
	}

	adapter, ok := g.registry.Get(p.Type)
	if !ok {
		return nil, providers.Request{}, &apierr.ConfigurationError{Label: label, Message: fmt.Sprintf("unknown provider type %q", p.Type)}
	}

	prompt, err := g.prompts.Build(c.ep, c.req)
	if err != nil {
		return nil, providers.Request{}, fmt.Errorf("build prompt: %w", err)
	}

	req := providers.Request{
		BaseURL:         p.BaseURL,
		APIKey:          p.APIKey,
		Model:           c.route.Model,
		System:          prompt.System,
		Messages:        prompt.Messages,
		Timeout:         c.timeout,
		ExtraHeaders:    p.Headers,
		RequestDefaults: p.RequestDefaults,
	}

	logFields := []any{
		"endpoint", c.ep,
		"provider", p.ID,
		"type", p.Type,
		"model", req.Model,
	}
	if g.tokens != nil {
		n := g.tokens(promptText(prompt))
		g.metrics.PromptTokens(p.ID, req.Model, n)
		logFields = append(logFields, "input_tokens", n)
	}
	g.logger.Info("Routing call to provider", logFields...)

	return adapter, req, nil
}

func (g *Gateway) completeText(ctx context.Context, c *call) (string, error) {
	adapter, req, err := g.providerRequest(c)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := adapter.CompleteText(ctx, req)
	g.metrics.ProviderCall(c.route.Provider.ID, req.Model, time.Since(start), err)
	if err != nil {
		g.logger.Error("Provider call failed", "endpoint", c.ep, "provider", c.route.Provider.ID, "error", err)
		return "", err
	}
	return text, nil
}

func promptText(p prompts.Prompt) string {
	var b strings.Builder
	b.WriteString(p.System)
	for _, m := range p.Messages {
		b.WriteString("\n")
		b.WriteString(m.Content)
		for _, part := range m.Parts {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
