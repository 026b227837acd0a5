package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/Davincible/byok-router/internal/apierr"
	"github.com/Davincible/byok-router/internal/wire"
)

// TypeAnthropic is the provider type served by AnthropicProvider.
const TypeAnthropic = "anthropic"

const defaultMaxTokens = 1024

type AnthropicProvider struct {
	client *wire.Client
	logger *slog.Logger
}

func NewAnthropicProvider(client *wire.Client, logger *slog.Logger) *AnthropicProvider {
	return &AnthropicProvider{client: client, logger: logger}
}

func (p *AnthropicProvider) Name() string {
	return TypeAnthropic
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string  `json:"type"`
		Text *string `json:"text"`
	} `json:"delta"`
}

func (p *AnthropicProvider) CompleteText(ctx context.Context, req Request) (string, error) {
	const label = "anthropic"

	resp, err := p.send(ctx, label, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !isSuccess(resp) {
		return "", errorFromResponse(label, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &apierr.UpstreamError{Label: label, Message: fmt.Sprintf("decode response: %v", err)}
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == ContentTypeText {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", &apierr.UpstreamError{Label: label, Message: "response is missing content[].text"}
	}

	return text.String(), nil
}

func (p *AnthropicProvider) StreamTextDeltas(ctx context.Context, req Request) (DeltaStream, error) {
	const label = "anthropic stream"

	resp, err := p.send(ctx, label, req, true)
	if err != nil {
		return nil, err
	}

	if !isSuccess(resp) {
		return nil, errorFromResponse(label, resp)
	}

	return newSSEStream(ctx, label, resp, handleAnthropicEvent, p.logger), nil
}

func handleAnthropicEvent(data string) (string, bool, error) {
	var ev anthropicStreamEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return "", false, err
	}

	switch ev.Type {
	case "message_stop":
		return "", true, nil
	case "content_block_delta":
		if ev.Delta.Type == "text_delta" && ev.Delta.Text != nil {
			return *ev.Delta.Text, false, nil
		}
	}
	return "", false, nil
}

func (p *AnthropicProvider) send(ctx context.Context, label string, req Request, stream bool) (*http.Response, error) {
	if err := req.requireSettings(label); err != nil {
		return nil, err
	}

	system, messages := anthropicMessages(req.System, req.Messages)
	if err := requireMessages(label, messages); err != nil {
		return nil, err
	}

	body := baseBody(req.RequestDefaults)
	delete(body, "maxTokens")
	body["model"] = strings.TrimSpace(req.Model)
	body["max_tokens"] = maxTokens(req.RequestDefaults)
	body["messages"] = messages
	body["stream"] = stream
	if system != "" {
		body["system"] = system
	}

	url := wire.JoinURL(req.BaseURL, "messages")
	httpReq, err := wire.NewJSONRequest(ctx, url, body, anthropicAuthHeaders(strings.TrimSpace(req.APIKey), req.ExtraHeaders))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}

	p.logger.Debug("Sending provider request", "provider", p.Name(), "url", url, "model", body["model"], "stream", stream, "messages", len(messages))

	return p.client.Do(ctx, httpReq, wire.Options{Timeout: req.Timeout, Label: label})
}

// anthropicMessages keeps user and assistant turns with plain text content. Tool
// messages and structured parts have no Anthropic encoding here and are dropped.
func anthropicMessages(system string, messages []Message) (string, []anthropicMessage) {
	out := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		if (m.Role != RoleUser && m.Role != RoleAssistant) || m.Content == "" {
			continue
		}
		out = append(out, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return strings.TrimSpace(system), out
}

func maxTokens(defaults map[string]any) any {
	v, ok := defaults["max_tokens"]
	if !ok || v == nil {
		v = defaults["maxTokens"]
	}

	n, ok := positiveNumber(v)
	if !ok {
		return defaultMaxTokens
	}
	if n == math.Trunc(n) {
		return int64(n)
	}
	return n
}
