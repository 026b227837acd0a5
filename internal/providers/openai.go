package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Davincible/byok-router/internal/apierr"
	"github.com/Davincible/byok-router/internal/wire"
)

// TypeOpenAICompatible is the provider type served by OpenAIProvider.
const TypeOpenAICompatible = "openai_compatible"

// OpenAIProvider speaks the OpenAI chat-completions protocol. Any backend that
// exposes /chat/completions (OpenAI, OpenRouter, NVIDIA, local servers) works.
type OpenAIProvider struct {
	client *wire.Client
	logger *slog.Logger
}

func NewOpenAIProvider(client *wire.Client, logger *slog.Logger) *OpenAIProvider {
	return &OpenAIProvider{client: client, logger: logger}
}

func (p *OpenAIProvider) Name() string {
	return TypeOpenAICompatible
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (p *OpenAIProvider) CompleteText(ctx context.Context, req Request) (string, error) {
	const label = "openai"

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

	var parsed openAIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &apierr.UpstreamError{Label: label, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil {
		return "", &apierr.UpstreamError{Label: label, Message: "response is missing choices[0].message.content"}
	}

	return *parsed.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) StreamTextDeltas(ctx context.Context, req Request) (DeltaStream, error) {
	const label = "openai stream"

	resp, err := p.send(ctx, label, req, true)
	if err != nil {
		return nil, err
	}

	if !isSuccess(resp) {
		return nil, errorFromResponse(label, resp)
	}

	return newSSEStream(ctx, label, resp, handleOpenAIEvent, p.logger), nil
}

func handleOpenAIEvent(data string) (string, bool, error) {
	if data == "[DONE]" {
		return "", true, nil
	}

	var chunk openAIStreamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false, err
	}

	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == nil {
		return "", false, nil
	}
	return *chunk.Choices[0].Delta.Content, false, nil
}

func (p *OpenAIProvider) send(ctx context.Context, label string, req Request, stream bool) (*http.Response, error) {
	if err := req.requireSettings(label); err != nil {
		return nil, err
	}

	messages := openAIMessages(req.System, req.Messages)
	if err := requireMessages(label, messages); err != nil {
		return nil, err
	}

	body := baseBody(req.RequestDefaults)
	body["model"] = strings.TrimSpace(req.Model)
	body["messages"] = messages
	body["stream"] = stream

	url := wire.JoinURL(req.BaseURL, "chat/completions")
	httpReq, err := wire.NewJSONRequest(ctx, url, body, openAIAuthHeaders(strings.TrimSpace(req.APIKey), req.ExtraHeaders))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}

	p.logger.Debug("Sending provider request", "provider", p.Name(), "url", url, "model", body["model"], "stream", stream, "messages", len(messages))

	return p.client.Do(ctx, httpReq, wire.Options{Timeout: req.Timeout, Label: label})
}

// openAIMessages prepends the system prompt and drops messages without content.
func openAIMessages(system string, messages []Message) []Message {
	out := make([]Message, 0, len(messages)+1)
	if s := strings.TrimSpace(system); s != "" {
		out = append(out, Message{Role: RoleSystem, Content: s})
	}
	for _, m := range messages {
		if m.HasContent() {
			out = append(out, m)
		}
	}
	return out
}
