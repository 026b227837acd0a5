package providers

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Davincible/byok-router/internal/apierr"
)

const (
	// Common role and content type constants
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"

	ContentTypeText     = "text"
	ContentTypeImageURL = "image_url"

	// Content types
	ContentTypeEventStream = "text/event-stream"
	ContentTypeJSON        = "application/json"

	errorSnippetChars = 500
)

// ImageURL is an OpenAI image reference, usually a data URL.
type ImageURL struct {
	URL string `json:"url"`
}

// ContentPart is one element of a structured message body.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// Message is the provider-neutral chat message. Content holds plain text; Parts,
// when set, replaces it with structured content.
type Message struct {
	Role       string
	Content    string
	Parts      []ContentPart
	ToolCallID string
}

func (m Message) MarshalJSON() ([]byte, error) {
	out := struct {
		Role       string `json:"role"`
		Content    any    `json:"content"`
		ToolCallID string `json:"tool_call_id,omitempty"`
	}{
		Role:       m.Role,
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	if len(m.Parts) > 0 {
		out.Content = m.Parts
	}
	return json.Marshal(out)
}

// HasContent reports whether the message carries text or structured parts.
func (m Message) HasContent() bool {
	return m.Content != "" || len(m.Parts) > 0
}

// Request is everything an adapter needs for one provider call. Cancellation is
// carried by the context passed alongside it.
type Request struct {
	BaseURL         string
	APIKey          string
	Model           string
	System          string
	Messages        []Message
	Timeout         time.Duration
	ExtraHeaders    map[string]string
	RequestDefaults map[string]any
}

// Adapter talks to one provider protocol.
type Adapter interface {
	// Name is the provider type the adapter serves.
	Name() string
	CompleteText(ctx context.Context, req Request) (string, error)
	StreamTextDeltas(ctx context.Context, req Request) (DeltaStream, error)
}

// DeltaStream yields text deltas in provider order. Recv returns io.EOF once the
// provider signals the end of the stream or the call is cancelled.
type DeltaStream interface {
	Recv() (string, error)
	Close() error
}

func (r Request) requireSettings(label string) error {
	switch {
	case strings.TrimSpace(r.BaseURL) == "":
		return &apierr.ConfigurationError{Label: label, Field: "base_url"}
	case strings.TrimSpace(r.APIKey) == "":
		return &apierr.ConfigurationError{Label: label, Field: "api_key"}
	case strings.TrimSpace(r.Model) == "":
		return &apierr.ConfigurationError{Label: label, Field: "model"}
	}
	return nil
}

func requireMessages[T any](label string, messages []T) error {
	if len(messages) == 0 {
		return &apierr.ConfigurationError{Label: label, Field: "messages"}
	}
	return nil
}

// baseBody copies the request defaults into a fresh body map.
func baseBody(defaults map[string]any) map[string]any {
	body := make(map[string]any, len(defaults)+4)
	for k, v := range defaults {
		body[k] = v
	}
	return body
}

// positiveNumber accepts the numeric forms config files and JSON produce.
func positiveNumber(v any) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case uint64:
		n = float64(x)
	case float64:
		n = x
	case float32:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if n <= 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
