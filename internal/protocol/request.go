// Package protocol holds the typed request and response shapes of the 13 LLM
// endpoints and the translation between provider text and those shapes.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Number is an optional JSON number. Numeric strings are accepted; anything else
// leaves it unset.
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	n.Value, n.Valid = parseNumber(data)
	return nil
}

// Int returns the value truncated to an int and whether it was set. Values
// outside the int range count as unset.
func (n Number) Int() (int, bool) {
	if !n.Valid || !(n.Value >= math.MinInt && n.Value < math.MaxInt) {
		return 0, false
	}
	return int(n.Value), true
}

func parseNumber(data []byte) (float64, bool) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, false
	}
	return toNumber(v)
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Exchange is one turn of chat history.
type Exchange struct {
	RequestMessage string `json:"request_message"`
	ResponseText   string `json:"response_text"`
	RequestID      string `json:"request_id,omitempty"`
}

// Request is the union of the fields the gateway reads from any of the 13
// endpoint bodies. Fields an endpoint does not send stay at their zero value;
// anything else in the body is ignored.
type Request struct {
	Model                  *string           `json:"model"`
	ModelName              *string           `json:"model_name"`
	ModelNameAlt           *string           `json:"modelName"`
	ProviderModelName      *string           `json:"provider_model_name"`
	ProviderModelNameAlt   *string           `json:"providerModelName"`
	Message                string            `json:"message"`
	Prompt                 string            `json:"prompt"`
	Instruction            string            `json:"instruction"`
	Prefix                 string            `json:"prefix"`
	SelectedCode           string            `json:"selected_code"`
	SelectedText           string            `json:"selected_text"`
	Suffix                 string            `json:"suffix"`
	Path                   string            `json:"path"`
	Lang                   string            `json:"lang"`
	BlobName               string            `json:"blob_name"`
	Mode                   string            `json:"mode"`
	Scope                  string            `json:"scope"`
	UserGuidelines         string            `json:"user_guidelines"`
	WorkspaceGuidelines    string            `json:"workspace_guidelines"`
	CodeBlock              string            `json:"code_block"`
	TargetFilePath         string            `json:"target_file_path"`
	TargetFileContent      string            `json:"target_file_content"`
	Diff                   string            `json:"diff"`
	ChatHistory            []Exchange        `json:"chat_history"`
	Nodes                  []json.RawMessage `json:"nodes"`
	ToolDefinitions        []json.RawMessage `json:"tool_definitions"`
	Rules                  []json.RawMessage `json:"rules"`
	Diagnostics            []json.RawMessage `json:"diagnostics"`
	RecentChanges          json.RawMessage   `json:"recent_changes"`
	BlockedLocations       json.RawMessage   `json:"blocked_locations"`
	ChangedFileStats       json.RawMessage   `json:"changed_file_stats"`
	RelevantCommitMessages json.RawMessage   `json:"relevant_commit_messages"`
	ExampleCommitMessages  json.RawMessage   `json:"example_commit_messages"`
	SelectionBeginChar     Number            `json:"selection_begin_char"`
	SelectionEndChar       Number            `json:"selection_end_char"`
	NumResults             Number            `json:"num_results"`
}

// DecodeRequest parses an endpoint body. An empty or null body is an empty Request.
func DecodeRequest(raw []byte) (*Request, error) {
	req := &Request{}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return req, nil
	}

	if err := json.Unmarshal(trimmed, req); err != nil {
		return &Request{}, fmt.Errorf("decode request body: %w", err)
	}
	return req, nil
}

// RequestedModel returns the first model field present in the body.
func (r *Request) RequestedModel() string {
	if r == nil {
		return ""
	}
	for _, v := range []*string{r.Model, r.ModelName, r.ModelNameAlt, r.ProviderModelName, r.ProviderModelNameAlt} {
		if v != nil {
			return strings.TrimSpace(*v)
		}
	}
	return ""
}

// SelectionRange returns the selection offsets with an absent end defaulting to
// the start and an absent start defaulting to 0.
func (r *Request) SelectionRange() (begin, end int) {
	begin, _ = r.SelectionBeginChar.Int()
	end, ok := r.SelectionEndChar.Int()
	if !ok {
		end = begin
	}
	return begin, end
}

// Selected returns the selection text, whichever field the endpoint uses for it.
func (r *Request) Selected() string {
	if r.SelectedText != "" {
		return r.SelectedText
	}
	return r.SelectedCode
}
