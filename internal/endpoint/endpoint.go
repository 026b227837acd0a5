// Package endpoint holds the fixed set of LLM endpoints the gateway can serve and
// the contract each of them follows.
package endpoint

import (
	"net/url"
	"strings"
)

const (
	GetModels                   = "/get-models"
	Chat                        = "/chat"
	ChatStream                  = "/chat-stream"
	PromptEnhancer              = "/prompt-enhancer"
	Completion                  = "/completion"
	ChatInputCompletion         = "/chat-input-completion"
	Edit                        = "/edit"
	InstructionStream           = "/instruction-stream"
	SmartPasteStream            = "/smart-paste-stream"
	GenerateCommitMessageStream = "/generate-commit-message-stream"
	GenerateConversationTitle   = "/generate-conversation-title"
	NextEditStream              = "/next-edit-stream"
	NextEditLoc                 = "/next_edit_loc"
)

// Kind is the call style the client uses for an endpoint.
type Kind string

const (
	KindSingle Kind = "single"
	KindStream Kind = "stream"
)

// Shape names the response contract an endpoint produces.
type Shape string

const (
	ShapeGetModels        Shape = "get_models"
	ShapeChat             Shape = "chat"
	ShapeCompletion       Shape = "completion"
	ShapeCodeEdit         Shape = "code_edit"
	ShapeCommitMessage    Shape = "commit_message"
	ShapeNextEdit         Shape = "next_edit"
	ShapeNextEditLocation Shape = "next_edit_location"
)

// Spec describes one endpoint contract.
type Spec struct {
	Path  string
	Kind  Kind
	Shape Shape
	// Inputs lists the request fields the gateway consumes.
	Inputs []string
	// Outputs lists the response fields the gateway produces.
	Outputs []string
}

// Specs is the contract table, in the order the backend documents the endpoints.
var Specs = []Spec{
	{
		Path: GetModels, Kind: KindSingle, Shape: ShapeGetModels,
		Outputs: []string{"default_model", "models", "feature_flags"},
	},
	{
		Path: Chat, Kind: KindSingle, Shape: ShapeChat,
		Inputs:  []string{"model", "message", "chat_history", "prefix", "selected_code", "suffix", "path", "lang", "nodes", "mode", "tool_definitions"},
		Outputs: []string{"text", "unknown_blob_names", "checkpoint_not_found", "workspace_file_chunks", "nodes"},
	},
	{
		Path: ChatStream, Kind: KindStream, Shape: ShapeChat,
		Inputs:  []string{"model", "message", "chat_history", "prefix", "selected_code", "suffix", "path", "lang", "nodes", "mode", "tool_definitions"},
		Outputs: []string{"text", "unknown_blob_names", "checkpoint_not_found", "workspace_file_chunks", "nodes"},
	},
	{
		Path: PromptEnhancer, Kind: KindStream, Shape: ShapeChat,
		Inputs:  []string{"model", "nodes", "chat_history", "mode"},
		Outputs: []string{"text", "unknown_blob_names", "checkpoint_not_found", "workspace_file_chunks", "nodes"},
	},
	{
		Path: Completion, Kind: KindSingle, Shape: ShapeCompletion,
		Inputs:  []string{"model", "prompt", "suffix", "path", "lang"},
		Outputs: []string{"text", "unknown_blob_names", "checkpoint_not_found", "completion_timeout_ms"},
	},
	{
		Path: ChatInputCompletion, Kind: KindSingle, Shape: ShapeCompletion,
		Inputs:  []string{"model", "prompt", "suffix", "path", "lang"},
		Outputs: []string{"text", "unknown_blob_names", "checkpoint_not_found", "completion_timeout_ms"},
	},
	{
		Path: Edit, Kind: KindSingle, Shape: ShapeCodeEdit,
		Inputs:  []string{"model", "instruction", "prefix", "selected_text", "suffix", "path", "lang"},
		Outputs: []string{"text", "unknown_blob_names", "checkpoint_not_found"},
	},
	{
		Path: InstructionStream, Kind: KindStream, Shape: ShapeCodeEdit,
		Inputs:  []string{"model", "instruction", "prefix", "selected_text", "suffix", "path", "lang", "chat_history"},
		Outputs: []string{"text", "unknown_blob_names", "checkpoint_not_found"},
	},
	{
		Path: SmartPasteStream, Kind: KindStream, Shape: ShapeCodeEdit,
		Inputs:  []string{"model", "instruction", "prefix", "selected_text", "suffix", "path", "lang", "code_block", "target_file_path", "target_file_content"},
		Outputs: []string{"text", "unknown_blob_names", "checkpoint_not_found"},
	},
	{
		Path: GenerateCommitMessageStream, Kind: KindStream, Shape: ShapeCommitMessage,
		Inputs:  []string{"diff", "changed_file_stats", "relevant_commit_messages", "example_commit_messages"},
		Outputs: []string{"text"},
	},
	{
		Path: GenerateConversationTitle, Kind: KindStream, Shape: ShapeChat,
		Inputs:  []string{"model", "chat_history", "mode"},
		Outputs: []string{"text", "unknown_blob_names", "checkpoint_not_found", "workspace_file_chunks", "nodes"},
	},
	{
		Path: NextEditStream, Kind: KindStream, Shape: ShapeNextEdit,
		Inputs:  []string{"model", "instruction", "prefix", "selected_text", "suffix", "selection_begin_char", "selection_end_char", "path", "blob_name", "lang", "diagnostics", "recent_changes", "blocked_locations", "mode", "scope"},
		Outputs: []string{"unknown_blob_names", "checkpoint_not_found", "next_edit"},
	},
	{
		Path: NextEditLoc, Kind: KindSingle, Shape: ShapeNextEditLocation,
		Inputs:  []string{"path", "diagnostics", "num_results"},
		Outputs: []string{"candidate_locations", "unknown_blob_names", "checkpoint_not_found", "critical_errors"},
	},
}

var byPath = func() map[string]Spec {
	m := make(map[string]Spec, len(Specs))
	for _, s := range Specs {
		m[s.Path] = s
	}
	return m
}()

// Lookup returns the contract for a normalized endpoint.
func Lookup(path string) (Spec, bool) {
	s, ok := byPath[path]
	return s, ok
}

// Paths returns the 13 endpoint paths in table order.
func Paths() []string {
	out := make([]string, 0, len(Specs))
	for _, s := range Specs {
		out = append(out, s.Path)
	}
	return out
}

// Normalize turns an endpoint reference ("chat", "/chat/", "https://host/chat?x=1")
// into its canonical "/name" form. It returns "" when nothing usable remains.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = u.Path
	}

	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return ""
	}

	s = strings.Trim(s, "/")
	if s == "" {
		return ""
	}
	return "/" + s
}
