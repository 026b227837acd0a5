package protocol

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// ChatResult is the chat response shape, shared by /chat, /chat-stream,
// /prompt-enhancer and /generate-conversation-title. Nodes is only present on
// /chat and the first chunk of a stream.
type ChatResult struct {
	Text                string             `json:"text"`
	UnknownBlobNames    []string           `json:"unknown_blob_names"`
	CheckpointNotFound  bool               `json:"checkpoint_not_found"`
	WorkspaceFileChunks []json.RawMessage  `json:"workspace_file_chunks"`
	Nodes               *[]json.RawMessage `json:"nodes,omitempty"`
}

func NewChatResult(text string, nodes []json.RawMessage, includeNodes bool) ChatResult {
	out := ChatResult{
		Text:                text,
		UnknownBlobNames:    []string{},
		WorkspaceFileChunks: []json.RawMessage{},
	}
	if includeNodes {
		if nodes == nil {
			nodes = []json.RawMessage{}
		}
		out.Nodes = &nodes
	}
	return out
}

// CompletionResult answers /completion and /chat-input-completion.
type CompletionResult struct {
	Text                string   `json:"text"`
	UnknownBlobNames    []string `json:"unknown_blob_names"`
	CheckpointNotFound  bool     `json:"checkpoint_not_found"`
	CompletionTimeoutMs *int     `json:"completion_timeout_ms,omitempty"`
}

func NewCompletionResult(text string, timeoutMs int) CompletionResult {
	return CompletionResult{
		Text:                text,
		UnknownBlobNames:    []string{},
		CompletionTimeoutMs: &timeoutMs,
	}
}

// CodeEditResult answers /edit and each chunk of /instruction-stream and
// /smart-paste-stream.
type CodeEditResult struct {
	Text               string   `json:"text"`
	UnknownBlobNames   []string `json:"unknown_blob_names"`
	CheckpointNotFound bool     `json:"checkpoint_not_found"`
}

func NewCodeEditResult(text string) CodeEditResult {
	return CodeEditResult{Text: text, UnknownBlobNames: []string{}}
}

// CommitMessageChunk is one chunk of /generate-commit-message-stream.
type CommitMessageChunk struct {
	Text string `json:"text"`
}

func NewCommitMessageChunk(text string) CommitMessageChunk {
	return CommitMessageChunk{Text: text}
}

const unknownPlaceholder = "(unknown)"

// NextEdit is the suggestion carried by a NextEditResult.
type NextEdit struct {
	SuggestionID          string  `json:"suggestion_id"`
	Path                  string  `json:"path"`
	BlobName              string  `json:"blob_name"`
	CharStart             int     `json:"char_start"`
	CharEnd               int     `json:"char_end"`
	ExistingCode          string  `json:"existing_code"`
	SuggestedCode         string  `json:"suggested_code"`
	ChangeDescription     string  `json:"change_description"`
	EditingScore          float64 `json:"editing_score"`
	LocalizationScore     float64 `json:"localization_score"`
	EditingScoreThreshold float64 `json:"editing_score_threshold"`
}

// NextEditResult is the single event of /next-edit-stream.
type NextEditResult struct {
	UnknownBlobNames   []string `json:"unknown_blob_names"`
	CheckpointNotFound bool     `json:"checkpoint_not_found"`
	NextEdit           NextEdit `json:"next_edit"`
}

// NewNextEditResult wraps the suggested replacement for the selection of req.
// char_end never precedes char_start.
func NewNextEditResult(req *Request, suggestedCode string) NextEditResult {
	begin, end := req.SelectionRange()
	if end < begin {
		end = begin
	}

	path := strings.TrimSpace(req.Path)
	if path == "" {
		path = unknownPlaceholder
	}
	blobName := strings.TrimSpace(req.BlobName)
	if blobName == "" {
		blobName = unknownPlaceholder
	}

	return NextEditResult{
		UnknownBlobNames: []string{},
		NextEdit: NextEdit{
			SuggestionID:          "byok:" + uuid.NewString(),
			Path:                  path,
			BlobName:              blobName,
			CharStart:             begin,
			CharEnd:               end,
			ExistingCode:          req.SelectedText,
			SuggestedCode:         suggestedCode,
			ChangeDescription:     "BYOK suggestion",
			EditingScore:          1,
			LocalizationScore:     1,
			EditingScoreThreshold: 1,
		},
	}
}
