// Package prompts turns endpoint request bodies into provider prompts.
//
// Every BYOK endpoint that calls a model has a default builder here. Builders are
// pure: the same request always produces the same prompt.
package prompts

import (
	"fmt"

	"github.com/Davincible/byok-router/internal/endpoint"
	"github.com/Davincible/byok-router/internal/protocol"
	"github.com/Davincible/byok-router/internal/providers"
)

// Prompt is what gets sent to a provider: a system prompt plus the
// conversation, last message being the current user turn.
type Prompt struct {
	System   string
	Messages []providers.Message
}

// Builder produces the prompt for one endpoint call.
type Builder interface {
	Build(ep string, req *protocol.Request) (Prompt, error)
}

// BuildFunc builds the prompt of a single endpoint.
type BuildFunc func(req *protocol.Request) Prompt

// Table dispatches on the normalized endpoint path. Endpoints without an entry
// use Fallback when it is set.
type Table struct {
	Builders map[string]BuildFunc
	Fallback BuildFunc
}

func (t *Table) Build(ep string, req *protocol.Request) (Prompt, error) {
	if req == nil {
		req = &protocol.Request{}
	}

	build, ok := t.Builders[ep]
	if !ok {
		build = t.Fallback
	}
	if build == nil {
		return Prompt{}, fmt.Errorf("no prompt builder for endpoint %q", ep)
	}
	return build(req), nil
}

// Default returns the built-in builders for every model-backed endpoint. Unknown
// endpoints are treated as chat.
func Default() *Table {
	return &Table{
		Builders: map[string]BuildFunc{
			endpoint.Chat:                        chatBuilder(endpoint.Chat),
			endpoint.ChatStream:                  chatBuilder(endpoint.ChatStream),
			endpoint.PromptEnhancer:              buildPromptEnhancer,
			endpoint.GenerateConversationTitle:   buildConversationTitle,
			endpoint.Completion:                  buildCompletion,
			endpoint.ChatInputCompletion:         buildChatInputCompletion,
			endpoint.Edit:                        buildEdit,
			endpoint.InstructionStream:           buildInstructionStream,
			endpoint.SmartPasteStream:            buildSmartPaste,
			endpoint.GenerateCommitMessageStream: buildCommitMessage,
			endpoint.NextEditStream:              buildNextEdit,
		},
		Fallback: chatBuilder(endpoint.Chat),
	}
}
