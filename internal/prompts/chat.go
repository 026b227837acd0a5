package prompts

import (
	"encoding/json"
	"strings"

	"github.com/Davincible/byok-router/internal/endpoint"
	"github.com/Davincible/byok-router/internal/protocol"
	"github.com/Davincible/byok-router/internal/providers"
)

// Request node types the chat builders understand.
const (
	nodeTypeText  = 0
	nodeTypeImage = 2
)

var imageMediaTypes = map[int]string{
	1: "image/png",
	2: "image/jpeg",
	3: "image/gif",
	4: "image/webp",
}

type requestNode struct {
	Type     int `json:"type"`
	TextNode *struct {
		Content string `json:"content"`
	} `json:"text_node"`
	ImageNode *struct {
		ImageData string `json:"image_data"`
		Format    int    `json:"format"`
	} `json:"image_node"`
}

func chatBuilder(ep string) BuildFunc {
	purpose := "chat"
	if ep == endpoint.ChatStream {
		purpose = "chat:stream"
	}

	return func(req *protocol.Request) Prompt {
		var s sections
		s.text("Message", messageText(req))
		s.text("Mode", req.Mode)
		s.code("Code Context (prefix+selection+suffix)", req.Lang, req.Prefix+req.Selected()+req.Suffix)
		s.jsonBlock("Nodes", req.Nodes, maxJSONSectionChars)
		s.jsonBlock("Tool Definitions", req.ToolDefinitions, maxJSONSectionChars)

		user := providers.Message{Role: providers.RoleUser, Content: s.join("Hello")}
		if images := imageParts(req.Nodes); len(images) > 0 {
			user.Parts = append([]providers.ContentPart{{Type: providers.ContentTypeText, Text: user.Content}}, images...)
		}

		return Prompt{
			System:   system(purpose, req, "Output helpful assistant text. Use Markdown when it improves readability."),
			Messages: append(history(req.ChatHistory), user),
		}
	}
}

// messageText is the user's message, or the text nodes joined when the client
// only sent nodes.
func messageText(req *protocol.Request) string {
	if msg := strings.TrimSpace(req.Message); msg != "" {
		return msg
	}

	var parts []string
	for _, raw := range req.Nodes {
		var node requestNode
		if err := json.Unmarshal(raw, &node); err != nil {
			continue
		}
		if node.Type == nodeTypeText && node.TextNode != nil {
			if text := strings.TrimSpace(node.TextNode.Content); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// imageParts turns image nodes into data URL parts.
func imageParts(nodes []json.RawMessage) []providers.ContentPart {
	var out []providers.ContentPart
	for _, raw := range nodes {
		var node requestNode
		if err := json.Unmarshal(raw, &node); err != nil {
			continue
		}
		if node.Type != nodeTypeImage || node.ImageNode == nil {
			continue
		}

		data := strings.TrimSpace(node.ImageNode.ImageData)
		if data == "" {
			continue
		}
		mediaType, ok := imageMediaTypes[node.ImageNode.Format]
		if !ok {
			mediaType = "image/png"
		}

		out = append(out, providers.ContentPart{
			Type:     providers.ContentTypeImageURL,
			ImageURL: &providers.ImageURL{URL: "data:" + mediaType + ";base64," + data},
		})
	}
	return out
}

func buildPromptEnhancer(req *protocol.Request) Prompt {
	var s sections
	s.text("Prompt", messageText(req))
	s.text("Mode", req.Mode)

	return Prompt{
		System: system("prompt-enhancer", req,
			"Rewrite the user's prompt so it is clear and specific.\n- Keep the original intent and language\n- Output ONLY the improved prompt"),
		Messages: userTurn(history(req.ChatHistory), s.join("Improve my prompt.")),
	}
}

func buildConversationTitle(req *protocol.Request) Prompt {
	var s sections
	s.text("Message", messageText(req))
	s.text("Request", "Generate a title for this conversation.")

	return Prompt{
		System: system("conversation-title", req,
			"Output ONLY a short title of at most 8 words.\n- No quotes, no trailing punctuation"),
		Messages: userTurn(history(req.ChatHistory), s.join("Generate a title for this conversation.")),
	}
}
