package prompts

import (
	"encoding/json"
	"strings"

	"github.com/Davincible/byok-router/internal/protocol"
	"github.com/Davincible/byok-router/internal/providers"
)

const (
	maxHistoryExchanges = 16
	maxJSONSectionChars = 12000
	maxDiffChars        = 48000

	truncatedMarker = "\n...(truncated)"
)

// sections collects the non-empty blocks of a user prompt.
type sections []string

func (s *sections) text(title, body string) {
	if body = strings.TrimSpace(body); body != "" {
		*s = append(*s, "### "+title+"\n"+body)
	}
}

func (s *sections) code(title, lang, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	*s = append(*s, "### "+title+"\n```"+strings.TrimSpace(lang)+"\n"+body+"\n```")
}

// jsonBlock adds v as an indented JSON block capped at maxChars runes. Nil values,
// JSON null and empty lists are skipped.
func (s *sections) jsonBlock(title string, v any, maxChars int) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	switch strings.TrimSpace(string(data)) {
	case "", "null", "[]":
		return
	}
	*s = append(*s, "### "+title+"\n```json\n"+truncate(string(data), maxChars)+"\n```")
}

// join returns the prompt text, or fallback when there is nothing to say.
func (s sections) join(fallback string) string {
	if out := strings.TrimSpace(strings.Join(s, "\n\n")); out != "" {
		return out
	}
	return fallback
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if maxChars <= 0 || len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars]) + truncatedMarker
}

// system is the shared system prompt layout: a purpose line, the caller's
// guidelines and rules, then the output constraints of the endpoint.
func system(purpose string, req *protocol.Request, constraints string) string {
	var b strings.Builder
	b.WriteString("You are an expert software engineering assistant embedded in a code editor.\n")
	b.WriteString("Task: " + purpose)

	if g := strings.TrimSpace(req.UserGuidelines); g != "" {
		b.WriteString("\n\n## User Guidelines\n" + g)
	}
	if g := strings.TrimSpace(req.WorkspaceGuidelines); g != "" {
		b.WriteString("\n\n## Workspace Guidelines\n" + g)
	}
	if rules := ruleTexts(req.Rules); len(rules) > 0 {
		b.WriteString("\n\n## Rules")
		for _, r := range rules {
			b.WriteString("\n- " + r)
		}
	}
	if c := strings.TrimSpace(constraints); c != "" {
		b.WriteString("\n\n## Output\n" + c)
	}
	return b.String()
}

// ruleTexts extracts rule bodies. Rules arrive either as plain strings or as
// objects carrying content or text.
func ruleTexts(raw []json.RawMessage) []string {
	var out []string
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}

		var obj struct {
			Content string `json:"content"`
			Text    string `json:"text"`
		}
		if err := json.Unmarshal(r, &obj); err != nil {
			continue
		}
		if s := strings.TrimSpace(obj.Content); s != "" {
			out = append(out, s)
		} else if s := strings.TrimSpace(obj.Text); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// history converts the most recent exchanges into alternating user and
// assistant messages. Empty sides are dropped.
func history(exchanges []protocol.Exchange) []providers.Message {
	if len(exchanges) > maxHistoryExchanges {
		exchanges = exchanges[len(exchanges)-maxHistoryExchanges:]
	}

	out := make([]providers.Message, 0, len(exchanges)*2)
	for _, ex := range exchanges {
		if strings.TrimSpace(ex.RequestMessage) != "" {
			out = append(out, providers.Message{Role: providers.RoleUser, Content: ex.RequestMessage})
		}
		if strings.TrimSpace(ex.ResponseText) != "" {
			out = append(out, providers.Message{Role: providers.RoleAssistant, Content: ex.ResponseText})
		}
	}
	return out
}

func userTurn(prior []providers.Message, content string) []providers.Message {
	return append(prior, providers.Message{Role: providers.RoleUser, Content: content})
}

// rawJSON keeps an optional raw field out of a section when the body did not
// send it.
func rawJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
