package prompts

import (
	"strings"

	"github.com/Davincible/byok-router/internal/protocol"
)

const noFences = "- No markdown, no explanations\n- Do NOT wrap in ``` code fences"

func buildCompletion(req *protocol.Request) Prompt {
	prefix := req.Prompt
	if prefix == "" {
		prefix = req.Prefix
	}

	var s sections
	s.text("Path", req.Path)
	s.text("Language", req.Lang)
	s.code("Prefix", req.Lang, prefix)
	s.code("Suffix", req.Lang, req.Suffix)

	return Prompt{
		System: system("completion", req,
			"Continue the code at the cursor, which sits between the prefix and the suffix.\n- Output ONLY the text to insert\n"+noFences),
		Messages: userTurn(nil, s.join("Complete the code.")),
	}
}

func buildChatInputCompletion(req *protocol.Request) Prompt {
	var s sections
	s.text("Partial Message", req.Prompt)
	s.text("Suffix", req.Suffix)

	return Prompt{
		System: system("chat-input-completion", req,
			"Continue the partially typed chat message.\n- Output ONLY the continuation, never the text already typed\n- Plain text on a single line"),
		Messages: userTurn(nil, s.join("Continue.")),
	}
}

// codeContext adds the prefix, selection and suffix blocks of an edit request.
func codeContext(s *sections, req *protocol.Request, selectedTitle string) {
	s.code("Prefix", req.Lang, req.Prefix)
	s.code(selectedTitle, req.Lang, req.Selected())
	s.code("Suffix", req.Lang, req.Suffix)
}

func instructionOr(req *protocol.Request, fallback string) string {
	if in := strings.TrimSpace(req.Instruction); in != "" {
		return in
	}
	return fallback
}

func buildEdit(req *protocol.Request) Prompt {
	var s sections
	s.text("Instruction", instructionOr(req, "Improve the selected code."))
	s.text("Path", req.Path)
	s.text("Language", req.Lang)
	codeContext(&s, req, "Selected (rewrite this)")

	return Prompt{
		System: system("edit", req,
			"Apply the instruction to the selected code.\n- Output ONLY the rewritten selection\n"+noFences),
		Messages: userTurn(nil, s.join("Improve the selected code.")),
	}
}

func buildInstructionStream(req *protocol.Request) Prompt {
	var s sections
	s.text("Instruction", instructionOr(req, "Improve the selected code."))
	s.text("Path", req.Path)
	s.text("Language", req.Lang)
	codeContext(&s, req, "Selected (rewrite this)")

	return Prompt{
		System: system("instruction-stream", req,
			"Apply the instruction to the selected code.\n- Output ONLY the rewritten selection\n"+noFences),
		Messages: userTurn(history(req.ChatHistory), s.join("Improve the selected code.")),
	}
}

func buildSmartPaste(req *protocol.Request) Prompt {
	var s sections
	s.text("Instruction", instructionOr(req, "Integrate the pasted code into the target file."))
	s.text("Target File Path", req.TargetFilePath)
	s.code("Pasted Code", req.Lang, req.CodeBlock)
	s.code("Target File Content", req.Lang, req.TargetFileContent)
	s.text("Path", req.Path)
	s.text("Language", req.Lang)
	codeContext(&s, req, "Selected (replace this)")

	return Prompt{
		System: system("smart-paste-stream", req,
			"Merge the pasted code into the target file, adapting names and style to it.\n- Output ONLY the resulting code\n"+noFences),
		Messages: userTurn(nil, s.join("Integrate the pasted code.")),
	}
}

func buildNextEdit(req *protocol.Request) Prompt {
	var s sections
	s.text("Instruction", instructionOr(req, "Propose the next code edit."))
	s.text("Path", req.Path)
	s.text("Language", req.Lang)
	s.text("Mode", req.Mode)
	s.text("Scope", req.Scope)
	s.jsonBlock("Diagnostics", req.Diagnostics, maxJSONSectionChars)
	s.jsonBlock("Recent Changes", rawJSON(req.RecentChanges), maxJSONSectionChars)
	s.jsonBlock("Blocked Locations", rawJSON(req.BlockedLocations), maxJSONSectionChars)
	s.code("Prefix", req.Lang, req.Prefix)
	s.code("Selected (replace this)", req.Lang, req.Selected())
	s.code("Suffix", req.Lang, req.Suffix)

	return Prompt{
		System: system("next-edit-stream", req,
			"Propose the next minimal edit.\n- Output ONLY the replacement code for the selected range\n"+noFences),
		Messages: userTurn(nil, s.join("Propose an edit.")),
	}
}

func buildCommitMessage(req *protocol.Request) Prompt {
	var s sections
	s.code("Diff", "diff", truncate(req.Diff, maxDiffChars))
	s.jsonBlock("Changed File Stats", rawJSON(req.ChangedFileStats), maxJSONSectionChars)
	s.jsonBlock("Relevant Commit Messages", rawJSON(req.RelevantCommitMessages), maxJSONSectionChars)
	s.jsonBlock("Example Commit Messages", rawJSON(req.ExampleCommitMessages), maxJSONSectionChars)

	return Prompt{
		System: system("commit-message", req,
			"Write a git commit message for the diff.\n- Follow the style of the example messages when given\n- Summary line of at most 72 characters\n- Output ONLY the commit message"),
		Messages: userTurn(nil, s.join("Write a commit message.")),
	}
}
