// Package prompts embeds the prompt templates the studio CLI sends with
// provider calls. Shipping them inside the binary keeps the CLI working
// without a prompts directory on disk; editing a template means
// rebuilding, which is the point: prompt changes are code changes.
package prompts

import (
	_ "embed"
	"strings"
)

//go:embed templates/chat-system.md
var chatSystem string

//go:embed templates/rewrite-instructions.md
var rewriteInstructions string

// ChatSystem returns the system prompt for studio chat sessions.
func ChatSystem() string {
	return strings.TrimSpace(chatSystem)
}

// Rewrite returns the rewrite request for one file: the instruction
// preamble with the file's path, the caller's goal, and the current
// content filled in.
func Rewrite(path, goal, content string) string {
	s := strings.TrimSpace(rewriteInstructions)
	s = strings.ReplaceAll(s, "{{path}}", path)
	s = strings.ReplaceAll(s, "{{goal}}", goal)
	s = strings.ReplaceAll(s, "{{content}}", content)
	return s
}
