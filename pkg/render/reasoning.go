package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// ReasoningTags are the tag names models use to wrap hidden reasoning.
var ReasoningTags = []string{"think", "reasoning", "thought", "analysis", "internal"}

// SplitReasoning separates a leading reasoning block from the visible answer.
// Only a block opening at the very start of text counts, and it ends at the first matching closing tag.
// Both parts are trimmed. Without such a block, reasoning is empty.
func SplitReasoning(text string) (reasoning string, visible string) {
	for _, tag := range ReasoningTags {
		open := "<" + tag + ">"
		if !strings.HasPrefix(text, open) {
			continue
		}
		rest := text[len(open):]
		end := strings.Index(rest, "</"+tag+">")
		if end < 0 {
			continue
		}
		return strings.TrimSpace(rest[:end]), strings.TrimSpace(rest[end+len(tag)+3:])
	}
	return "", strings.TrimSpace(text)
}

// RenderMarkdown renders text for a terminal. style is a glamour style name such as "dark" or "notty".
func RenderMarkdown(text string, style string) (string, error) {
	if style == "" {
		style = "auto"
	}
	return glamour.Render(text, style)
}
