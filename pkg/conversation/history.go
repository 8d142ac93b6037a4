package conversation

import "strings"

// NoPreviousConversation is the rendered history when there are no prior user or assistant turns.
const NoPreviousConversation = "No previous conversation."

// RenderHistory renders the turns as "User: ..." / "Assistant: ..." lines, one per message,
// skipping system messages. It returns an empty string when nothing is left to render.
func (c Conversation) RenderHistory() string {
	lines := make([]string, 0, len(c))
	for _, m := range c {
		if m == nil {
			continue
		}
		switch m.Role {
		case RoleSystem:
			continue
		case RoleUser:
			lines = append(lines, "User: "+m.Text)
		case RoleAssistant:
			lines = append(lines, "Assistant: "+m.Text)
		default:
			// anything that is neither system nor user is rendered as the assistant side
			lines = append(lines, "Assistant: "+m.Text)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// RenderHistoryOrDefault is RenderHistory with NoPreviousConversation as fallback.
func (c Conversation) RenderHistoryOrDefault() string {
	if h := c.RenderHistory(); h != "" {
		return h
	}
	return NoPreviousConversation
}
