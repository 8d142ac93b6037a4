package chat

import (
	"context"

	"github.com/go-go-golems/duet/pkg/conversation"
)

// Model is a chat-completion capable LLM.
//
// Invoke returns the complete assistant message. Stream returns a finite, single-reader
// sequence of text chunks whose meaning is given by Stream.Mode.
// Both must honour ctx cancellation and deadlines.
type Model interface {
	Invoke(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error)
	Stream(ctx context.Context, messages conversation.Conversation) (*Stream, error)
}

// ModelInfo describes a model for logs and event metadata.
type ModelInfo struct {
	Name        string
	Temperature *float64
}

// Describer is implemented by models that can report what they are.
type Describer interface {
	Info() ModelInfo
}

// InfoOf returns m's ModelInfo, or an empty one when m does not describe itself.
func InfoOf(m Model) ModelInfo {
	if d, ok := m.(Describer); ok {
		return d.Info()
	}
	return ModelInfo{}
}
