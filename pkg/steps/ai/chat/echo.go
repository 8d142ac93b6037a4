package chat

import (
	"context"
	"time"

	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/pkg/errors"
)

// EchoModel answers with the text of the last user message, one character at a time.
// It needs no network and is handy for trying out the pipeline.
type EchoModel struct {
	TimePerCharacter time.Duration
}

var _ Model = (*EchoModel)(nil)
var _ Describer = (*EchoModel)(nil)

func NewEchoModel() *EchoModel {
	return &EchoModel{
		TimePerCharacter: 20 * time.Millisecond,
	}
}

func (e *EchoModel) Info() ModelInfo {
	return ModelInfo{Name: "echo"}
}

func lastUserText(messages conversation.Conversation) (string, error) {
	msg, ok := messages.LastOfRole(conversation.RoleUser)
	if !ok {
		return "", errors.New("no user message to echo")
	}
	return msg.Text, nil
}

func (e *EchoModel) Invoke(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error) {
	text, err := lastUserText(messages)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return conversation.NewAssistantMessage(text), nil
}

func (e *EchoModel) Stream(ctx context.Context, messages conversation.Conversation) (*Stream, error) {
	text, err := lastUserText(messages)
	if err != nil {
		return nil, err
	}

	return StartStream(ctx, StreamModeDelta, func(ctx context.Context, emit Emit) error {
		for _, c_ := range text {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.TimePerCharacter):
			}
			if err := emit(string(c_)); err != nil {
				return err
			}
		}
		return nil
	}), nil
}
