package state

import (
	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/pkg/errors"
)

// Mutation is a deterministic change to a ThreadState. Pipeline nodes return mutations
// instead of writing to the state directly, so that each field has exactly one reducer.
type Mutation interface {
	Apply(ts *ThreadState) error
	Name() string
}

type appendMessagesMutation struct {
	messages []*conversation.Message
}

func (m appendMessagesMutation) Apply(ts *ThreadState) error {
	for i, msg := range m.messages {
		if msg == nil {
			return errors.Errorf("message %d is nil", i)
		}
		if err := msg.Role.Validate(); err != nil {
			return err
		}
	}
	ts.Messages = append(ts.Messages, m.messages...)
	return nil
}

func (m appendMessagesMutation) Name() string { return "append_messages" }

// MutateAppendMessages appends messages to the transcript. It is the only way messages are added.
func MutateAppendMessages(messages ...*conversation.Message) Mutation {
	return appendMessagesMutation{messages: messages}
}

type setReformulatedQuestionMutation struct {
	question string
}

func (m setReformulatedQuestionMutation) Apply(ts *ThreadState) error {
	ts.ReformulatedQuestion = m.question
	return nil
}

func (m setReformulatedQuestionMutation) Name() string { return "set_reformulated_question" }

// MutateSetReformulatedQuestion overwrites the scratch question for the current turn.
func MutateSetReformulatedQuestion(question string) Mutation {
	return setReformulatedQuestionMutation{question: question}
}
