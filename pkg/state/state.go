package state

import (
	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
)

// ThreadState is everything the pipeline knows about one conversation thread.
//
// Messages is the durable transcript and only ever grows through MutateAppendMessages.
// ReformulatedQuestion is scratch space written by the reformulation node and read by the
// response node; it is overwritten on every turn and never copied into Messages.
type ThreadState struct {
	ThreadID             string                    `json:"thread_id" yaml:"thread_id"`
	Messages             conversation.Conversation `json:"messages" yaml:"messages"`
	ReformulatedQuestion string                    `json:"reformulated_question" yaml:"reformulated_question"`
	Version              int64                     `json:"version" yaml:"version"`
}

// NewThreadState returns the empty state a thread starts from.
func NewThreadState(threadID string) *ThreadState {
	return &ThreadState{
		ThreadID: threadID,
		Messages: conversation.Conversation{},
	}
}

// Clone returns a deep copy, so that callers can mutate it without touching stored checkpoints.
func (ts *ThreadState) Clone() *ThreadState {
	if ts == nil {
		return nil
	}
	ret := clone.Clone(ts).(*ThreadState)
	if ret.Messages == nil {
		ret.Messages = conversation.Conversation{}
	}
	return ret
}

// IsEmpty reports whether the state carries neither messages nor a reformulated question.
func (ts *ThreadState) IsEmpty() bool {
	return ts == nil || (len(ts.Messages) == 0 && ts.ReformulatedQuestion == "")
}

// Apply applies a single mutation and increments the version.
func (ts *ThreadState) Apply(m Mutation) error {
	if ts == nil {
		return errors.New("thread state is nil")
	}
	if m == nil {
		return errors.New("mutation is nil")
	}
	if err := m.Apply(ts); err != nil {
		return errors.Wrapf(err, "mutation %s failed", m.Name())
	}
	ts.Version++
	return nil
}

// ApplyAll applies mutations in order and stops at the first failure.
func (ts *ThreadState) ApplyAll(muts ...Mutation) error {
	for _, m := range muts {
		if err := ts.Apply(m); err != nil {
			return err
		}
	}
	return nil
}
