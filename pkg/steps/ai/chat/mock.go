package chat

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/duet/pkg/conversation"
)

// MockModel returns canned answers in round-robin order and records every call it receives.
type MockModel struct {
	responses []string
	err       error
	delay     time.Duration
	chunkSize int
	mode      StreamMode
	name      string

	mu    sync.Mutex
	index int
	calls []conversation.Conversation
}

var _ Model = (*MockModel)(nil)
var _ Describer = (*MockModel)(nil)

type MockOption func(*MockModel)

// WithMockError makes every call fail with err.
func WithMockError(err error) MockOption {
	return func(m *MockModel) {
		m.err = err
	}
}

// WithMockDelay waits d before answering and between streamed chunks.
func WithMockDelay(d time.Duration) MockOption {
	return func(m *MockModel) {
		m.delay = d
	}
}

// WithMockChunkSize splits streamed answers into chunks of n runes.
func WithMockChunkSize(n int) MockOption {
	return func(m *MockModel) {
		m.chunkSize = n
	}
}

func WithMockStreamMode(mode StreamMode) MockOption {
	return func(m *MockModel) {
		m.mode = mode
	}
}

func WithMockName(name string) MockOption {
	return func(m *MockModel) {
		m.name = name
	}
}

func NewMockModel(responses []string, options ...MockOption) *MockModel {
	ret := &MockModel{
		responses: responses,
		chunkSize: 1,
		mode:      StreamModeDelta,
		name:      "mock",
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (m *MockModel) Info() ModelInfo {
	return ModelInfo{Name: m.name}
}

// Calls returns a copy of the prompts received so far.
func (m *MockModel) Calls() []conversation.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]conversation.Conversation, len(m.calls))
	copy(ret, m.calls)
	return ret
}

func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *MockModel) next(messages conversation.Conversation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, messages.Clone())
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", nil
	}
	ret := m.responses[m.index]
	m.index = (m.index + 1) % len(m.responses)
	return ret, nil
}

func (m *MockModel) wait(ctx context.Context) error {
	if m.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.delay):
		return nil
	}
}

func (m *MockModel) Invoke(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error) {
	text, err := m.next(messages)
	if err != nil {
		return nil, err
	}
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return conversation.NewAssistantMessage(text), nil
}

func (m *MockModel) Stream(ctx context.Context, messages conversation.Conversation) (*Stream, error) {
	text, err := m.next(messages)
	if err != nil {
		return nil, err
	}
	chunks := splitRunes(text, m.chunkSize)

	return StartStream(ctx, m.mode, func(ctx context.Context, emit Emit) error {
		sofar := ""
		for _, chunk := range chunks {
			if err := m.wait(ctx); err != nil {
				return err
			}
			sofar += chunk
			out := chunk
			if m.mode == StreamModeReplace {
				out = sofar
			}
			if err := emit(out); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

func splitRunes(s string, n int) []string {
	if n <= 0 {
		n = 1
	}
	runes := []rune(s)
	ret := []string{}
	for i := 0; i < len(runes); i += n {
		end := i + n
		if end > len(runes) {
			end = len(runes)
		}
		ret = append(ret, string(runes[i:end]))
	}
	return ret
}
