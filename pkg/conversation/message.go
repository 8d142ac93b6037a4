package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrUnknownRole is returned when a message carries a role outside of system, user and assistant.
var ErrUnknownRole = errors.New("unknown message role")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Validate reports whether r is one of the three supported roles.
func (r Role) Validate() error {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return nil
	default:
		return errors.Wrapf(ErrUnknownRole, "%q", string(r))
	}
}

// Message is a single turn of a conversation. Messages are never modified after
// they have been appended to a Conversation.
type Message struct {
	ID   uuid.UUID `json:"id" yaml:"id"`
	Role Role      `json:"role" yaml:"role"`
	Text string    `json:"text" yaml:"text"`
	Time time.Time `json:"time" yaml:"time"`
}

type MessageOption func(*Message)

func WithID(id uuid.UUID) MessageOption {
	return func(m *Message) {
		m.ID = id
	}
}

func WithTime(t time.Time) MessageOption {
	return func(m *Message) {
		m.Time = t
	}
}

func NewChatMessage(role Role, text string, options ...MessageOption) *Message {
	ret := &Message{
		ID:   uuid.New(),
		Role: role,
		Text: text,
		Time: time.Now(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func NewSystemMessage(text string, options ...MessageOption) *Message {
	return NewChatMessage(RoleSystem, text, options...)
}

func NewUserMessage(text string, options ...MessageOption) *Message {
	return NewChatMessage(RoleUser, text, options...)
}

func NewAssistantMessage(text string, options ...MessageOption) *Message {
	return NewChatMessage(RoleAssistant, text, options...)
}

func (m *Message) String() string {
	return m.Text
}

// View renders the message for logs and terminals.
func (m *Message) View() string {
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(m.Text, "\n"))
}

// Conversation is an ordered message log. Order is creation order.
type Conversation []*Message

func NewConversation(messages ...*Message) Conversation {
	ret := make(Conversation, 0, len(messages))
	return append(ret, messages...)
}

// Last returns the most recent message, or nil for an empty conversation.
func (c Conversation) Last() *Message {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

// Clone returns a copy of the conversation slice. Messages are shared since they are immutable.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return Conversation{}
	}
	ret := make(Conversation, len(c))
	copy(ret, c)
	return ret
}

// Validate checks that every message is non-nil and carries a known role.
func (c Conversation) Validate() error {
	for i, m := range c {
		if m == nil {
			return errors.Errorf("message %d is nil", i)
		}
		if err := m.Role.Validate(); err != nil {
			return errors.Wrapf(err, "message %d", i)
		}
	}
	return nil
}

// LastOfRole returns the most recent message with the given role.
func (c Conversation) LastOfRole(role Role) (*Message, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i] != nil && c[i].Role == role {
			return c[i], true
		}
	}
	return nil, false
}
