package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHistorySkipsSystemMessages(t *testing.T) {
	c := NewConversation(
		NewSystemMessage("be nice"),
		NewUserMessage("what is g?"),
		NewAssistantMessage("9.8 m/s^2"),
		NewUserMessage("and on the moon?"),
	)

	assert.Equal(t, "User: what is g?\nAssistant: 9.8 m/s^2\nUser: and on the moon?", c.RenderHistory())
}

func TestRenderHistoryOrDefault(t *testing.T) {
	c := NewConversation(NewSystemMessage("only system"))
	assert.Equal(t, "", c.RenderHistory())
	assert.Equal(t, NoPreviousConversation, c.RenderHistoryOrDefault())
}

func TestConversationLastAndClone(t *testing.T) {
	var empty Conversation
	assert.Nil(t, empty.Last())
	assert.NotNil(t, empty.Clone())

	first := NewUserMessage("hello")
	c := NewConversation(first)
	cloned := c.Clone()
	cloned = append(cloned, NewAssistantMessage("hi"))

	assert.Len(t, c, 1)
	assert.Len(t, cloned, 2)
	assert.Same(t, first, c.Last())

	last, ok := cloned.LastOfRole(RoleUser)
	require.True(t, ok)
	assert.Same(t, first, last)
}

func TestConversationValidate(t *testing.T) {
	c := NewConversation(NewUserMessage("ok"), NewChatMessage(Role("tool"), "nope"))
	err := c.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownRole)

	require.NoError(t, NewConversation(NewUserMessage("ok")).Validate())
}
