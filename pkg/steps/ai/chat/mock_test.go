package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, s *Stream) ([]string, error) {
	t.Helper()
	var chunks []string
	for r := range s.Chunks() {
		v, err := r.Value()
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, v)
	}
	return chunks, s.Err()
}

func TestMockModelRoundRobinAndRecordsCalls(t *testing.T) {
	m := NewMockModel([]string{"First", "Second"})
	ctx := context.Background()
	input := conversation.NewConversation(conversation.NewUserMessage("Test input"))

	for _, expected := range []string{"First", "Second", "First"} {
		msg, err := m.Invoke(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, conversation.RoleAssistant, msg.Role)
		assert.Equal(t, expected, msg.Text)
	}

	require.Equal(t, 3, m.CallCount())
	assert.Equal(t, "Test input", m.Calls()[0][0].Text)
}

func TestMockModelDeltaStream(t *testing.T) {
	m := NewMockModel([]string{"Hello"}, WithMockChunkSize(3))
	s, err := m.Stream(context.Background(), conversation.NewConversation(conversation.NewUserMessage("hi")))
	require.NoError(t, err)
	assert.Equal(t, StreamModeDelta, s.Mode())

	chunks, err := collect(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, chunks)
}

func TestMockModelReplaceStream(t *testing.T) {
	m := NewMockModel([]string{"Hel"}, WithMockStreamMode(StreamModeReplace))
	s, err := m.Stream(context.Background(), conversation.NewConversation(conversation.NewUserMessage("hi")))
	require.NoError(t, err)

	chunks, err := collect(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"H", "He", "Hel"}, chunks)
}

func TestMockModelError(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockModel([]string{"x"}, WithMockError(boom))
	_, err := m.Invoke(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, m.CallCount())
}

func TestMockModelHonoursDeadline(t *testing.T) {
	m := NewMockModel([]string{"slow"}, WithMockDelay(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Invoke(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStreamCloseStopsProducer(t *testing.T) {
	m := NewMockModel([]string{"a long answer"}, WithMockDelay(5*time.Millisecond))
	s, err := m.Stream(context.Background(), nil)
	require.NoError(t, err)

	first := <-s.Chunks()
	require.True(t, first.Ok())
	s.Close()

	_, err = collect(t, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEchoModel(t *testing.T) {
	e := &EchoModel{TimePerCharacter: time.Millisecond}
	input := conversation.NewConversation(
		conversation.NewSystemMessage("be nice"),
		conversation.NewUserMessage("héllo"),
	)

	msg, err := e.Invoke(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "héllo", msg.Text)

	s, err := e.Stream(context.Background(), input)
	require.NoError(t, err)
	chunks, err := collect(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"h", "é", "l", "l", "o"}, chunks)

	_, err = e.Invoke(context.Background(), conversation.NewConversation(conversation.NewSystemMessage("x")))
	assert.Error(t, err)
}

func TestStreamModeValidate(t *testing.T) {
	assert.NoError(t, StreamModeDelta.Validate())
	assert.NoError(t, StreamModeReplace.Validate())
	assert.Error(t, StreamMode("diff").Validate())
}
