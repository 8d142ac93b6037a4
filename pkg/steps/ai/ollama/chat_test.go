package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/go-go-golems/duet/pkg/helpers"
	"github.com/go-go-golems/duet/pkg/steps/ai/settings"
	"github.com/jmorganca/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() *settings.StepSettings {
	st := settings.NewStepSettings()
	st.Chat.Engine = helpers.ToPtr("llama3.2")
	st.Chat.Temperature = helpers.ToPtr(1.0)
	st.Ollama.NumCtx = helpers.ToPtr(2048)
	return st
}

func TestMakeChatRequest(t *testing.T) {
	req, err := MakeChatRequest(testSettings(), conversation.NewConversation(
		conversation.NewSystemMessage("be brief"),
		conversation.NewUserMessage("hi"),
	))
	require.NoError(t, err)

	assert.Equal(t, "llama3.2", req.Model)
	require.NotNil(t, req.Stream)
	assert.True(t, *req.Stream)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, 1.0, req.Options["temperature"])
	assert.Equal(t, 2048, req.Options["num_ctx"])
}

func TestModelStreamsDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, c := range []string{"Hel", "lo"} {
			b, _ := json.Marshal(map[string]interface{}{
				"model":   "llama3.2",
				"message": map[string]string{"role": "assistant", "content": c},
				"done":    false,
			})
			_, _ = fmt.Fprintf(w, "%s\n", b)
		}
		_, _ = fmt.Fprint(w, `{"model":"llama3.2","done":true}`+"\n")
	}))
	defer srv.Close()

	t.Setenv("OLLAMA_HOST", srv.URL)
	client, err := api.ClientFromEnvironment()
	require.NoError(t, err)

	m, err := NewModel(testSettings(), client)
	require.NoError(t, err)

	msg, err := m.Invoke(context.Background(), conversation.NewConversation(conversation.NewUserMessage("hi")))
	require.NoError(t, err)
	assert.Equal(t, "Hello", msg.Text)
}
