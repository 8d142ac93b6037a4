package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/go-go-golems/duet/pkg/helpers"
	"github.com/go-go-golems/duet/pkg/registry"
	"github.com/go-go-golems/duet/pkg/steps/ai/chat"
	"github.com/go-go-golems/duet/pkg/steps/ai/ollama"
	"github.com/go-go-golems/duet/pkg/steps/ai/openai"
	"github.com/go-go-golems/duet/pkg/steps/ai/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepSettings(provider string, engine string) *settings.StepSettings {
	st := settings.NewStepSettings()
	st.Chat.Provider = provider
	st.Chat.Engine = helpers.ToPtr(engine)
	return st
}

func TestFactoryEcho(t *testing.T) {
	f := NewModelFactory(nil)
	m, err := f.NewModel(context.Background(), stepSettings("echo", ""))
	require.NoError(t, err)
	assert.IsType(t, &chat.EchoModel{}, m)
}

func TestFactoryUsesRegistryKey(t *testing.T) {
	ctx := context.Background()
	r := registry.NewMemoryRegistry()
	require.NoError(t, r.RegisterConfig(ctx, registry.ProviderConfig{Provider: "groq", APIKey: "gsk-test"}))

	f := NewModelFactory(r)
	m, err := f.NewModel(ctx, stepSettings("groq", "llama-3.3-70b"))
	require.NoError(t, err)
	require.IsType(t, &openai.Model{}, m)
	assert.Equal(t, "llama-3.3-70b", chat.InfoOf(m).Name)
}

func TestFactoryMissingKey(t *testing.T) {
	t.Setenv("TOGETHER_API_KEY", "")
	f := NewModelFactory(registry.NewMemoryRegistry())
	_, err := f.NewModel(context.Background(), stepSettings("together", "mixtral"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestFactoryExplicitKeyWins(t *testing.T) {
	st := stepSettings("openai", "gpt-4o-mini")
	st.Chat.APIKey = "sk-explicit"
	m, err := NewModelFactory(nil).NewModel(context.Background(), st)
	require.NoError(t, err)
	assert.IsType(t, &openai.Model{}, m)
}

func TestFactoryOllama(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://127.0.0.1:11434")
	m, err := NewModelFactory(nil).NewModel(context.Background(), stepSettings("ollama", "llama3.2"))
	require.NoError(t, err)
	assert.IsType(t, &ollama.Model{}, m)
}

func TestFactoryUnknownProvider(t *testing.T) {
	_, err := NewModelFactory(nil).NewModel(context.Background(), stepSettings("nope", "x"))
	require.Error(t, err)
}
