package cmds

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-go-golems/duet/pkg/checkpoint"
	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/go-go-golems/duet/pkg/registry"
	"github.com/go-go-golems/duet/pkg/state"
	"github.com/go-go-golems/duet/pkg/steps/ai/settings"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadPipelineSettingsOverrides(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	viper.Set("response-provider", "echo")
	viper.Set("reformulate-provider", "groq")
	viper.Set("reformulate-model", "llama-3.1-8b-instant")
	viper.Set("personality", "pirate")
	viper.Set("no-stream", true)
	viper.Set("store", "memory")
	viper.Set("registry", filepath.Join(dir, "registry.db"))

	ps, err := LoadPipelineSettings()
	require.NoError(t, err)

	assert.Equal(t, "echo", ps.Response.Chat.EngineName())
	assert.Equal(t, "llama-3.1-8b-instant", ps.Reformulate.Chat.EngineName())
	assert.Equal(t, "pirate", ps.Personality)
	assert.False(t, ps.Stream)
	assert.Equal(t, settings.StoreTypeMemory, ps.Store.Type)
	assert.Equal(t, filepath.Join(dir, "registry.db"), ps.RegistryPath)
	require.NoError(t, ps.Validate())
}

func TestLoadPipelineSettingsDefaultPaths(t *testing.T) {
	resetViper(t)
	ps, err := LoadPipelineSettings()
	require.NoError(t, err)
	assert.Equal(t, settings.StoreTypeSQLite, ps.Store.Type)
	assert.True(t, strings.HasSuffix(ps.Store.Path, filepath.Join("duet", "threads.db")))
	assert.True(t, strings.HasSuffix(ps.RegistryPath, filepath.Join("duet", "registry.db")))
}

func runCommand(t *testing.T, args ...string) (string, error) {
	root := NewRegistryCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRegistryCommand(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), "registry.db")
	viper.Set("registry", path)

	_, err := runCommand(t, "add-config", "groq", "--api-key", "gsk-secret")
	require.NoError(t, err)
	_, err = runCommand(t, "add-model", "groq", "llama-3.3-70b", "--display-name", "Llama 70B")
	require.NoError(t, err)
	_, err = runCommand(t, "add-personality", "pirate", "Answer like a pirate.")
	require.NoError(t, err)

	out, err := runCommand(t, "list", "configs", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"has_api_key": true`)
	assert.NotContains(t, out, "gsk-secret")

	out, err = runCommand(t, "list", "models")
	require.NoError(t, err)
	assert.Contains(t, out, "display_name: Llama 70B")

	out, err = runCommand(t, "list", "personalities", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "pirate")
	assert.Contains(t, out, "Answer like a pirate.")

	_, err = runCommand(t, "list", "models", "-o", "xml")
	assert.Error(t, err)

	_, err = runCommand(t, "add-personality", "pirate", "again")
	assert.ErrorIs(t, err, registry.ErrAlreadyExists)

	_, err = runCommand(t, "rm-personality", "pirate")
	require.NoError(t, err)
	_, err = runCommand(t, "rm-personality", "pirate")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestPrintMessages(t *testing.T) {
	msgs := conversation.NewConversation(
		conversation.NewUserMessage("what is g?"),
		conversation.NewChatMessage(conversation.RoleAssistant, "<think>physics</think>9.81 m/s²"),
	)
	ctx := context.Background()

	out := &bytes.Buffer{}
	require.NoError(t, printMessages(ctx, out, msgs, "text"))
	assert.Contains(t, out.String(), "user:\nwhat is g?")
	assert.Contains(t, out.String(), "assistant:\n9.81 m/s²")
	assert.NotContains(t, out.String(), "physics")

	out.Reset()
	require.NoError(t, printMessages(ctx, out, msgs, "yaml"))
	assert.Contains(t, out.String(), "reasoning: physics")

	out.Reset()
	require.NoError(t, printMessages(ctx, out, msgs, "json"))
	assert.Contains(t, out.String(), `"role": "user"`)
	assert.Contains(t, out.String(), `"reasoning": "physics"`)

	assert.Error(t, printMessages(ctx, out, msgs, "xml"))
}

func TestDefaultAPIEnvName(t *testing.T) {
	assert.Equal(t, "GROQ_API_KEY", DefaultAPIEnvName("groq"))
	assert.Equal(t, "OPEN_ROUTER_API_KEY", DefaultAPIEnvName("open-router"))
}

func TestRegistryAddConfigDefaultsEnvName(t *testing.T) {
	resetViper(t)
	viper.Set("registry", filepath.Join(t.TempDir(), "registry.db"))

	_, err := runCommand(t, "add-config", "together")
	require.NoError(t, err)

	out, err := runCommand(t, "list", "configs")
	require.NoError(t, err)
	assert.Contains(t, out, "api_env_name: TOGETHER_API_KEY")
	assert.Contains(t, out, "has_api_key: false")
}

func TestHistoryCommand(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	storePath := filepath.Join(dir, "threads.db")
	viper.Set("store", "sqlite")
	viper.Set("store-path", storePath)
	viper.Set("registry", filepath.Join(dir, "registry.db"))

	ctx := context.Background()
	dsn, err := checkpoint.SQLiteDSNForFile(storePath)
	require.NoError(t, err)
	store, err := checkpoint.NewSQLiteStore(dsn)
	require.NoError(t, err)
	for _, id := range []string{"work-1", "work-2", "home-1"} {
		ts := state.NewThreadState(id)
		require.NoError(t, ts.Apply(state.MutateAppendMessages(
			conversation.NewUserMessage("question of "+id),
			conversation.NewChatMessage(conversation.RoleAssistant, "**answer**"),
		)))
		require.NoError(t, store.Save(ctx, id, ts))
	}
	require.NoError(t, store.Close())

	run := func(args ...string) string {
		cmd := NewHistoryCommand()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs(args)
		require.NoError(t, cmd.ExecuteContext(ctx))
		return out.String()
	}

	out := run("--match", "work-*")
	assert.Equal(t, []string{"work-1", "work-2"}, strings.Fields(out))

	out = run("home-1", "-o", "plain")
	assert.Contains(t, out, "question of home-1")
	assert.Contains(t, out, "assistant:\nanswer\n")

	run("home-1", "--delete")
	out = run()
	assert.NotContains(t, out, "home-1")
}

func TestTokensCount(t *testing.T) {
	cmd := NewTokensCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"count", "--model", "gpt-4", "hello", "world"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Total tokens: 2\n")
}
