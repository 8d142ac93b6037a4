package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registryFactory struct {
	name string
	new  func(t *testing.T) Store
}

func registryFactories() []registryFactory {
	return []registryFactory{
		{
			name: "memory",
			new: func(t *testing.T) Store {
				return NewMemoryRegistry()
			},
		},
		{
			name: "sqlite",
			new: func(t *testing.T) Store {
				r, err := NewSQLiteRegistryFromFile(filepath.Join(t.TempDir(), "registry.db"))
				require.NoError(t, err)
				t.Cleanup(func() { _ = r.Close() })
				return r
			},
		},
	}
}

func TestRegistryModels(t *testing.T) {
	for _, f := range registryFactories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			r := f.new(t)

			require.NoError(t, r.RegisterModel(ctx, ModelEntry{Provider: "groq", DisplayName: "Llama 70B", ModelName: "llama-3.3-70b"}))
			require.NoError(t, r.RegisterModel(ctx, ModelEntry{Provider: "openai", DisplayName: "GPT-4o mini", ModelName: "gpt-4o-mini"}))

			err := r.RegisterModel(ctx, ModelEntry{Provider: "groq", DisplayName: "dup", ModelName: "llama-3.3-70b"})
			assert.True(t, errors.Is(err, ErrAlreadyExists))

			name, ok, err := r.GetModelDisplayName(ctx, "groq", "llama-3.3-70b")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "Llama 70B", name)

			_, ok, err = r.GetModelDisplayName(ctx, "groq", "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			models, err := r.ListModels(ctx, "groq")
			require.NoError(t, err)
			require.Len(t, models, 1)
			assert.Equal(t, "llama-3.3-70b", models[0].ModelName)

			all, err := r.ListModels(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 2)

			require.NoError(t, r.DeleteModel(ctx, "groq", "llama-3.3-70b"))
			assert.True(t, errors.Is(r.DeleteModel(ctx, "groq", "llama-3.3-70b"), ErrNotFound))
		})
	}
}

func TestRegistryConfigs(t *testing.T) {
	for _, f := range registryFactories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			r := f.new(t)

			require.NoError(t, r.RegisterConfig(ctx, ProviderConfig{Provider: "groq", APIKey: "gsk-123", APIEnvName: "GROQ_API_KEY"}))
			assert.True(t, errors.Is(
				r.RegisterConfig(ctx, ProviderConfig{Provider: "groq", APIEnvName: "X"}),
				ErrAlreadyExists,
			))
			assert.True(t, errors.Is(r.RegisterConfig(ctx, ProviderConfig{Provider: "x"}), ErrValidation))

			key, ok, err := r.GetAPIKey(ctx, "groq")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "gsk-123", key)

			env, ok, err := r.GetAPIEnvName(ctx, "groq")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "GROQ_API_KEY", env)

			require.NoError(t, r.RegisterModel(ctx, ModelEntry{Provider: "ollama", DisplayName: "Llama", ModelName: "llama3.2"}))
			providers, err := r.ListProviders(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"groq", "ollama"}, providers)

			require.NoError(t, r.DeleteConfig(ctx, "groq"))
			_, ok, err = r.GetAPIKey(ctx, "groq")
			require.NoError(t, err)
			assert.False(t, ok)

			// deleting a config leaves the provider's models alone
			_, ok, err = r.GetModelDisplayName(ctx, "ollama", "llama3.2")
			require.NoError(t, err)
			assert.True(t, ok)

			assert.True(t, errors.Is(r.DeleteConfig(ctx, "groq"), ErrNotFound))
		})
	}
}

func TestRegistryPersonalities(t *testing.T) {
	for _, f := range registryFactories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			r := f.new(t)

			require.NoError(t, r.RegisterPersonality(ctx, Personality{Name: "pirate", Description: "Answer like a pirate."}))
			assert.True(t, errors.Is(
				r.RegisterPersonality(ctx, Personality{Name: "pirate", Description: "again"}),
				ErrAlreadyExists,
			))

			desc, ok, err := r.GetPersonalityDescription(ctx, "pirate")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "Answer like a pirate.", desc)

			require.NoError(t, r.EditPersonality(ctx, "pirate", "Answer like a polite pirate."))
			desc, _, err = r.GetPersonalityDescription(ctx, "pirate")
			require.NoError(t, err)
			assert.Equal(t, "Answer like a polite pirate.", desc)

			assert.True(t, errors.Is(r.EditPersonality(ctx, "ghost", "boo"), ErrNotFound))

			ps, err := r.ListPersonalities(ctx)
			require.NoError(t, err)
			require.Len(t, ps, 1)
			assert.Equal(t, "pirate", ps[0].Name)

			require.NoError(t, r.DeletePersonality(ctx, "pirate"))
			_, ok, err = r.GetPersonalityDescription(ctx, "pirate")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.True(t, errors.Is(r.DeletePersonality(ctx, "pirate"), ErrNotFound))
		})
	}
}

func TestRegistryClosed(t *testing.T) {
	for _, f := range registryFactories() {
		t.Run(f.name, func(t *testing.T) {
			r := f.new(t)
			require.NoError(t, r.Close())
			_, _, err := r.GetAPIKey(context.Background(), "groq")
			assert.True(t, errors.Is(err, ErrClosed))
		})
	}
}

func TestSQLiteRegistryPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry.db")

	r, err := NewSQLiteRegistryFromFile(path)
	require.NoError(t, err)
	require.NoError(t, r.RegisterPersonality(ctx, Personality{Name: "terse", Description: "One sentence."}))
	require.NoError(t, r.Close())

	r, err = NewSQLiteRegistryFromFile(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	desc, ok, err := r.GetPersonalityDescription(ctx, "terse")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "One sentence.", desc)
}

func TestResolveAPIKey(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	require.NoError(t, r.RegisterConfig(ctx, ProviderConfig{Provider: "groq", APIKey: "stored"}))
	require.NoError(t, r.RegisterConfig(ctx, ProviderConfig{Provider: "together", APIEnvName: "DUET_TEST_TOGETHER_KEY"}))

	t.Setenv("DUET_TEST_TOGETHER_KEY", "from-env")
	t.Setenv("DUET_TEST_FALLBACK_KEY", "fallback")

	key, ok, err := ResolveAPIKey(ctx, r, "groq", "DUET_TEST_FALLBACK_KEY")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "stored", key)

	key, ok, err = ResolveAPIKey(ctx, r, "together", "DUET_TEST_FALLBACK_KEY")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-env", key)

	key, ok, err = ResolveAPIKey(ctx, r, "openai", "DUET_TEST_FALLBACK_KEY")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fallback", key)

	_, ok, err = ResolveAPIKey(ctx, nil, "openai", "")
	require.NoError(t, err)
	assert.False(t, ok)
}
