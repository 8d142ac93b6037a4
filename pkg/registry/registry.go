package registry

import (
	"context"
	"os"
	"strings"
)

// ProviderConfig holds the credentials of one provider.
// APIKey is stored as given, APIEnvName names the environment variable used when it is empty.
type ProviderConfig struct {
	Provider   string `json:"provider" yaml:"provider"`
	APIKey     string `json:"-" yaml:"-"`
	APIEnvName string `json:"api_env_name" yaml:"api_env_name"`
}

// ModelEntry maps a provider model name to the name shown to users.
type ModelEntry struct {
	Provider    string `json:"provider" yaml:"provider"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	ModelName   string `json:"model_name" yaml:"model_name"`
}

// Personality is a named system directive for the response model.
type Personality struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Registry is the read side used by the pipeline and the model factory.
// Lookups report absence with ok=false; an error means the registry itself failed.
type Registry interface {
	GetModelDisplayName(ctx context.Context, provider string, model string) (string, bool, error)
	GetPersonalityDescription(ctx context.Context, name string) (string, bool, error)
	GetAPIKey(ctx context.Context, provider string) (string, bool, error)
	GetAPIEnvName(ctx context.Context, provider string) (string, bool, error)
}

// Store is the full registry, including the management operations of the CLI.
type Store interface {
	Registry

	RegisterModel(ctx context.Context, model ModelEntry) error
	RegisterConfig(ctx context.Context, config ProviderConfig) error
	RegisterPersonality(ctx context.Context, personality Personality) error
	EditPersonality(ctx context.Context, name string, description string) error

	DeletePersonality(ctx context.Context, name string) error
	DeleteModel(ctx context.Context, provider string, model string) error
	DeleteConfig(ctx context.Context, provider string) error

	// ListProviders returns every provider that has a config or a model, sorted.
	ListProviders(ctx context.Context) ([]string, error)
	// ListModels returns the models of provider, or all models when provider is empty.
	ListModels(ctx context.Context, provider string) ([]ModelEntry, error)
	ListConfigs(ctx context.Context) ([]ProviderConfig, error)
	ListPersonalities(ctx context.Context) ([]Personality, error)

	Close() error
}

// ResolveAPIKey returns the key for provider: the registry key first, then the environment
// variable named by the registry, then fallbackEnv. ok is false when none of them is set.
func ResolveAPIKey(ctx context.Context, r Registry, provider string, fallbackEnv string) (string, bool, error) {
	if r != nil {
		key, ok, err := r.GetAPIKey(ctx, provider)
		if err != nil {
			return "", false, err
		}
		if ok && key != "" {
			return key, true, nil
		}

		envName, ok, err := r.GetAPIEnvName(ctx, provider)
		if err != nil {
			return "", false, err
		}
		if ok && envName != "" {
			if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
				return v, true, nil
			}
		}
	}

	if fallbackEnv != "" {
		if v := strings.TrimSpace(os.Getenv(fallbackEnv)); v != "" {
			return v, true, nil
		}
	}
	return "", false, nil
}

func validateModel(m ModelEntry) error {
	if strings.TrimSpace(m.Provider) == "" {
		return &ValidationError{Field: "provider", Reason: "must not be empty"}
	}
	if strings.TrimSpace(m.ModelName) == "" {
		return &ValidationError{Field: "model_name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(m.DisplayName) == "" {
		return &ValidationError{Field: "display_name", Reason: "must not be empty"}
	}
	return nil
}

func validateConfig(c ProviderConfig) error {
	if strings.TrimSpace(c.Provider) == "" {
		return &ValidationError{Field: "provider", Reason: "must not be empty"}
	}
	if c.APIKey == "" && strings.TrimSpace(c.APIEnvName) == "" {
		return &ValidationError{Field: "api", Reason: "either an api key or an env variable name is required"}
	}
	return nil
}

func validatePersonality(p Personality) error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "personality_name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(p.Description) == "" {
		return &ValidationError{Field: "personality_description", Reason: "must not be empty"}
	}
	return nil
}
