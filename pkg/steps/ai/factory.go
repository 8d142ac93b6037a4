package ai

import (
	"context"

	"github.com/go-go-golems/duet/pkg/registry"
	"github.com/go-go-golems/duet/pkg/steps/ai/chat"
	"github.com/go-go-golems/duet/pkg/steps/ai/ollama"
	"github.com/go-go-golems/duet/pkg/steps/ai/openai"
	"github.com/go-go-golems/duet/pkg/steps/ai/settings"
	"github.com/go-go-golems/duet/pkg/steps/ai/types"
	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrMissingAPIKey = errors.New("missing api key")

// ModelFactory builds chat models from step settings.
// Credentials come from the settings, then the registry, then the environment.
type ModelFactory struct {
	Registry registry.Registry
}

func NewModelFactory(r registry.Registry) *ModelFactory {
	return &ModelFactory{Registry: r}
}

func (f *ModelFactory) NewModel(ctx context.Context, stepSettings *settings.StepSettings) (chat.Model, error) {
	if stepSettings == nil || stepSettings.Chat == nil {
		return nil, errors.New("no chat settings specified")
	}
	settings_ := stepSettings.Clone()

	apiType, err := settings_.Chat.ResolvedApiType()
	if err != nil {
		return nil, err
	}
	if apiType == types.ApiTypeEcho {
		return chat.NewEchoModel(), nil
	}
	if settings_.Chat.Engine == nil || *settings_.Chat.Engine == "" {
		return nil, errors.New("no chat engine specified")
	}

	provider := settings_.Chat.Provider
	if provider == "" {
		provider = string(apiType)
	}

	switch {
	case apiType == types.ApiTypeOllama:
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, errors.Wrap(err, "could not create ollama client")
		}
		return ollama.NewModel(settings_, client)

	case apiType.IsOpenAICompatible():
		apiKey := settings_.Chat.APIKey
		if apiKey == "" {
			key, ok, err := registry.ResolveAPIKey(ctx, f.Registry, provider, apiType.DefaultAPIEnvName())
			if err != nil {
				return nil, errors.Wrap(err, "could not look up api key")
			}
			if !ok {
				return nil, errors.Wrapf(ErrMissingAPIKey, "provider %s", provider)
			}
			apiKey = key
		}
		log.Debug().
			Str("provider", provider).
			Str("engine", *settings_.Chat.Engine).
			Msg("creating openai compatible model")
		client := openai.MakeClient(apiKey, settings_.Client, apiType.DefaultBaseURL())
		return openai.NewModel(settings_, client)

	default:
		return nil, errors.Errorf("api type %s is not supported", apiType)
	}
}
