package settings

import (
	"github.com/go-go-golems/duet/pkg/steps/ai/types"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
)

const (
	DefaultResponseTemperature    = 0.5
	DefaultReformulateTemperature = 1.0
)

// ChatSettings select and tune one chat model.
//
// Provider is the registry key used for display names and credentials.
// ApiType decides the transport and defaults to the provider name.
type ChatSettings struct {
	Provider          string         `yaml:"provider,omitempty"`
	Engine            *string        `yaml:"engine,omitempty"`
	ApiType           *types.ApiType `yaml:"api_type,omitempty"`
	MaxResponseTokens *int           `yaml:"max_response_tokens,omitempty"`
	TopP              *float64       `yaml:"top_p,omitempty"`
	Temperature       *float64       `yaml:"temperature,omitempty"`
	Stop              []string       `yaml:"stop,omitempty"`
	// APIKey overrides the registry and environment lookups
	APIKey string `yaml:"api_key,omitempty"`
}

func NewChatSettings() *ChatSettings {
	return &ChatSettings{
		Stop: []string{},
	}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}

// ResolvedApiType returns ApiType, falling back to parsing Provider.
func (s *ChatSettings) ResolvedApiType() (types.ApiType, error) {
	if s.ApiType != nil {
		return types.ParseApiType(string(*s.ApiType))
	}
	if s.Provider == "" {
		return "", errors.New("no provider or api type specified")
	}
	return types.ParseApiType(s.Provider)
}

func (s *ChatSettings) EngineName() string {
	if s == nil || s.Engine == nil {
		return ""
	}
	return *s.Engine
}
