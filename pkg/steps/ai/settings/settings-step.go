package settings

import (
	"github.com/go-go-golems/duet/pkg/steps/ai/settings/ollama"
	"github.com/go-go-golems/duet/pkg/steps/ai/settings/openai"
)

// StepSettings configure one model of the pipeline.
type StepSettings struct {
	Chat   *ChatSettings    `yaml:"chat,omitempty"`
	OpenAI *openai.Settings `yaml:"openai,omitempty"`
	Client *ClientSettings  `yaml:"client,omitempty"`
	Ollama *ollama.Settings `yaml:"ollama,omitempty"`
}

func NewStepSettings() *StepSettings {
	return &StepSettings{
		Chat:   NewChatSettings(),
		OpenAI: openai.NewSettings(),
		Client: NewClientSettings(),
		Ollama: ollama.NewSettings(),
	}
}

// fillDefaults replaces missing sections so that a partial YAML document stays usable.
func (ss *StepSettings) fillDefaults(temperature float64) {
	if ss.Chat == nil {
		ss.Chat = NewChatSettings()
	}
	if ss.Chat.Temperature == nil {
		t := temperature
		ss.Chat.Temperature = &t
	}
	if ss.OpenAI == nil {
		ss.OpenAI = openai.NewSettings()
	}
	if ss.Client == nil {
		ss.Client = NewClientSettings()
	}
	if ss.Ollama == nil {
		ss.Ollama = ollama.NewSettings()
	}
}

func (ss *StepSettings) GetMetadata() map[string]interface{} {
	metadata := make(map[string]interface{})

	if ss.Chat != nil {
		if ss.Chat.Provider != "" {
			metadata["ai-provider"] = ss.Chat.Provider
		}
		if ss.Chat.Engine != nil {
			metadata["ai-engine"] = *ss.Chat.Engine
		}
		if ss.Chat.MaxResponseTokens != nil {
			metadata["ai-max-response-tokens"] = *ss.Chat.MaxResponseTokens
		}
		if ss.Chat.TopP != nil && *ss.Chat.TopP != 1 {
			metadata["ai-top-p"] = *ss.Chat.TopP
		}
		if ss.Chat.Temperature != nil {
			metadata["ai-temperature"] = *ss.Chat.Temperature
		}
		if len(ss.Chat.Stop) > 0 {
			metadata["ai-stop"] = ss.Chat.Stop
		}
	}

	if ss.Client != nil {
		if ss.Client.Timeout != nil {
			metadata["timeout"] = ss.Client.Timeout.String()
		}
		if ss.Client.BaseURL != nil {
			metadata["base-url"] = *ss.Client.BaseURL
		}
	}

	return metadata
}

func (ss *StepSettings) Clone() *StepSettings {
	if ss == nil {
		return nil
	}
	ret := &StepSettings{}
	if ss.Chat != nil {
		ret.Chat = ss.Chat.Clone()
	}
	if ss.OpenAI != nil {
		ret.OpenAI = ss.OpenAI.Clone()
	}
	if ss.Client != nil {
		ret.Client = ss.Client.Clone()
	}
	if ss.Ollama != nil {
		ret.Ollama = ss.Ollama.Clone()
	}
	return ret
}
