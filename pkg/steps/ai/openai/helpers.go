package openai

import (
	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/go-go-golems/duet/pkg/steps/ai/settings"
	go_openai "github.com/sashabaranov/go-openai"
	"github.com/pkg/errors"
)

func roleToOpenAI(role conversation.Role) (string, error) {
	switch role {
	case conversation.RoleSystem:
		return go_openai.ChatMessageRoleSystem, nil
	case conversation.RoleUser:
		return go_openai.ChatMessageRoleUser, nil
	case conversation.RoleAssistant:
		return go_openai.ChatMessageRoleAssistant, nil
	default:
		return "", errors.Wrapf(conversation.ErrUnknownRole, "role %q", role)
	}
}

func messagesToOpenAI(messages conversation.Conversation) ([]go_openai.ChatCompletionMessage, error) {
	ret := make([]go_openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		role, err := roleToOpenAI(msg.Role)
		if err != nil {
			return nil, err
		}
		ret = append(ret, go_openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Text,
		})
	}
	return ret, nil
}

// MakeCompletionRequest builds a chat completion request from the step settings and prompt.
func MakeCompletionRequest(
	settings *settings.StepSettings,
	messages conversation.Conversation,
) (*go_openai.ChatCompletionRequest, error) {
	if settings == nil || settings.Chat == nil || settings.Chat.Engine == nil {
		return nil, errors.New("no engine specified")
	}

	msgs_, err := messagesToOpenAI(messages)
	if err != nil {
		return nil, err
	}

	req := &go_openai.ChatCompletionRequest{
		Model:    *settings.Chat.Engine,
		Messages: msgs_,
		Stop:     settings.Chat.Stop,
	}
	if settings.Chat.Temperature != nil {
		req.Temperature = float32(*settings.Chat.Temperature)
	}
	if settings.Chat.TopP != nil {
		req.TopP = float32(*settings.Chat.TopP)
	}
	if settings.Chat.MaxResponseTokens != nil {
		req.MaxTokens = *settings.Chat.MaxResponseTokens
	}
	if settings.OpenAI != nil {
		if settings.OpenAI.PresencePenalty != nil {
			req.PresencePenalty = float32(*settings.OpenAI.PresencePenalty)
		}
		if settings.OpenAI.FrequencyPenalty != nil {
			req.FrequencyPenalty = float32(*settings.OpenAI.FrequencyPenalty)
		}
		req.User = settings.OpenAI.User
	}

	return req, nil
}

// MakeClient returns a client for apiKey. An empty baseURL keeps the library default.
func MakeClient(apiKey string, clientSettings *settings.ClientSettings, baseURL string) *go_openai.Client {
	config := go_openai.DefaultConfig(apiKey)
	if clientSettings != nil {
		if clientSettings.BaseURL != nil && *clientSettings.BaseURL != "" {
			baseURL = *clientSettings.BaseURL
		}
		if clientSettings.Organization != nil {
			config.OrgID = *clientSettings.Organization
		}
		config.HTTPClient = clientSettings.GetHTTPClient()
	}
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return go_openai.NewClientWithConfig(config)
}
