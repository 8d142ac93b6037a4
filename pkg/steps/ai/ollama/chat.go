package ollama

import (
	"context"
	"strings"

	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/go-go-golems/duet/pkg/steps/ai/chat"
	"github.com/go-go-golems/duet/pkg/steps/ai/settings"
	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
)

// Model runs chat completions against an ollama server.
// The server address comes from OLLAMA_HOST, see api.ClientFromEnvironment.
type Model struct {
	settings *settings.StepSettings
	client   *api.Client
}

var _ chat.Model = (*Model)(nil)
var _ chat.Describer = (*Model)(nil)

func NewModel(settings *settings.StepSettings, client *api.Client) (*Model, error) {
	if settings == nil || settings.Chat == nil || settings.Chat.Engine == nil {
		return nil, errors.New("no engine specified")
	}
	if client == nil {
		return nil, errors.New("no client specified")
	}
	return &Model{
		settings: settings.Clone(),
		client:   client,
	}, nil
}

func (m *Model) Info() chat.ModelInfo {
	return chat.ModelInfo{
		Name:        m.settings.Chat.EngineName(),
		Temperature: m.settings.Chat.Temperature,
	}
}

// MakeChatRequest builds a streaming chat request. Ollama option names are used for sampling settings.
func MakeChatRequest(settings *settings.StepSettings, messages conversation.Conversation) (*api.ChatRequest, error) {
	ollamaMessages := []api.Message{}
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		if err := msg.Role.Validate(); err != nil {
			return nil, err
		}
		ollamaMessages = append(ollamaMessages, api.Message{
			Role:    string(msg.Role),
			Content: msg.Text,
		})
	}

	options, err := settings.Ollama.ToOptions()
	if err != nil {
		return nil, err
	}
	if settings.Chat.Temperature != nil {
		options["temperature"] = *settings.Chat.Temperature
	}
	if settings.Chat.TopP != nil {
		options["top_p"] = *settings.Chat.TopP
	}
	if settings.Chat.MaxResponseTokens != nil {
		options["num_predict"] = *settings.Chat.MaxResponseTokens
	}
	if len(settings.Chat.Stop) > 0 {
		options["stop"] = settings.Chat.Stop
	}

	stream := true
	return &api.ChatRequest{
		Model:    *settings.Chat.Engine,
		Messages: ollamaMessages,
		Stream:   &stream,
		Options:  options,
	}, nil
}

func (m *Model) Invoke(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error) {
	s, err := m.Stream(ctx, messages)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	var sb strings.Builder
	for r := range s.Chunks() {
		chunk, err := r.Value()
		if err != nil {
			return nil, err
		}
		sb.WriteString(chunk)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return conversation.NewAssistantMessage(sb.String()), nil
}

func (m *Model) Stream(ctx context.Context, messages conversation.Conversation) (*chat.Stream, error) {
	req, err := MakeChatRequest(m.settings, messages)
	if err != nil {
		return nil, err
	}

	return chat.StartStream(ctx, chat.StreamModeDelta, func(ctx context.Context, emit chat.Emit) error {
		err := m.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Done {
				return nil
			}
			if resp.Message.Content == "" {
				return nil
			}
			return emit(resp.Message.Content)
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		return nil
	}), nil
}
