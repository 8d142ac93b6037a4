package openai

import (
	"context"
	"io"

	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/go-go-golems/duet/pkg/steps/ai/chat"
	"github.com/go-go-golems/duet/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// Model talks to an OpenAI compatible chat completions endpoint.
// Streams are delta streams.
type Model struct {
	settings *settings.StepSettings
	client   *go_openai.Client
}

var _ chat.Model = (*Model)(nil)
var _ chat.Describer = (*Model)(nil)

func NewModel(settings *settings.StepSettings, client *go_openai.Client) (*Model, error) {
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

func (m *Model) Invoke(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error) {
	req, err := MakeCompletionRequest(m.settings, messages)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.CreateChatCompletion(ctx, *req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in completion response")
	}

	log.Debug().
		Str("model", req.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("openai completion done")

	return conversation.NewAssistantMessage(resp.Choices[0].Message.Content), nil
}

func (m *Model) Stream(ctx context.Context, messages conversation.Conversation) (*chat.Stream, error) {
	req, err := MakeCompletionRequest(m.settings, messages)
	if err != nil {
		return nil, err
	}

	return chat.StartStream(ctx, chat.StreamModeDelta, func(ctx context.Context, emit chat.Emit) error {
		stream, err := m.client.CreateChatCompletionStream(ctx, *req)
		if err != nil {
			return err
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return err
			}
			if len(response.Choices) == 0 {
				continue
			}
			delta := response.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if err := emit(delta); err != nil {
				return err
			}
		}
	}), nil
}
