package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/go-go-golems/duet/pkg/events"
	"github.com/go-go-golems/duet/pkg/helpers"
	"github.com/go-go-golems/duet/pkg/render"
	"github.com/go-go-golems/duet/pkg/state"
	"github.com/go-go-golems/duet/pkg/steps/ai/chat"
	"github.com/go-go-golems/duet/pkg/tokens"
	"github.com/rs/zerolog/log"
)

// RespondNode answers the reformulated question. The model only ever sees the
// system directive and the question, never earlier turns.
type RespondNode struct {
	model     chat.Model
	directive string
	counter   *tokens.Counter
}

var _ Node = (*RespondNode)(nil)

func NewRespondNode(model chat.Model, directive string, counter *tokens.Counter) (*RespondNode, error) {
	if model == nil {
		return nil, &ConfigurationError{Field: "response model", Reason: "is missing"}
	}
	return &RespondNode{
		model:     model,
		directive: directive,
		counter:   counter,
	}, nil
}

func (n *RespondNode) Name() string {
	return NodeRespond
}

func (n *RespondNode) Directive() string {
	return n.directive
}

// BuildPrompt returns the messages sent to the response model for question.
func (n *RespondNode) BuildPrompt(question string) conversation.Conversation {
	ret := conversation.NewConversation()
	if n.directive != "" {
		ret = append(ret, conversation.NewSystemMessage(n.directive))
	}
	return append(ret, conversation.NewUserMessage(question))
}

func (n *RespondNode) Run(ctx context.Context, env *RunEnv, ts *state.ThreadState) ([]state.Mutation, error) {
	question := ts.ReformulatedQuestion
	if question == "" {
		return nil, nil
	}

	prompt := n.BuildPrompt(question)
	metadata := env.metadata(n.Name(), n.model)
	if n.counter != nil {
		if count, err := n.counter.CountConversation(prompt); err == nil {
			metadata.PromptTokens = count
		} else {
			log.Debug().Err(err).Msg("could not count prompt tokens")
		}
	}
	log.Debug().
		Str("thread_id", env.ThreadID).
		Str("node", n.Name()).
		Str("model", metadata.Model).
		Int("prompt_tokens", metadata.PromptTokens).
		Bool("streaming", env.Streaming).
		Msg("calling response model")

	env.Publish(ctx, events.NewStartEvent(metadata))
	startTime := time.Now()

	var (
		text string
		err  error
	)
	if env.Streaming {
		text, err = n.stream(ctx, env, metadata, prompt)
	} else {
		text, err = n.invoke(ctx, env, prompt)
	}
	metadata.DurationMs = helpers.ToPtr(time.Since(startTime).Milliseconds())
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyAnswer
	}

	if err != nil {
		if ctx.Err() != nil {
			env.Publish(ctx, events.NewInterruptEvent(metadata, text))
			return nil, ctx.Err()
		}
		env.Publish(ctx, events.NewErrorEvent(metadata, err))
		return nil, &RetryableError{Op: n.Name(), Err: err}
	}

	env.Publish(ctx, events.NewFinalEvent(metadata, text))
	return []state.Mutation{
		state.MutateAppendMessages(conversation.NewAssistantMessage(text)),
	}, nil
}

func (n *RespondNode) invoke(ctx context.Context, env *RunEnv, prompt conversation.Conversation) (string, error) {
	callCtx, cancel := env.modelContext(ctx)
	defer cancel()

	msg, err := n.model.Invoke(callCtx, prompt)
	if err != nil {
		return "", env.modelError(ctx, callCtx, err)
	}
	if msg == nil {
		return "", ErrEmptyAnswer
	}
	return msg.Text, nil
}

// stream publishes a partial event per chunk and returns the accumulated answer.
// On failure the text accumulated so far is returned along with the error.
func (n *RespondNode) stream(
	ctx context.Context,
	env *RunEnv,
	metadata events.EventMetadata,
	prompt conversation.Conversation,
) (string, error) {
	callCtx, cancel := env.modelContext(ctx)
	defer cancel()

	s, err := n.model.Stream(callCtx, prompt)
	if err != nil {
		return "", env.modelError(ctx, callCtx, err)
	}
	defer s.Close()

	acc := render.NewAccumulator(s.Mode())
	for r := range s.Chunks() {
		chunk, err := r.Value()
		if err != nil {
			return acc.Text(), env.modelError(ctx, callCtx, err)
		}
		prev := acc.Text()
		acc.Add(chunk)
		completion := acc.Text()
		env.Publish(ctx, events.NewPartialCompletionEvent(metadata, render.Delta(prev, completion), completion))
	}
	if err := s.Err(); err != nil {
		return acc.Text(), env.modelError(ctx, callCtx, err)
	}
	// the producer may have stopped early because the call context ended
	if callCtx.Err() != nil {
		return acc.Text(), env.modelError(ctx, callCtx, callCtx.Err())
	}
	return acc.Text(), nil
}
