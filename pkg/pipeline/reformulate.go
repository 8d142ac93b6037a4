package pipeline

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/go-go-golems/duet/pkg/events"
	"github.com/go-go-golems/duet/pkg/render"
	"github.com/go-go-golems/duet/pkg/state"
	"github.com/go-go-golems/duet/pkg/steps/ai/chat"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const reformulatePromptTemplate = `You are a context processor. Your job is to:
1. Read the chat history
2. Reformulate the user's latest question to be self-contained and clear
3. Add relevant context from the conversation history
4. Remove unnecessary tokens and redundant information
5. Return only the reformulated question with context - make it complete so no history is needed
6. If there is any decimal number e.g. 9.8 MAKE SURE to treat it like 9.80

Chat history:
{{ .History | trim }}

Latest user question: {{ .Question }}

Provide a clear, self-contained reformulated question with necessary context:`

type reformulatePromptData struct {
	History  string
	Question string
}

// ReformulateNode rewrites the latest user turn into a question that can be answered without the history.
type ReformulateNode struct {
	model    chat.Model
	template *template.Template
}

var _ Node = (*ReformulateNode)(nil)

func NewReformulateNode(model chat.Model) (*ReformulateNode, error) {
	if model == nil {
		return nil, &ConfigurationError{Field: "reformulate model", Reason: "is missing"}
	}
	tmpl, err := template.New("reformulate").Funcs(sprig.TxtFuncMap()).Parse(reformulatePromptTemplate)
	if err != nil {
		return nil, &ConfigurationError{Field: "reformulate template", Reason: "does not parse", Err: err}
	}
	return &ReformulateNode{model: model, template: tmpl}, nil
}

func (n *ReformulateNode) Name() string {
	return NodeReformulate
}

// BuildPrompt renders the instruction sent to the reformulation model.
func (n *ReformulateNode) BuildPrompt(history string, question string) (string, error) {
	buf := &bytes.Buffer{}
	err := n.template.Execute(buf, reformulatePromptData{
		History:  history,
		Question: question,
	})
	if err != nil {
		return "", errors.Wrap(err, "could not render reformulation prompt")
	}
	return buf.String(), nil
}

func (n *ReformulateNode) Run(ctx context.Context, env *RunEnv, ts *state.ThreadState) ([]state.Mutation, error) {
	messages := ts.Messages
	if len(messages) == 0 {
		return []state.Mutation{state.MutateSetReformulatedQuestion("")}, nil
	}
	last := messages[len(messages)-1]
	if last == nil || last.Role != conversation.RoleUser {
		return []state.Mutation{state.MutateSetReformulatedQuestion("")}, nil
	}

	metadata := env.metadata(n.Name(), n.model)

	if len(messages) == 1 {
		env.Publish(ctx, events.NewReformulatedEvent(metadata, last.Text, false))
		return []state.Mutation{state.MutateSetReformulatedQuestion(last.Text)}, nil
	}

	question, err := n.reformulate(ctx, env, messages[:len(messages)-1], last.Text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).
			Str("thread_id", env.ThreadID).
			Str("node", n.Name()).
			Msg("reformulation failed, using the original question")
		env.Publish(ctx, events.NewInfoEvent(metadata, "reformulation failed, using the original question", map[string]interface{}{
			"error": err.Error(),
		}))
		question = ""
	}

	fallback := question == ""
	if fallback {
		question = last.Text
	}
	env.Publish(ctx, events.NewReformulatedEvent(metadata, question, fallback))

	return []state.Mutation{state.MutateSetReformulatedQuestion(question)}, nil
}

func (n *ReformulateNode) reformulate(
	ctx context.Context,
	env *RunEnv,
	history conversation.Conversation,
	question string,
) (string, error) {
	prompt, err := n.BuildPrompt(history.RenderHistoryOrDefault(), question)
	if err != nil {
		return "", err
	}

	callCtx, cancel := env.modelContext(ctx)
	defer cancel()

	msg, err := n.model.Invoke(callCtx, conversation.NewConversation(conversation.NewUserMessage(prompt)))
	if err != nil {
		return "", env.modelError(ctx, callCtx, err)
	}
	if msg == nil {
		return "", nil
	}

	// reasoning models may think out loud before answering
	_, visible := render.SplitReasoning(msg.Text)
	log.Debug().
		Str("thread_id", env.ThreadID).
		Str("node", n.Name()).
		Str("question", visible).
		Msg("reformulated question")
	return strings.TrimSpace(visible), nil
}
