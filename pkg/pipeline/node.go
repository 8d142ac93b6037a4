package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-go-golems/duet/pkg/events"
	"github.com/go-go-golems/duet/pkg/state"
	"github.com/go-go-golems/duet/pkg/steps/ai/chat"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	NodeReformulate = "reformulate"
	NodeRespond     = "respond"
)

// Node is one step of the graph. Nodes read the state and return the mutations to apply;
// they never write to the state themselves.
type Node interface {
	Name() string
	Run(ctx context.Context, env *RunEnv, ts *state.ThreadState) ([]state.Mutation, error)
}

// RunEnv carries what a node needs to know about the run it is part of.
type RunEnv struct {
	ThreadID     string
	RunID        string
	ModelTimeout time.Duration
	Streaming    bool
	Sinks        []events.EventSink

	interrupted bool
}

// Publish sends e to the run's sinks and to the sinks attached to ctx.
func (e *RunEnv) Publish(ctx context.Context, ev events.Event) {
	if ev.Type() == events.EventTypeInterrupt {
		e.interrupted = true
	}
	events.PublishEvent(ev, e.Sinks...)
	events.PublishEventToContext(ctx, ev)
}

func (e *RunEnv) metadata(node string, m chat.Model) events.EventMetadata {
	info := chat.InfoOf(m)
	return events.EventMetadata{
		ID:       uuid.New(),
		ThreadID: e.ThreadID,
		RunID:    e.RunID,
		Node:     node,
		LLMInferenceData: events.LLMInferenceData{
			Model:       info.Name,
			Temperature: info.Temperature,
		},
	}
}

// modelContext bounds a single model call by the model timeout.
func (e *RunEnv) modelContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.ModelTimeout > 0 {
		return context.WithTimeout(ctx, e.ModelTimeout)
	}
	return context.WithCancel(ctx)
}

// modelError tells a model timeout apart from other failures. A cancelled or expired parent
// context is returned as is, since the run itself is over.
func (e *RunEnv) modelError(ctx context.Context, callCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrModelTimeout, e.ModelTimeout, err)
	}
	return err
}
