package pipeline

import (
	"context"
	"time"

	"github.com/go-go-golems/duet/pkg/checkpoint"
	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/go-go-golems/duet/pkg/events"
	"github.com/go-go-golems/duet/pkg/state"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultModelTimeout = 120 * time.Second

// Executor runs the graph for one thread at a time per thread id.
// A run loads the thread, appends the seed turn, runs every node and saves the result.
// Nothing is saved unless the response node appended an answer.
type Executor struct {
	graph        *Graph
	store        checkpoint.Store
	locks        *checkpoint.ThreadLocks
	modelTimeout time.Duration
	sinks        []events.EventSink
}

type ExecutorOption func(*Executor)

// WithModelTimeout bounds every single model call. Zero disables the bound.
func WithModelTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.modelTimeout = d
	}
}

// WithEventSinks adds sinks that receive the events of every run.
func WithEventSinks(sinks ...events.EventSink) ExecutorOption {
	return func(e *Executor) {
		e.sinks = append(e.sinks, sinks...)
	}
}

// WithLocks shares thread locks between executors working on the same store.
func WithLocks(locks *checkpoint.ThreadLocks) ExecutorOption {
	return func(e *Executor) {
		e.locks = locks
	}
}

func NewExecutor(graph *Graph, store checkpoint.Store, options ...ExecutorOption) (*Executor, error) {
	if graph == nil {
		return nil, &ConfigurationError{Field: "graph", Reason: "is missing"}
	}
	if store == nil {
		return nil, &ConfigurationError{Field: "store", Reason: "is missing"}
	}
	ret := &Executor{
		graph:        graph,
		store:        store,
		modelTimeout: DefaultModelTimeout,
	}
	for _, o := range options {
		o(ret)
	}
	if ret.locks == nil {
		ret.locks = checkpoint.NewThreadLocks()
	}
	return ret, nil
}

// Run executes one turn and returns the thread's messages.
// When no answer was produced the thread is left untouched and its stored messages are returned.
func (e *Executor) Run(ctx context.Context, threadID string, seed ...*conversation.Message) (conversation.Conversation, error) {
	return e.run(ctx, threadID, false, nil, seed)
}

// Stream executes one turn like Run, streaming the answer through RunStream.Updates.
func (e *Executor) Stream(ctx context.Context, threadID string, seed ...*conversation.Message) (*RunStream, error) {
	if threadID == "" {
		return nil, checkpoint.ErrEmptyThreadID
	}

	ctx, cancel := context.WithCancel(ctx)
	sink := events.NewChannelSink(64, events.WithChannelSinkContext(ctx))
	rs := newRunStream(threadID, sink.Events(), cancel)

	go func() {
		out, err := e.run(ctx, threadID, true, []events.EventSink{sink}, seed)
		sink.Close()
		rs.setResult(out, err)
		cancel()
	}()

	return rs, nil
}

func (e *Executor) run(
	ctx context.Context,
	threadID string,
	streaming bool,
	extraSinks []events.EventSink,
	seed []*conversation.Message,
) (conversation.Conversation, error) {
	if threadID == "" {
		return nil, checkpoint.ErrEmptyThreadID
	}

	env := &RunEnv{
		ThreadID:     threadID,
		RunID:        uuid.NewString(),
		ModelTimeout: e.modelTimeout,
		Streaming:    streaming,
		Sinks:        append(append([]events.EventSink{}, e.sinks...), extraSinks...),
	}
	logger := log.With().Str("thread_id", threadID).Str("run_id", env.RunID).Logger()

	unlock, err := e.locks.Lock(ctx, threadID)
	if err != nil {
		return nil, errors.Wrapf(err, "could not lock thread %s", threadID)
	}
	defer unlock()

	ts, err := e.store.Load(ctx, threadID)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load thread %s", threadID)
	}
	stored := len(ts.Messages)

	if len(seed) > 0 {
		if err := ts.Apply(state.MutateAppendMessages(seed...)); err != nil {
			return nil, errors.Wrap(err, "could not append seed messages")
		}
	}
	seeded := len(ts.Messages)

	for _, node := range e.graph.Nodes() {
		logger.Debug().Str("node", node.Name()).Msg("running node")
		mutations, err := node.Run(ctx, env, ts)
		if err != nil {
			if ctx.Err() != nil {
				e.interrupt(ctx, env, node.Name())
				logger.Debug().Str("node", node.Name()).Msg("run interrupted, nothing saved")
				return nil, errors.Wrapf(ctx.Err(), "run interrupted in %s", node.Name())
			}
			logger.Warn().Err(err).Str("node", node.Name()).Msg("node failed, nothing saved")
			return nil, err
		}
		if err := ts.ApplyAll(mutations...); err != nil {
			return nil, errors.Wrapf(err, "could not apply %s results", node.Name())
		}
	}

	if len(ts.Messages) == seeded {
		logger.Debug().Msg("no answer produced, thread unchanged")
		return ts.Messages[:stored].Clone(), nil
	}

	if ctx.Err() != nil {
		e.interrupt(ctx, env, NodeRespond)
		return nil, errors.Wrap(ctx.Err(), "run interrupted before save")
	}

	if err := e.store.Save(ctx, threadID, ts); err != nil {
		return nil, errors.Wrapf(err, "could not save thread %s", threadID)
	}
	logger.Debug().
		Int("messages", len(ts.Messages)).
		Int64("version", ts.Version).
		Msg("thread saved")

	return ts.Messages.Clone(), nil
}

func (e *Executor) interrupt(ctx context.Context, env *RunEnv, node string) {
	if env.interrupted {
		return
	}
	env.Publish(ctx, events.NewInterruptEvent(events.EventMetadata{
		ID:       uuid.New(),
		ThreadID: env.ThreadID,
		RunID:    env.RunID,
		Node:     node,
	}, ""))
}
