package pipeline

import (
	"context"
	"sync"

	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/go-go-golems/duet/pkg/events"
	"github.com/pkg/errors"
)

var ErrRunStreamNil = errors.New("run stream is nil")

// RunStream is a single in-flight streaming run. It is cancelable and waitable.
type RunStream struct {
	ThreadID string

	updates <-chan events.Event
	done    chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	out    conversation.Conversation
	err    error
}

func newRunStream(threadID string, updates <-chan events.Event, cancel context.CancelFunc) *RunStream {
	return &RunStream{
		ThreadID: threadID,
		updates:  updates,
		done:     make(chan struct{}),
		cancel:   cancel,
	}
}

func (r *RunStream) setResult(out conversation.Conversation, err error) {
	r.mu.Lock()
	r.out = out
	r.err = err
	r.cancel = nil
	close(r.done)
	r.mu.Unlock()
}

// Updates yields the events of the run and is closed when the run is over.
func (r *RunStream) Updates() <-chan events.Event {
	return r.updates
}

// Cancel interrupts the run. The partial answer is discarded and nothing is saved.
// It is safe to call multiple times.
func (r *RunStream) Cancel() {
	if r == nil {
		return
	}
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the run is over and returns the thread's messages.
// Updates nobody has read yet are discarded.
func (r *RunStream) Wait() (conversation.Conversation, error) {
	if r == nil {
		return nil, ErrRunStreamNil
	}
	for range r.updates {
	}
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out, r.err
}

func (r *RunStream) IsRunning() bool {
	if r == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}
