package chat

import (
	"context"
	"fmt"

	"github.com/go-go-golems/duet/pkg/helpers"
)

// StreamMode says how consecutive chunks relate to the answer.
type StreamMode string

const (
	// StreamModeDelta chunks are increments, the answer is their concatenation.
	StreamModeDelta StreamMode = "delta"
	// StreamModeReplace chunks are snapshots, the answer is the last one.
	StreamModeReplace StreamMode = "replace"
)

func (m StreamMode) Validate() error {
	switch m {
	case StreamModeDelta, StreamModeReplace:
		return nil
	default:
		return fmt.Errorf("unknown stream mode %q", string(m))
	}
}

// Stream is a finite, single-reader sequence of chunks produced by a model.
// It cannot be restarted. Close stops the producer; pending chunks are dropped.
type Stream struct {
	mode   StreamMode
	c      <-chan helpers.Result[string]
	cancel context.CancelFunc
	err    error
}

func (s *Stream) Mode() StreamMode {
	return s.mode
}

// Chunks is closed once the producer is done. An error result is always the last one.
func (s *Stream) Chunks() <-chan helpers.Result[string] {
	return s.c
}

// Err returns the error the producer ended with. It is only meaningful once Chunks is closed,
// and covers the case where the reader was cancelled before the error result could be delivered.
func (s *Stream) Err() error {
	return s.err
}

func (s *Stream) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Emit sends one chunk to the stream reader, or fails when the stream is cancelled.
type Emit func(chunk string) error

// StartStream runs produce in its own goroutine and exposes what it emits as a Stream.
// A non-nil error from produce is delivered as the final result.
func StartStream(ctx context.Context, mode StreamMode, produce func(ctx context.Context, emit Emit) error) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	c := make(chan helpers.Result[string])

	emit := func(chunk string) error {
		select {
		case c <- helpers.NewValueResult(chunk):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s := &Stream{
		mode:   mode,
		c:      c,
		cancel: cancel,
	}

	go func() {
		defer close(c)
		defer cancel()

		if err := produce(ctx, emit); err != nil {
			s.err = err
			select {
			case c <- helpers.NewErrorResult[string](err):
			case <-ctx.Done():
			}
		}
	}()

	return s
}
