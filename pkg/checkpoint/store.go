package checkpoint

import (
	"context"
	"fmt"

	"github.com/go-go-golems/duet/pkg/state"
	"github.com/pkg/errors"
)

var (
	// ErrStoreUnavailable matches every backend failure (closed store, database or network errors).
	ErrStoreUnavailable = errors.New("checkpoint store unavailable")
	ErrStoreClosed      = errors.New("checkpoint store closed")
	ErrEmptyThreadID    = errors.New("empty thread id")
)

// UnavailableError reports that a store operation could not reach its backend.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	if e == nil {
		return ErrStoreUnavailable.Error()
	}
	return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable, e.Op, e.Err)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }

func (e *UnavailableError) Unwrap() error { return e.Err }

// Store persists one ThreadState snapshot per thread id.
//
// Load never reports a missing thread: an unknown id yields state.NewThreadState(threadID).
// Errors are only returned when the backend cannot be reached. Save replaces the whole snapshot.
// Stores do not serialize load-mutate-save sequences, use ThreadLocks for that.
type Store interface {
	Load(ctx context.Context, threadID string) (*state.ThreadState, error)
	Save(ctx context.Context, threadID string, ts *state.ThreadState) error
}

// Lister is implemented by stores that can enumerate their threads.
type Lister interface {
	ListThreads(ctx context.Context) ([]string, error)
}

// Deleter is implemented by stores that can forget a thread.
type Deleter interface {
	Delete(ctx context.Context, threadID string) error
}

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}

func checkThreadID(threadID string) error {
	if threadID == "" {
		return ErrEmptyThreadID
	}
	return nil
}

// snapshotFor returns a deep copy of ts stamped with threadID.
func snapshotFor(threadID string, ts *state.ThreadState) *state.ThreadState {
	if ts == nil {
		return state.NewThreadState(threadID)
	}
	ret := ts.Clone()
	ret.ThreadID = threadID
	return ret
}
