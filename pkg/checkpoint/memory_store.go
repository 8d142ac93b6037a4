package checkpoint

import (
	"context"
	"sort"
	"sync"

	"github.com/go-go-golems/duet/pkg/state"
)

// InMemoryStore is a thread-safe Store that keeps snapshots in a map.
// Snapshots are cloned on the way in and on the way out.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*state.ThreadState
	closed  bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		threads: map[string]*state.ThreadState{},
	}
}

func (s *InMemoryStore) Load(_ context.Context, threadID string) (*state.ThreadState, error) {
	if err := checkThreadID(threadID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen("load"); err != nil {
		return nil, err
	}
	ts, ok := s.threads[threadID]
	if !ok {
		return state.NewThreadState(threadID), nil
	}
	return ts.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, threadID string, ts *state.ThreadState) error {
	if err := checkThreadID(threadID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen("save"); err != nil {
		return err
	}
	s.threads[threadID] = snapshotFor(threadID, ts)
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen("delete"); err != nil {
		return err
	}
	delete(s.threads, threadID)
	return nil
}

func (s *InMemoryStore) ListThreads(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen("list"); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *InMemoryStore) ensureOpen(op string) error {
	if s.closed {
		return unavailable(op, ErrStoreClosed)
	}
	return nil
}

var _ Store = (*InMemoryStore)(nil)
var _ Lister = (*InMemoryStore)(nil)
var _ Deleter = (*InMemoryStore)(nil)
