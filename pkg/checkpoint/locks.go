package checkpoint

import (
	"context"
	"sync"
)

type threadLock struct {
	sem  chan struct{}
	refs int
}

// ThreadLocks serializes work per thread id while letting distinct threads proceed in parallel.
// Entries are reference counted and dropped once nobody holds or waits for them.
type ThreadLocks struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

func NewThreadLocks() *ThreadLocks {
	return &ThreadLocks{
		locks: map[string]*threadLock{},
	}
}

// Lock blocks until the lock for threadID is acquired or ctx is done.
// The returned unlock func must be called exactly once.
func (l *ThreadLocks) Lock(ctx context.Context, threadID string) (func(), error) {
	l.mu.Lock()
	tl, ok := l.locks[threadID]
	if !ok {
		tl = &threadLock{sem: make(chan struct{}, 1)}
		l.locks[threadID] = tl
	}
	tl.refs++
	l.mu.Unlock()

	select {
	case tl.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(threadID, tl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-tl.sem
			l.release(threadID, tl)
		})
	}, nil
}

func (l *ThreadLocks) release(threadID string, tl *threadLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tl.refs--
	if tl.refs == 0 {
		delete(l.locks, threadID)
	}
}

// Len returns the number of thread ids currently held or waited on.
func (l *ThreadLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
