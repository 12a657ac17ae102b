package orchestrator

import (
	"context"
	"sync"
)

// sessionLocks hands out one lock per session. Locks are channels so a
// waiter can give up when its context ends.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]chan struct{})}
}

// acquire blocks until the lock for id is held or ctx is done. The returned
// func releases the lock.
func (l *sessionLocks) acquire(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[id] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
