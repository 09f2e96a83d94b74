package session

import (
	"context"
	"sync"
)

// turnQueue admits one holder at a time and hands the turn to waiters in the
// order they arrived.
type turnQueue struct {
	mu      sync.Mutex
	busy    bool
	waiters []chan struct{}
}

// acquire blocks until it is the caller's turn or ctx is done.
func (q *turnQueue) acquire(ctx context.Context) error {
	q.mu.Lock()
	if !q.busy {
		q.busy = true
		q.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	q.waiters = append(q.waiters, ch)
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		for i, w := range q.waiters {
			if w == ch {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				q.mu.Unlock()
				return ctx.Err()
			}
		}
		q.mu.Unlock()
		// The turn was handed to us as ctx ended; pass it on.
		q.release()
		return ctx.Err()
	}
}

// release gives the turn to the oldest waiter, if any.
func (q *turnQueue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.waiters) > 0 {
		next := q.waiters[0]
		q.waiters = q.waiters[1:]
		close(next)
		return
	}
	q.busy = false
}

// pending returns the number of callers waiting for a turn.
func (q *turnQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}
