package annotate

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// itemLocks hands out one weighted semaphore per item ID while it is in use.
type itemLocks struct {
	mu   sync.Mutex
	sems map[int64]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func newItemLocks() *itemLocks {
	return &itemLocks{sems: make(map[int64]*lockEntry)}
}

// lock blocks until the item is free or ctx is done.
func (l *itemLocks) lock(ctx context.Context, id int64) (func(), error) {
	l.mu.Lock()
	e, ok := l.sems[id]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.sems[id] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.release(id, e)
		return nil, err
	}
	return func() {
		e.sem.Release(1)
		l.release(id, e)
	}, nil
}

func (l *itemLocks) release(id int64, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.sems, id)
	}
}

func (l *itemLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sems)
}
