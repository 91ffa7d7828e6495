package locker

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type localEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// localLocker keeps one weighted semaphore per key, dropped once no caller
// holds or waits for it.
type localLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

func NewLocalLocker() Locker {
	return &localLocker{entries: make(map[string]*localEntry)}
}

func (l *localLocker) Acquire(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.unref(key, e)
		return nil, err
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			e.sem.Release(1)
			l.unref(key, e)
		})
		return nil
	}, nil
}

func (l *localLocker) unref(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *localLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
