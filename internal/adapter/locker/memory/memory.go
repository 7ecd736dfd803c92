// Package memory serializes work on the same keys inside a single process.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

type URLLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewURLLocker() *URLLocker {
	return &URLLocker{entries: make(map[string]*entry)}
}

// Lock acquires every key in sorted order and blocks until all are held or
// ctx is done. Duplicate keys are acquired once.
func (l *URLLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	const op = "adapter.locker.memory.URLLocker.Lock"

	keys = sortedKeys(keys)
	held := make([]string, 0, len(keys))

	for _, key := range keys {
		e := l.acquire(key)

		select {
		case e.sem <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			l.release(key, false)
			l.unlock(held)
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			l.unlock(held)
		})
	}, nil
}

func (l *URLLocker) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++

	return e
}

func (l *URLLocker) release(key string, held bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entries[key]
	if held {
		<-e.sem
	}

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *URLLocker) unlock(held []string) {
	for i := len(held) - 1; i >= 0; i-- {
		l.release(held[i], true)
	}
}

func sortedKeys(keys []string) []string {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}
