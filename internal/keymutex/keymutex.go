// Package keymutex provides per-key exclusive locks with bounded,
// context-aware acquisition.
package keymutex

import (
	"context"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex hands out one exclusive lock per key. Entries are created on
// first use and dropped once the last waiter releases, so idle keys cost
// nothing.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New returns an empty KeyedMutex.
func New() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*entry)}
}

// Lock acquires the lock for key, waiting until the context is done. On
// success it returns the release func; the caller must invoke it exactly
// once. On context expiry it returns ctx.Err().
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			m.release(key, e)
		}, nil
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) release(key string, e *entry) {
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}
