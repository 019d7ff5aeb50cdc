package lock

import (
	"context"
	"sync"
)

// KeyMutex serializes callers per key within one process. Different keys
// never block each other. Entries are reference counted and removed once
// no caller holds or waits for them, so the map stays bounded by the number
// of in-flight keys.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewKeyMutex creates an empty KeyMutex.
func NewKeyMutex() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free or ctx is done. The returned release
// function is idempotent.
func (m *KeyMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			m.unref(key, l)
		})
	}, nil
}

func (m *KeyMutex) unref(key string, l *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (m *KeyMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
