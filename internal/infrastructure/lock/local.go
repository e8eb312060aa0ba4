package lock

import (
	"context"
	"sync"

	"NewsAnalyst/internal/ports"
)

// LocalLocker is an in-process try-lock keyed by name.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ ports.Locker = (*LocalLocker)(nil)

// NewLocalLocker returns an empty locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// TryLock acquires key unless it is already held.
func (l *LocalLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}
