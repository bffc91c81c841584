package cache

import (
	"context"
	"sync"
	"time"
)

// InMemorySweepLock implements the sweep lease on a local map. Suitable
// for single-instance deployments and testing; it does not coordinate
// across processes.
type InMemorySweepLock struct {
	mu     sync.Mutex
	leases map[string]time.Time
}

// NewInMemorySweepLock creates a new in-memory sweep lock
func NewInMemorySweepLock() *InMemorySweepLock {
	return &InMemorySweepLock{
		leases: make(map[string]time.Time),
	}
}

// Acquire takes the lease for the named sweep. Returns true if this
// caller won it, false if an unexpired lease is held.
func (l *InMemorySweepLock) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiresAt, exists := l.leases[name]; exists && time.Now().Before(expiresAt) {
		return false, nil
	}
	l.leases[name] = time.Now().Add(ttl)
	return true, nil
}

// Release gives the lease back early
func (l *InMemorySweepLock) Release(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.leases, name)
	return nil
}
