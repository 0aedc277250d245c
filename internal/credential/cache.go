package credential

import (
	"context"
	"sync"
)

// Cache is a storage slot for credentials. It performs no validity checks.
// Get returns the zero Credential when nothing is stored.
type Cache interface {
	Get(ctx context.Context, id Identity) (Credential, error)
	Set(ctx context.Context, id Identity, c Credential) error
}

// MemoryCache holds credentials in process memory. It is safe for
// concurrent use and does not survive a restart.
type MemoryCache struct {
	mu    sync.RWMutex
	scope Scope
	slots map[string]Credential
}

// NewMemoryCache creates an empty in-memory cache keyed according to scope.
func NewMemoryCache(scope Scope) *MemoryCache {
	return &MemoryCache{
		scope: scope,
		slots: make(map[string]Credential),
	}
}

func (m *MemoryCache) Get(_ context.Context, id Identity) (Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slots[m.scope.Key(id)], nil
}

func (m *MemoryCache) Set(_ context.Context, id Identity, c Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[m.scope.Key(id)] = c
	return nil
}

// Len returns the number of occupied slots.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}
