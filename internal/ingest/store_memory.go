package ingest

import (
	"context"
	"sync"
	"time"
)

// MemoryEventStore is an in-process EventStore.
type MemoryEventStore struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
}

// NewMemoryEventStore creates an in-memory event store with the given
// retention window; zero means DefaultRetention.
func NewMemoryEventStore(retention time.Duration) *MemoryEventStore {
	if retention == 0 {
		retention = DefaultRetention
	}
	return &MemoryEventStore{
		seen:      make(map[string]time.Time),
		retention: retention,
	}
}

// CheckAndRecord claims a key, pruning expired entries as it goes.
func (m *MemoryEventStore) CheckAndRecord(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if recorded, ok := m.seen[key]; ok {
		if now.Sub(recorded) < m.retention {
			return false, nil
		}
	}
	for k, recorded := range m.seen {
		if now.Sub(recorded) >= m.retention {
			delete(m.seen, k)
		}
	}
	m.seen[key] = now
	return true, nil
}

// Release drops a claimed key.
func (m *MemoryEventStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, key)
	return nil
}

var _ EventStore = (*MemoryEventStore)(nil)
