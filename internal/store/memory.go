package store

import (
	"context"
	"sync"
)

// MemoryKV is a simple in-memory backend. I need to keep this thread-safe
// because the HTTP surface may read while the ingest loop writes.
type MemoryKV struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

// NewMemoryKV creates an empty in-memory backend.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		collections: make(map[string]map[string][]byte),
	}
}

// Initialize sets up the backend. Nothing to do for the in-memory map.
func (m *MemoryKV) Initialize(ctx context.Context) error {
	return nil
}

// Close releases resources. Nothing to release for the in-memory map.
func (m *MemoryKV) Close() error {
	return nil
}

// Get returns a copy of the stored document for (collection, key).
func (m *MemoryKV) Get(ctx context.Context, collection, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[collection]
	if !ok {
		return nil, false, nil
	}
	data, ok := coll[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

// Put stores a copy of value under (collection, key), replacing any
// previous document.
func (m *MemoryKV) Put(ctx context.Context, collection, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string][]byte)
		m.collections[collection] = coll
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	coll[key] = stored
	return nil
}

// Snapshot returns a deep copy of the whole store keyed by collection and
// key. Replay tests compare snapshots taken at different points.
func (m *MemoryKV) Snapshot() map[string]map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]map[string]string, len(m.collections))
	for name, coll := range m.collections {
		copied := make(map[string]string, len(coll))
		for key, data := range coll {
			copied[key] = string(data)
		}
		out[name] = copied
	}
	return out
}
