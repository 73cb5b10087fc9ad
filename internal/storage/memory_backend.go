package storage

import (
	"context"
	"sync"
)

// MemoryBackend is an in-memory implementation of SnapshotStore for testing.
type MemoryBackend struct {
	mu       sync.RWMutex
	snapshot *Snapshot
	indexed  bool
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Initialize implements SnapshotStore.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexed = true
	return nil
}

// Close implements SnapshotStore.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = nil
	return nil
}

// SaveSnapshot implements SnapshotStore. The snapshot is copied so later
// changes by the caller do not leak into the store.
func (m *MemoryBackend) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *snap
	stored.Classes = append(stored.Classes[:0:0], snap.Classes...)
	m.snapshot = &stored
	m.indexed = true
	return nil
}

// LoadSnapshot implements SnapshotStore.
func (m *MemoryBackend) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.snapshot == nil {
		return nil, ErrNoSnapshot
	}
	out := *m.snapshot
	out.Classes = append(out.Classes[:0:0], m.snapshot.Classes...)
	return &out, nil
}

// ClassCount implements SnapshotStore.
func (m *MemoryBackend) ClassCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot == nil {
		return 0
	}
	return len(m.snapshot.Classes)
}

// IsIndexed returns whether the backend has been initialized or written to.
func (m *MemoryBackend) IsIndexed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indexed
}
