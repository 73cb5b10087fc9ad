package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Benny93/reachgraph/internal/index"
)

// SnapshotSource serves a stored snapshot as an index.Source.
type SnapshotSource struct {
	*index.MemorySource

	indexedAt time.Time
}

var _ index.Source = (*SnapshotSource)(nil)

// LoadSource reads the snapshot held by store.
func LoadSource(ctx context.Context, store SnapshotStore) (*SnapshotSource, error) {
	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return &SnapshotSource{
		MemorySource: index.NewMemorySource(snap.Module, snap.Classes...),
		indexedAt:    snap.IndexedAt,
	}, nil
}

// IndexedAt returns the time the snapshot was taken.
func (s *SnapshotSource) IndexedAt() time.Time {
	return s.indexedAt
}
