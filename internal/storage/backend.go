// Package storage persists indexed snapshots of a code base.
//
// It defines the SnapshotStore contract that all storage implementations
// must satisfy. A stored snapshot is read back through SnapshotSource, which
// makes it usable as an index.Source for building the graph cache.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Benny93/reachgraph/internal/index"
)

// ErrNoSnapshot is returned by LoadSnapshot when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Snapshot is the persisted result of indexing a module.
type Snapshot struct {
	// Module is the name of the indexed source, usually the module path.
	Module string `json:"module"`

	// IndexedAt is the time the snapshot was taken.
	IndexedAt time.Time `json:"indexed_at"`

	// Classes holds every indexed class, including external ones.
	Classes []index.ClassInfo `json:"-"`
}

// SnapshotStore defines the interface for storage implementations.
//
// Implementations must be thread-safe and support concurrent access.
type SnapshotStore interface {
	// Initialize opens or creates the store at the given path.
	// If readOnly is true, the store is opened in read-only mode.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the store.
	Close() error

	// SaveSnapshot replaces the stored snapshot.
	SaveSnapshot(ctx context.Context, snap *Snapshot) error

	// LoadSnapshot returns the stored snapshot, or ErrNoSnapshot.
	LoadSnapshot(ctx context.Context) (*Snapshot, error)

	// ClassCount returns the number of stored classes.
	ClassCount() int
}
