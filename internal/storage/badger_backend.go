package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/reachgraph/internal/index"
)

// Key prefixes for different data types
const (
	prefixClass = "c:" // class facts, keyed by package path and name
	keyMeta     = "m:meta"
)

// BadgerBackend is a BadgerDB-backed snapshot store.
type BadgerBackend struct {
	db          *badger.DB
	initialized bool
	readOnly    bool
	mu          sync.RWMutex
	classCount  int
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}

	b.initialized = true
	b.readOnly = readOnly
	b.classCount = b.countClasses()
	return nil
}

// countClasses counts the class keys in the database.
func (b *BadgerBackend) countClasses() int {
	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixClass)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	count := 0
	for it.Rewind(); it.Valid(); it.Next() {
		count++
	}
	return count
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

// SaveSnapshot drops the stored classes and writes the snapshot in one batch.
func (b *BadgerBackend) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return errors.New("badger backend not initialized")
	}
	if b.readOnly {
		return errors.New("badger backend opened read-only")
	}

	if err := b.db.DropPrefix([]byte(prefixClass)); err != nil {
		return fmt.Errorf("dropping classes: %w", err)
	}
	b.classCount = 0

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for i := range snap.Classes {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		class := &snap.Classes[i]
		data, err := json.Marshal(class)
		if err != nil {
			return fmt.Errorf("marshaling class %s.%s: %w", class.Path, class.Name, err)
		}
		if err := wb.Set(classKey(class.Path, class.Name), data); err != nil {
			return fmt.Errorf("setting class: %w", err)
		}
	}

	meta, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot metadata: %w", err)
	}
	if err := wb.Set([]byte(keyMeta), meta); err != nil {
		return fmt.Errorf("setting snapshot metadata: %w", err)
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing snapshot: %w", err)
	}

	b.classCount = b.countClasses()
	return nil
}

// LoadSnapshot reads the stored snapshot. Classes come back in key order.
func (b *BadgerBackend) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, errors.New("badger backend not initialized")
	}

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	item, err := txn.Get([]byte(keyMeta))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("getting snapshot metadata: %w", err)
	}

	var snap Snapshot
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &snap)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot metadata: %w", err)
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixClass)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var class index.ClassInfo
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &class)
		}); err != nil {
			return nil, fmt.Errorf("unmarshaling class %s: %w", it.Item().Key(), err)
		}
		snap.Classes = append(snap.Classes, class)
	}

	return &snap, nil
}

// ClassCount returns the number of stored classes.
func (b *BadgerBackend) ClassCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.classCount
}

// classKey returns the BadgerDB key for a class. Package paths never
// contain a semicolon, so keys are unambiguous.
func classKey(path, name string) []byte {
	return []byte(prefixClass + path + ";" + name)
}
