package index

import (
	"context"
	"sort"
	"sync"
)

// MemorySource is an in-memory Source, used for tests and for snapshots that
// have already been loaded.
type MemorySource struct {
	mu      sync.RWMutex
	name    string
	classes map[ClassRef]*ClassInfo
}

// NewMemorySource creates a source holding the given classes.
func NewMemorySource(name string, classes ...ClassInfo) *MemorySource {
	s := &MemorySource{
		name:    name,
		classes: make(map[ClassRef]*ClassInfo, len(classes)),
	}
	for _, c := range classes {
		s.Add(c)
	}
	return s
}

// Add inserts or replaces a class.
func (s *MemorySource) Add(class ClassInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := class
	s.classes[ClassRef{Path: c.Path, Name: c.Name}] = &c
}

// Len returns the number of classes held.
func (s *MemorySource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.classes)
}

// Name implements Source.
func (s *MemorySource) Name() string {
	return s.name
}

// List implements Source. Headers are sorted by path and name.
func (s *MemorySource) List(ctx context.Context, scope Scope) ([]ClassHeader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	headers := make([]ClassHeader, 0, len(s.classes))
	for _, c := range s.classes {
		if c.External && scope != ScopeAll {
			continue
		}
		headers = append(headers, c.ClassHeader)
	}
	sort.Slice(headers, func(i, j int) bool {
		if headers[i].Path != headers[j].Path {
			return headers[i].Path < headers[j].Path
		}
		return headers[i].Name < headers[j].Name
	})
	return headers, nil
}

// Lookup implements Source.
func (s *MemorySource) Lookup(ctx context.Context, ref ClassRef) (*ClassInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.classes[ClassRef{Path: ref.Path, Name: ref.Name}]
	if !ok {
		return nil, nil
	}
	return c, nil
}

// Snapshot returns a copy of all classes, sorted like List.
func (s *MemorySource) Snapshot() []ClassInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ClassInfo, 0, len(s.classes))
	for _, c := range s.classes {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Name < out[j].Name
	})
	return out
}
