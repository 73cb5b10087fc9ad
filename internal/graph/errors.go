package graph

import "errors"

var (
	// ErrCancelled is returned when a cache build or search is aborted
	// through its context. No partial result accompanies it.
	ErrCancelled = errors.New("graph operation cancelled")

	// ErrInvalidPattern is returned when an include or exclude pattern
	// does not compile.
	ErrInvalidPattern = errors.New("invalid filter pattern")

	// ErrRootNotFound is returned when a search root cannot be resolved in
	// the cache.
	ErrRootNotFound = errors.New("search root not found")

	// ErrUnknownEdgeMode is returned when an edge mode name is not recognized.
	ErrUnknownEdgeMode = errors.New("unknown edge mode")
)
