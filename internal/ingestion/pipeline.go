// Package ingestion indexes a Go repository into a stored snapshot.
//
// The pipeline walks the project files, loads the packages through goindex
// and persists the resulting classes. Watch re-runs it when Go files change.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Benny93/reachgraph/internal/index"
	"github.com/Benny93/reachgraph/internal/index/goindex"
	"github.com/Benny93/reachgraph/internal/storage"
)

// IndexResult summarizes an indexing run.
type IndexResult struct {
	Module          string
	Files           int
	Classes         int
	ExternalClasses int
	Methods         int
	Calls           int
	Fingerprint     string
	Duration        time.Duration
}

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// IndexOptions configures RunIndex.
type IndexOptions struct {
	// Patterns are the package patterns to load. Defaults to "./...".
	Patterns []string

	// Scope selects whether dependency classes are indexed too.
	Scope index.Scope

	Logger *slog.Logger

	// Now stamps the snapshot. Defaults to time.Now.
	Now func() time.Time
}

// RunIndex indexes the repository at repoPath and saves the snapshot to
// store. A nil store only indexes.
func RunIndex(
	ctx context.Context,
	repoPath string,
	store storage.SnapshotStore,
	opts IndexOptions,
	progress ProgressCallback,
) (*IndexResult, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if progress == nil {
		progress = func(string, float64) {}
	}

	start := time.Now()
	result := &IndexResult{}

	// Phase 1: File walking
	progress("Walking files", 0.0)
	matcher, err := NewProjectMatcher(repoPath)
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}
	entries, err := WalkRepo(repoPath, matcher)
	if err != nil {
		return nil, fmt.Errorf("walking repo: %w", err)
	}
	result.Files = len(entries)
	result.Fingerprint = Fingerprint(entries)
	progress("Walking files", 1.0)

	// Phase 2: Loading packages
	progress("Loading packages", 0.0)
	src, err := goindex.Load(ctx, goindex.Options{
		Dir:      repoPath,
		Patterns: opts.Patterns,
		Scope:    opts.Scope,
		Ignore:   matcher.IgnoredFile,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}
	classes := src.Snapshot()
	result.Module = src.Name()
	countClasses(classes, result)
	progress("Loading packages", 1.0)

	// Phase 3: Storing snapshot
	if store != nil {
		progress("Storing snapshot", 0.0)
		snap := &storage.Snapshot{
			Module:    src.Name(),
			IndexedAt: opts.Now(),
			Classes:   classes,
		}
		if err := store.SaveSnapshot(ctx, snap); err != nil {
			return nil, fmt.Errorf("saving snapshot: %w", err)
		}
		progress("Storing snapshot", 1.0)
	}

	result.Duration = time.Since(start)
	opts.Logger.Debug("index complete",
		"module", result.Module,
		"files", result.Files,
		"classes", result.Classes,
		"duration", result.Duration,
	)
	return result, nil
}

func countClasses(classes []index.ClassInfo, result *IndexResult) {
	for i := range classes {
		c := &classes[i]
		if c.External {
			result.ExternalClasses++
			continue
		}
		result.Classes++
		result.Methods += len(c.Methods)
		for _, m := range c.Methods {
			result.Calls += len(m.Calls)
		}
	}
}
