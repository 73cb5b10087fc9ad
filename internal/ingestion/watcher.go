package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before a batch
// is handed to the change handler.
const DefaultDebounce = 2 * time.Second

// ChangeHandler receives a batch of changed project files, as sorted slash
// separated paths relative to the repository root.
type ChangeHandler func(ctx context.Context, changed []string) error

// WatchOptions configures Watch.
type WatchOptions struct {
	Debounce time.Duration
	Logger   *slog.Logger

	// Ready is called once all directories are watched.
	Ready func()
}

// Watch monitors the project Go files of a repository and calls onChange
// with batches of changed files. Handler errors are logged and watching
// continues. Blocks until the context is cancelled.
func Watch(ctx context.Context, repoPath string, matcher *ProjectMatcher, onChange ChangeHandler, opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchTree(watcher, repoPath, matcher); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}
	if opts.Ready != nil {
		opts.Ready()
	}

	// Batch changed files for efficient re-indexing
	changed := make(map[string]bool)
	batchTimer := time.NewTimer(opts.Debounce)
	batchTimer.Stop() // Don't start yet

	opts.Logger.Info("watching for changes", "path", repoPath)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) {
				if rel, ok := matcher.rel(event.Name); ok && isDir(event.Name) && !matcher.Ignored(rel, true) {
					if err := watchTree(watcher, event.Name, matcher); err != nil {
						opts.Logger.Warn("watching new directory", "path", rel, "error", err)
					}
					continue
				}
			}
			if event.Op == fsnotify.Chmod || !matcher.Watched(event.Name) {
				continue
			}

			rel, _ := matcher.rel(event.Name)
			changed[rel] = true
			batchTimer.Reset(opts.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			opts.Logger.Warn("watch error", "error", err)

		case <-batchTimer.C:
			if len(changed) == 0 {
				continue
			}
			paths := make([]string, 0, len(changed))
			for p := range changed {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			changed = make(map[string]bool)

			opts.Logger.Debug("processing changes", "files", len(paths))
			if err := onChange(ctx, paths); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				opts.Logger.Error("processing changes", "error", err)
			}
		}
	}
}

// watchTree adds dir and every non-ignored directory below it.
func watchTree(watcher *fsnotify.Watcher, dir string, matcher *ProjectMatcher) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := matcher.rel(path); ok && matcher.Ignored(rel, true) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
