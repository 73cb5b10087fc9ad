package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/Benny93/reachgraph/internal/config"
	"github.com/Benny93/reachgraph/internal/ingestion"
	"github.com/Benny93/reachgraph/internal/query"
	"github.com/Benny93/reachgraph/internal/storage"
)

// IndexCmd indexes a repository into a snapshot.
type IndexCmd struct {
	Path     string   `arg:"" optional:"" help:"Path to repository (default --repo)"`
	Scope    string   `help:"project or all (default from config)"`
	Patterns []string `short:"p" help:"Package patterns to load (default ./...)"`
}

// Run executes the index command.
func (c *IndexCmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()

	repoPath, err := g.repoPath(c.Path)
	if err != nil {
		return err
	}
	cfg, err := g.loadConfig(repoPath)
	if err != nil {
		return err
	}
	scope, err := parseScope(c.Scope, cfg)
	if err != nil {
		return err
	}

	if !g.Quiet {
		color.New(color.FgGreen).Fprintf(g.Out, "Indexing %s\n", repoPath)
	}

	store, err := openStore(cfg.StorePath(repoPath), false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var progress ingestion.ProgressCallback
	if !g.Quiet {
		progress = func(phase string, pct float64) {
			fmt.Fprintf(g.Out, "\r\033[K%s (%.0f%%)", phase, pct*100)
		}
	}

	result, err := ingestion.RunIndex(ctx, repoPath, store, ingestion.IndexOptions{
		Patterns: c.Patterns,
		Scope:    scope,
		Logger:   g.Logger,
	}, progress)
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	g.printf("\n") // Newline after progress
	if !g.Quiet {
		printIndexSummary(g.Out, result)
	}
	return nil
}

func printIndexSummary(w io.Writer, result *ingestion.IndexResult) {
	color.New(color.FgGreen).Fprintln(w, "✓ Indexing complete")
	fmt.Fprintf(w, "  Module:             %s\n", result.Module)
	fmt.Fprintf(w, "  Files:              %d\n", result.Files)
	fmt.Fprintf(w, "  Classes:            %d\n", result.Classes)
	fmt.Fprintf(w, "  Dependency classes: %d\n", result.ExternalClasses)
	fmt.Fprintf(w, "  Methods:            %d\n", result.Methods)
	fmt.Fprintf(w, "  Calls:              %d\n", result.Calls)
	fmt.Fprintf(w, "  Duration:           %.2fs\n", result.Duration.Seconds())
}

// WatchCmd re-indexes the repository when Go files change.
type WatchCmd struct {
	Root     string        `arg:"" optional:"" help:"Root to search after each re-index"`
	Debounce time.Duration `default:"2s" help:"Quiet period before a batch of changes is processed"`
	Scope    string        `help:"project or all (default from config)"`

	SearchFlags `embed:""`
}

// Run executes the watch command.
func (c *WatchCmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()
	return c.watch(ctx, g, nil)
}

// watch indexes once, then re-indexes on every batch whose file contents
// changed. ready is called once the watcher is running.
func (c *WatchCmd) watch(ctx context.Context, g *Globals, ready func()) error {
	repoPath, err := g.repoPath("")
	if err != nil {
		return err
	}
	cfg, err := g.loadConfig(repoPath)
	if err != nil {
		return err
	}
	scope, err := parseScope(c.Scope, cfg)
	if err != nil {
		return err
	}
	searchCfg, err := cfg.Apply(c.overrides())
	if err != nil {
		return err
	}
	matcher, err := ingestion.NewProjectMatcher(repoPath)
	if err != nil {
		return fmt.Errorf("loading ignore patterns: %w", err)
	}

	store, err := openStore(cfg.StorePath(repoPath), false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	opts := ingestion.IndexOptions{Scope: scope, Logger: g.Logger}
	result, err := ingestion.RunIndex(ctx, repoPath, store, opts, nil)
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	fingerprint := result.Fingerprint
	g.printf("Indexed %d classes from %d files\n", result.Classes, result.Files)
	if err := c.report(ctx, g, store, searchCfg); err != nil {
		return err
	}

	onChange := func(ctx context.Context, changed []string) error {
		entries, err := ingestion.WalkRepo(repoPath, matcher)
		if err != nil {
			return err
		}
		if ingestion.Fingerprint(entries) == fingerprint {
			g.Logger.Debug("contents unchanged, skipping re-index", "files", changed)
			return nil
		}

		result, err := ingestion.RunIndex(ctx, repoPath, store, opts, nil)
		if err != nil {
			return err
		}
		fingerprint = result.Fingerprint
		g.printf("\nRe-indexed after %d changed files (%.2fs)\n", len(changed), result.Duration.Seconds())
		return c.report(ctx, g, store, searchCfg)
	}

	g.printf("Watching %s for changes (Ctrl+C to stop)\n", repoPath)
	err = ingestion.Watch(ctx, repoPath, matcher, onChange, ingestion.WatchOptions{
		Debounce: c.Debounce,
		Logger:   g.Logger,
		Ready:    ready,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}

	g.printf("Watch mode stopped.\n")
	return nil
}

// report re-runs the configured search against the stored snapshot.
func (c *WatchCmd) report(ctx context.Context, g *Globals, store storage.SnapshotStore, cfg *config.Config) error {
	if c.Root == "" {
		return nil
	}
	src, err := storage.LoadSource(ctx, store)
	if err != nil {
		return err
	}
	res, err := query.NewEngine(src, g.Logger).Search(ctx, cfg, c.Root)
	if err != nil {
		// The root may be gone after an edit; keep watching.
		g.Logger.Warn("search failed", "root", c.Root, "error", err)
		return nil
	}
	printReport(g.Out, query.NewReport(res))
	return nil
}
