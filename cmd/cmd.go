// Package cmd provides CLI command implementations for reachgraph.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/Benny93/reachgraph/internal/config"
	"github.com/Benny93/reachgraph/internal/index"
	"github.com/Benny93/reachgraph/internal/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Globals carries the global flags and shared dependencies to every command.
type Globals struct {
	Repo   string
	Config string
	Quiet  bool
	Out    io.Writer
	Logger *slog.Logger
}

// repoPath resolves the repository root. A non-empty path overrides --repo.
func (g *Globals) repoPath(path string) (string, error) {
	if path == "" {
		path = g.Repo
	}
	if path == "" {
		path = "."
	}
	repoPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(repoPath)
	if err != nil {
		return "", fmt.Errorf("accessing %s: %w", repoPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", repoPath)
	}
	return repoPath, nil
}

func (g *Globals) configPath(repoPath string) string {
	if g.Config != "" {
		return g.Config
	}
	return filepath.Join(repoPath, config.DefaultFile)
}

func (g *Globals) loadConfig(repoPath string) (*config.Config, error) {
	return config.Load(g.configPath(repoPath))
}

// loadSource reads the stored snapshot of the repository.
func (g *Globals) loadSource(ctx context.Context) (*storage.SnapshotSource, *config.Config, error) {
	repoPath, err := g.repoPath("")
	if err != nil {
		return nil, nil, err
	}
	cfg, err := g.loadConfig(repoPath)
	if err != nil {
		return nil, nil, err
	}

	store, err := openStore(cfg.StorePath(repoPath), true)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = store.Close() }()

	src, err := storage.LoadSource(ctx, store)
	if err != nil {
		return nil, nil, err
	}
	return src, cfg, nil
}

// printf writes colorless output unless --quiet is set.
func (g *Globals) printf(format string, args ...any) {
	if g.Quiet {
		return
	}
	fmt.Fprintf(g.Out, format, args...)
}

// StatusCmd shows index status for the repository.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run(g *Globals) error {
	ctx := context.Background()
	repoPath, err := g.repoPath("")
	if err != nil {
		return err
	}
	cfg, err := g.loadConfig(repoPath)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.StorePath(repoPath), true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNoSnapshot) {
			return fmt.Errorf("no snapshot found at %s. Run 'reachgraph index' first", repoPath)
		}
		return err
	}

	project, external, methods := 0, 0, 0
	for i := range snap.Classes {
		if snap.Classes[i].External {
			external++
			continue
		}
		project++
		methods += len(snap.Classes[i].Methods)
	}

	configFile := g.configPath(repoPath)
	if _, err := os.Stat(configFile); err != nil {
		configFile = "(defaults)"
	}

	fmt.Fprintf(g.Out, "Index status for %s\n", repoPath)
	fmt.Fprintf(g.Out, "  Module:             %s\n", snap.Module)
	fmt.Fprintf(g.Out, "  Last indexed:       %s\n", snap.IndexedAt.Format(time.RFC3339))
	fmt.Fprintf(g.Out, "  Project classes:    %d\n", project)
	fmt.Fprintf(g.Out, "  Dependency classes: %d\n", external)
	fmt.Fprintf(g.Out, "  Methods:            %d\n", methods)
	fmt.Fprintf(g.Out, "  Store:              %s\n", cfg.StorePath(repoPath))
	fmt.Fprintf(g.Out, "  Config:             %s\n", configFile)
	return nil
}

// CleanCmd deletes the snapshot store of the repository.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(g *Globals) error {
	repoPath, err := g.repoPath("")
	if err != nil {
		return err
	}
	cfg, err := g.loadConfig(repoPath)
	if err != nil {
		return err
	}

	storeDir := cfg.StorePath(repoPath)
	if _, err := os.Stat(storeDir); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("no index found at %s. Nothing to clean", repoPath)
	}

	if !c.Force {
		fmt.Fprintf(g.Out, "Delete index at %s? [y/N] ", storeDir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(g.Out, "Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(storeDir); err != nil {
		return fmt.Errorf("deleting index: %w", err)
	}

	color.New(color.FgGreen).Fprintf(g.Out, "Deleted %s\n", storeDir)
	return nil
}

// InitCmd writes a configuration file for a diagram preset.
type InitCmd struct {
	Diagram string `short:"d" default:"call" enum:"call,structure,flow" help:"Diagram preset to start from"`
	Force   bool   `short:"f" help:"Overwrite an existing file"`
}

// Run executes the init command.
func (c *InitCmd) Run(g *Globals) error {
	repoPath, err := g.repoPath("")
	if err != nil {
		return err
	}
	path := g.configPath(repoPath)
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", path)
	}

	cfg, err := config.Preset(c.Diagram)
	if err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(g.Out, "✓ Wrote %s configuration to %s\n", c.Diagram, path)
	return nil
}

// Helper functions

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openStore opens the snapshot store. Read-only opens require an existing index.
func openStore(dir string, readOnly bool) (*storage.BadgerBackend, error) {
	if readOnly {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no index found at %s. Run 'reachgraph index' first", filepath.Dir(dir))
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(dir, readOnly); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

func parseScope(flag string, cfg *config.Config) (index.Scope, error) {
	if flag == "" {
		return cfg.SearchScope()
	}
	return index.ParseScope(flag)
}

func newLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `short:"v" help:"Enable verbose output"`
	Quiet   bool             `short:"q" help:"Suppress non-essential output"`
	Repo    string           `short:"C" default:"." help:"Repository root"`
	Config  string           `help:"Configuration file (default <repo>/reachgraph.yaml)"`

	// Commands
	Index  IndexCmd  `cmd:"" help:"Index a Go repository into a snapshot"`
	Search SearchCmd `cmd:"" help:"Show the chains reachable from a root class or method"`
	Roots  RootsCmd  `cmd:"" help:"List the classes and methods a query resolves to"`
	Watch  WatchCmd  `cmd:"" help:"Re-index on change and re-run a search"`
	Export ExportCmd `cmd:"" help:"Export a search result to Neo4j"`
	Init   InitCmd   `cmd:"" help:"Write a configuration file"`
	Setup  SetupCmd  `cmd:"" help:"Configure MCP for Claude Code / Cursor"`
	MCP    MCPCmd    `cmd:"" help:"Start MCP server (stdio transport)"`
	Status StatusCmd `cmd:"" help:"Show index status for the repository"`
	Clean  CleanCmd  `cmd:"" help:"Delete the index of the repository"`

	out    io.Writer `kong:"-"`
	errOut io.Writer `kong:"-"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{out: os.Stdout, errOut: os.Stderr}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	if c.out == nil {
		c.out = os.Stdout
	}
	if c.errOut == nil {
		c.errOut = os.Stderr
	}

	parser, err := kong.New(c,
		kong.Name("reachgraph"),
		kong.Description("Reachability search over the call and type graph of Go code"),
		kong.UsageOnError(),
		kong.Writers(c.out, c.errOut),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	logger := newLogger(c.errOut, c.Verbose, c.Quiet)
	slog.SetDefault(logger)

	return kongCtx.Run(&Globals{
		Repo:   c.Repo,
		Config: c.Config,
		Quiet:  c.Quiet,
		Out:    c.out,
		Logger: logger,
	})
}
