package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/Benny93/reachgraph/internal/config"
	"github.com/Benny93/reachgraph/internal/export"
	"github.com/Benny93/reachgraph/internal/query"
)

// unset marks a depth flag that was not given.
const unset = -1

// SearchFlags adjust the configured search.
type SearchFlags struct {
	Diagram  string `short:"d" help:"Diagram preset: call, structure or flow (default from config)"`
	Forward  int    `default:"-1" help:"Forward search depth (default from config)"`
	Backward int    `default:"-1" help:"Backward search depth (default from config)"`
	Mode     string `short:"m" help:"Edge mode: TypesOnly, MethodsOnly, TypesAndMethods or MethodsAndDirectTypeUsage"`
}

func (f SearchFlags) overrides() config.Overrides {
	o := config.Overrides{Diagram: f.Diagram, EdgeMode: f.Mode}
	if f.Forward != unset {
		o.ForwardDepth = &f.Forward
	}
	if f.Backward != unset {
		o.BackwardDepth = &f.Backward
	}
	return o
}

// search loads the snapshot and runs one search from root.
func search(ctx context.Context, g *Globals, flags SearchFlags, root string) (*query.Result, *config.Config, error) {
	src, cfg, err := g.loadSource(ctx)
	if err != nil {
		return nil, nil, err
	}
	cfg, err = cfg.Apply(flags.overrides())
	if err != nil {
		return nil, nil, err
	}
	res, err := query.NewEngine(src, g.Logger).Search(ctx, cfg, root)
	if err != nil {
		return nil, nil, err
	}
	return res, cfg, nil
}

// SearchCmd prints the chains reachable from a root.
type SearchCmd struct {
	Root   string `arg:"" help:"Root as Type, path.Type, Type.Method or Type.Method(sig)"`
	Format string `short:"f" default:"text" enum:"text,json" help:"Output format (text|json)"`

	SearchFlags `embed:""`
}

// Run executes the search command.
func (c *SearchCmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()

	res, _, err := search(ctx, g, c.SearchFlags, c.Root)
	if err != nil {
		return err
	}
	report := query.NewReport(res)

	if c.Format == "json" {
		enc := json.NewEncoder(g.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(g.Out, report)
	return nil
}

func printReport(w io.Writer, r query.Report) {
	bold := color.New(color.Bold)
	dim := color.New(color.Faint)
	arrow := color.New(color.FgCyan)

	bold.Fprintf(w, "## Chains from %s\n", r.Root)
	dim.Fprintf(w, "%s, forward %d, backward %d, %d classes cached\n",
		r.EdgeMode, r.Forward, r.Backward, r.Classes)

	if len(r.Chains) == 0 {
		fmt.Fprintln(w, "\nNo chains found.")
		return
	}
	for i, chain := range r.Chains {
		color.New(color.FgYellow).Fprintf(w, "\n### Chain %d\n", i+1)
		for _, e := range chain {
			fmt.Fprintf(w, "  %s ", e.From)
			arrow.Fprint(w, "->")
			fmt.Fprintf(w, " %s", e.To)
			if len(e.Contexts) > 0 {
				dim.Fprintf(w, " %v", e.Contexts)
			}
			if e.Squashed > 0 {
				dim.Fprintf(w, " (%d hidden)", e.Squashed)
			}
			fmt.Fprintln(w)
		}
	}
}

// RootsCmd lists the nodes a query resolves to.
type RootsCmd struct {
	Query string `arg:"" help:"Type or Type.Method query"`
}

// Run executes the roots command.
func (c *RootsCmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()

	src, cfg, err := g.loadSource(ctx)
	if err != nil {
		return err
	}
	nodes, err := query.NewEngine(src, g.Logger).Roots(ctx, cfg, c.Query)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		fmt.Fprintf(g.Out, "No classes or methods match '%s'.\n", c.Query)
		return nil
	}

	for i, n := range nodes {
		v := query.NewNodeView(n)
		fmt.Fprintf(g.Out, "\n%d. ", i+1)
		color.New(color.Bold).Fprint(g.Out, v.Name)
		fmt.Fprintf(g.Out, " (%s)\n", v.Kind)
		fmt.Fprintf(g.Out, "   ID: %s\n", v.ID)
		if v.File != "" {
			fmt.Fprintf(g.Out, "   File: %s\n", v.File)
		}
	}
	return nil
}

// ExportCmd writes a search result to Neo4j.
type ExportCmd struct {
	Root      string `arg:"" help:"Root as Type, path.Type, Type.Method or Type.Method(sig)"`
	URI       string `name:"neo4j-uri" env:"NEO4J_URI" help:"Neo4j URI (default from config)"`
	Username  string `name:"neo4j-user" env:"NEO4J_USERNAME" help:"Neo4j user"`
	Password  string `name:"neo4j-password" env:"NEO4J_PASSWORD" help:"Neo4j password"`
	Database  string `name:"neo4j-database" env:"NEO4J_DATABASE" help:"Neo4j database"`
	BatchSize int    `help:"Rows per statement (default from config)"`
	Clear     bool   `help:"Delete previously exported nodes first"`

	SearchFlags `embed:""`

	connect func(context.Context, export.Neo4jOptions) (*export.Neo4jExporter, error) `kong:"-"`
}

// Run executes the export command.
func (c *ExportCmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()
	return c.export(ctx, g)
}

func (c *ExportCmd) export(ctx context.Context, g *Globals) error {
	res, cfg, err := search(ctx, g, c.SearchFlags, c.Root)
	if err != nil {
		return err
	}

	opts := export.Neo4jOptions{
		URI:       firstNonEmpty(c.URI, cfg.Neo4j.URI),
		Username:  firstNonEmpty(c.Username, cfg.Neo4j.Username),
		Password:  firstNonEmpty(c.Password, cfg.Neo4j.Password),
		Database:  firstNonEmpty(c.Database, cfg.Neo4j.Database),
		BatchSize: c.BatchSize,
		Logger:    g.Logger,
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = cfg.Neo4j.BatchSize
	}
	if opts.URI == "" {
		return errors.New("neo4j URI required: set --neo4j-uri or neo4j.uri in the config file")
	}

	connect := c.connect
	if connect == nil {
		connect = export.NewNeo4jExporter
	}
	exporter, err := connect(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = exporter.Close(context.Background()) }()

	if err := exporter.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}
	if c.Clear {
		if err := exporter.Clear(ctx); err != nil {
			return fmt.Errorf("clearing export: %w", err)
		}
	}
	stats, err := exporter.Export(ctx, res.Chains)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(g.Out, "✓ Exported %d nodes and %d relationships from %s\n",
		stats.Nodes, stats.Relationships, res.Root.Name())
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
