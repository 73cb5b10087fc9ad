// Package query runs reachability searches against an indexed source.
//
// A search locates the root, builds a cache restricted around it, resolves
// the root node in that cache and walks it with the configured traversal
// filter. Every search builds its own cache.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Benny93/reachgraph/internal/config"
	"github.com/Benny93/reachgraph/internal/graph"
	"github.com/Benny93/reachgraph/internal/index"
)

// Engine answers queries against one source.
type Engine struct {
	src    index.Source
	logger *slog.Logger
}

// NewEngine creates an engine. A nil logger uses slog.Default.
func NewEngine(src index.Source, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{src: src, logger: logger}
}

// Result is the outcome of one search.
type Result struct {
	Root     graph.Node
	Request  graph.SearchRequest
	Chains   *graph.ChainSet
	Cache    graph.CacheStats
	Duration time.Duration
}

// Search runs the search configured by cfg from the node matching rootQuery.
func (e *Engine) Search(ctx context.Context, cfg *config.Config, rootQuery string) (*Result, error) {
	start := time.Now()

	scope, err := cfg.SearchScope()
	if err != nil {
		return nil, err
	}
	root, err := graph.LocateRoot(ctx, e.src, scope, rootQuery)
	if err != nil {
		return nil, err
	}
	restriction, err := cfg.RestrictionFilter(root)
	if err != nil {
		return nil, fmt.Errorf("building restriction: %w", err)
	}

	cache, err := graph.NewCache(ctx, e.src, restriction, graph.WithScope(scope), graph.WithLogger(e.logger))
	if err != nil {
		return nil, fmt.Errorf("building cache: %w", err)
	}
	node, err := cache.RootNode(root)
	if err != nil {
		return nil, err
	}
	traversal, err := cfg.TraversalFilter(node)
	if err != nil {
		return nil, fmt.Errorf("building traversal filter: %w", err)
	}

	req := cfg.SearchRequest(node)
	chains, err := cache.Search(ctx, traversal, req)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Root:     node,
		Request:  req,
		Chains:   chains,
		Cache:    cache.Stats(),
		Duration: time.Since(start),
	}
	e.logger.Debug("search complete",
		"root", node.String(),
		"chains", chains.Len(),
		"classes", res.Cache.Classes,
		"duration", res.Duration,
	)
	return res, nil
}

// Roots lists the nodes a query could start from. Nothing is restricted,
// so the list shows candidates the restriction of a search would cut.
func (e *Engine) Roots(ctx context.Context, cfg *config.Config, q string) ([]graph.Node, error) {
	scope, err := cfg.SearchScope()
	if err != nil {
		return nil, err
	}
	cache, err := graph.NewCache(ctx, e.src, graph.OpenRestriction{}, graph.WithScope(scope), graph.WithLogger(e.logger))
	if err != nil {
		return nil, fmt.Errorf("building cache: %w", err)
	}
	return cache.FindNodes(q), nil
}
