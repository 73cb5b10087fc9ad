package config

import (
	"fmt"

	"github.com/Benny93/reachgraph/internal/graph"
)

// NewClassification compiles the classification patterns.
func (c *Config) NewClassification() (*graph.Classification, error) {
	cls, err := graph.NewClassification(c.IncludedProjects, c.Classification)
	if err != nil {
		return nil, fmt.Errorf("classification: %w", err)
	}
	return cls, nil
}

// RestrictionFilter builds the cache restriction for a search from root.
func (c *Config) RestrictionFilter(root graph.Root) (*graph.GraphRestrictionFilter, error) {
	cls, err := c.NewClassification()
	if err != nil {
		return nil, err
	}
	return graph.NewRestrictionFilter(root, cls, c.Restriction)
}

// TraversalFilter builds the visibility filter of a search. The roots are
// always visible.
func (c *Config) TraversalFilter(roots ...graph.Node) (*graph.GraphTraversalFilter, error) {
	cls, err := c.NewClassification()
	if err != nil {
		return nil, err
	}
	return graph.NewTraversalFilter(cls, c.Traversal, roots...)
}

// SearchRequest returns the request for the given roots using the
// configured depths and edge mode.
func (c *Config) SearchRequest(roots ...graph.Node) graph.SearchRequest {
	return graph.SearchRequest{
		Roots:         roots,
		ForwardDepth:  c.Traversal.ForwardDepth,
		BackwardDepth: c.Traversal.BackwardDepth,
		EdgeMode:      c.Details.EdgeMode,
	}
}
