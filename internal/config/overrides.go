package config

import (
	"github.com/Benny93/reachgraph/internal/graph"
)

// Overrides adjust a loaded configuration for one search. Zero values keep
// the configured setting.
type Overrides struct {
	Diagram       string
	Scope         string
	ForwardDepth  *int
	BackwardDepth *int
	EdgeMode      string
}

// Apply returns a copy of c with the overrides applied. A diagram override
// starts from that preset and keeps the scope, included projects, store and
// neo4j settings of c. Classification maps are shared with c.
func (c *Config) Apply(o Overrides) (*Config, error) {
	var out Config
	if o.Diagram != "" {
		preset, err := Preset(o.Diagram)
		if err != nil {
			return nil, err
		}
		out = *preset
		out.Scope = c.Scope
		out.IncludedProjects = c.IncludedProjects
		out.Store = c.Store
		out.Neo4j = c.Neo4j
	} else {
		out = *c
	}

	if o.Scope != "" {
		out.Scope = o.Scope
	}
	if o.ForwardDepth != nil {
		out.Traversal.ForwardDepth = *o.ForwardDepth
	}
	if o.BackwardDepth != nil {
		out.Traversal.BackwardDepth = *o.BackwardDepth
	}
	if o.EdgeMode != "" {
		mode, err := graph.ParseEdgeMode(o.EdgeMode)
		if err != nil {
			return nil, err
		}
		out.Details.EdgeMode = mode
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}
