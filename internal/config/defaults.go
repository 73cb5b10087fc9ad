package config

import (
	"fmt"
	"strings"

	"github.com/Benny93/reachgraph/internal/graph"
)

// Diagram presets.
const (
	DiagramCall      = "call"
	DiagramStructure = "structure"
	DiagramFlow      = "flow"
)

// Preset returns a fresh configuration for the named diagram. An empty
// name selects the call preset.
func Preset(diagram string) (*Config, error) {
	switch strings.ToLower(strings.TrimSpace(diagram)) {
	case "", DiagramCall:
		return DefaultCall(), nil
	case DiagramStructure:
		return DefaultStructure(), nil
	case DiagramFlow:
		return DefaultFlow(), nil
	default:
		return nil, fmt.Errorf("unknown diagram %q", diagram)
	}
}

// DefaultClassification returns category patterns for common Go naming.
func DefaultClassification() map[graph.Category]graph.CategoryPatterns {
	return map[graph.Category]graph.CategoryPatterns{
		graph.CategoryTest:               {Name: "*Mock*;Fake*;Stub*", Path: "*/mocks;*/testutil;*/internal/testing"},
		graph.CategoryClient:             {Name: "*Client"},
		graph.CategoryMapping:            {Name: "*Mapper;*Mapping;*Converter"},
		graph.CategoryDataAccess:         {Name: "*Repository;*Repo;*DAO;*Store", Path: "*/repository;*/dao"},
		graph.CategoryDataStructure:      {Name: "*DTO;*Entity;*Model;*Record", Path: "*/model;*/models;*/entity"},
		graph.CategoryInterfaceStructure: {Name: "*Request;*Response;*Payload", Path: "*/api;*/api/*;*pb"},
		graph.CategoryEntryPoint:         {Name: "*Handler;*Controller;*Server;*Command;main"},
	}
}

// defaultRestriction cuts every category except mappings.
func defaultRestriction() graph.RestrictionOptions {
	return graph.RestrictionOptions{
		CutEnum:                true,
		CutTests:               true,
		CutClient:              true,
		CutDataAccess:          true,
		CutInterfaceStructures: true,
		CutDataStructures:      true,
		CutGetterAndSetter:     true,
		CutConstructors:        true,
	}
}

// DefaultCall is the call preset: three levels of calls in both directions,
// data classes and accessors cut away.
func DefaultCall() *Config {
	return &Config{
		Diagram:        DiagramCall,
		Scope:          "project",
		Classification: DefaultClassification(),
		Restriction:    defaultRestriction(),
		Traversal: graph.TraversalOptions{
			ForwardDepth:       3,
			BackwardDepth:      3,
			HideInterfaceCalls: true,
			HidePrivateMethods: true,
		},
		Details: Details{EdgeMode: graph.MethodsOnly},
	}
}

// DefaultStructure is the structure preset: six levels of type relations,
// data classes kept.
func DefaultStructure() *Config {
	restriction := defaultRestriction()
	restriction.CutDataAccess = false
	restriction.CutDataStructures = false
	restriction.CutInterfaceStructures = false

	return &Config{
		Diagram:        DiagramStructure,
		Scope:          "project",
		Classification: DefaultClassification(),
		Restriction:    restriction,
		Traversal: graph.TraversalOptions{
			ForwardDepth:       6,
			BackwardDepth:      6,
			HideInterfaceCalls: true,
			HidePrivateMethods: true,
		},
		Details: Details{EdgeMode: graph.TypesOnly},
	}
}

// DefaultFlow is the flow preset: forward calls only, nothing cut or hidden.
func DefaultFlow() *Config {
	return &Config{
		Diagram:        DiagramFlow,
		Scope:          "project",
		Classification: DefaultClassification(),
		Traversal: graph.TraversalOptions{
			ForwardDepth:  999,
			BackwardDepth: 0,
		},
		Details: Details{EdgeMode: graph.MethodsOnly},
	}
}
