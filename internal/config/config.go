// Package config loads the reachgraph configuration file.
//
// The file selects a diagram preset and overrides any part of it:
//
//	diagram: call
//	classification:
//	  data_access:
//	    name: "*Repository;*Store"
//	restriction:
//	  cut_data_access: false
//	traversal:
//	  forward_depth: 5
//	details:
//	  edge_mode: MethodsAndDirectTypeUsage
//
// Keys missing from the file keep the preset values. A classification
// category given in the file replaces the preset patterns of that category.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Benny93/reachgraph/internal/graph"
	"github.com/Benny93/reachgraph/internal/index"
)

// DefaultFile is the configuration file looked up in the repository root.
const DefaultFile = "reachgraph.yaml"

// DefaultStoreDir is the snapshot directory, relative to the repository root.
const DefaultStoreDir = ".reachgraph"

// Config is the full configuration of a search.
type Config struct {
	// Diagram names the preset the file starts from: call, structure or flow.
	Diagram string `yaml:"diagram"`

	// Scope is "project" or "all".
	Scope string `yaml:"scope"`

	// IncludedProjects is a ';'-separated list of package path prefixes
	// that count as the project. Empty admits everything.
	IncludedProjects string `yaml:"included_projects"`

	Classification map[graph.Category]graph.CategoryPatterns `yaml:"classification"`
	Restriction    graph.RestrictionOptions                  `yaml:"restriction"`
	Traversal      graph.TraversalOptions                    `yaml:"traversal"`
	Details        Details                                   `yaml:"details"`

	Store StoreConfig `yaml:"store"`
	Neo4j Neo4jConfig `yaml:"neo4j"`
}

// Details holds the presentation settings of a search.
type Details struct {
	EdgeMode graph.EdgeMode `yaml:"edge_mode"`
}

// StoreConfig locates the snapshot store.
type StoreConfig struct {
	// Dir is the store directory. Relative paths are resolved against the
	// repository root.
	Dir string `yaml:"dir"`
}

// Neo4jConfig holds the export connection settings.
type Neo4jConfig struct {
	URI       string `yaml:"uri"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	BatchSize int    `yaml:"batch_size"`
}

// Load reads the configuration file at path. A missing file yields the
// call preset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultCall(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration document on top of its diagram preset.
func Parse(data []byte) (*Config, error) {
	var head struct {
		Diagram string `yaml:"diagram"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	cfg, err := Preset(head.Diagram)
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the values that are not validated while building filters.
func (c *Config) Validate() error {
	if _, err := c.SearchScope(); err != nil {
		return err
	}
	if c.Traversal.ForwardDepth < 0 || c.Traversal.BackwardDepth < 0 {
		return fmt.Errorf("negative search depth: forward %d, backward %d",
			c.Traversal.ForwardDepth, c.Traversal.BackwardDepth)
	}
	if c.Neo4j.BatchSize < 0 {
		return fmt.Errorf("negative neo4j batch size %d", c.Neo4j.BatchSize)
	}
	return nil
}

// SearchScope parses Scope.
func (c *Config) SearchScope() (index.Scope, error) {
	return index.ParseScope(c.Scope)
}

// StorePath resolves the store directory against the repository root.
func (c *Config) StorePath(repoPath string) string {
	dir := c.Store.Dir
	if dir == "" {
		dir = DefaultStoreDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(repoPath, dir)
}
