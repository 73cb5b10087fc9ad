// Package export writes search results to external graph stores.
package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Benny93/reachgraph/internal/graph"
)

// DefaultBatchSize is the number of rows sent per UNWIND statement.
const DefaultBatchSize = 500

// Runner executes one Cypher statement.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) error
}

// driverRunner runs statements through a Neo4j driver.
type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (r driverRunner) Run(ctx context.Context, cypher string, params map[string]any) error {
	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if r.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(r.database))
	}
	_, err := neo4j.ExecuteQuery(ctx, r.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
	return err
}

// Neo4jOptions configures a Neo4jExporter.
type Neo4jOptions struct {
	URI       string
	Username  string
	Password  string
	Database  string
	BatchSize int
	Logger    *slog.Logger
}

// Neo4jExporter upserts the visible nodes and squashed edges of a search
// as :ReachNode nodes and :REACHES relationships.
type Neo4jExporter struct {
	run       Runner
	close     func(ctx context.Context) error
	batchSize int
	logger    *slog.Logger
}

// ExportStats counts the rows written by Export.
type ExportStats struct {
	Nodes         int
	Relationships int
}

// NewNeo4jExporter connects to Neo4j and verifies connectivity.
func NewNeo4jExporter(ctx context.Context, opts Neo4jOptions) (*Neo4jExporter, error) {
	driver, err := neo4j.NewDriverWithContext(opts.URI, neo4j.BasicAuth(opts.Username, opts.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j at %s: %w", opts.URI, err)
	}

	e := NewExporter(driverRunner{driver: driver, database: opts.Database}, opts.BatchSize, opts.Logger)
	e.close = driver.Close
	return e, nil
}

// NewExporter creates an exporter on top of a statement runner.
func NewExporter(run Runner, batchSize int, logger *slog.Logger) *Neo4jExporter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Neo4jExporter{run: run, batchSize: batchSize, logger: logger}
}

// Close releases the driver, if any.
func (e *Neo4jExporter) Close(ctx context.Context) error {
	if e.close == nil {
		return nil
	}
	return e.close(ctx)
}

// CreateIndexes ensures the node key index exists.
func (e *Neo4jExporter) CreateIndexes(ctx context.Context) error {
	return e.run.Run(ctx, "CREATE INDEX reach_node_key IF NOT EXISTS FOR (n:ReachNode) ON (n.key)", nil)
}

// Clear removes every exported node and relationship.
func (e *Neo4jExporter) Clear(ctx context.Context) error {
	e.logger.Info("clearing exported reach graph")
	return e.run.Run(ctx, "MATCH (n:ReachNode) DETACH DELETE n", nil)
}

const upsertNodes = `UNWIND $batch AS row
MERGE (n:ReachNode {key: row.key})
SET n.name = row.name, n.kind = row.kind, n.class = row.class,
    n.package = row.package, n.file = row.file`

const upsertRelationships = `UNWIND $batch AS row
MATCH (a:ReachNode {key: row.from}), (b:ReachNode {key: row.to})
MERGE (a)-[r:REACHES]->(b)
SET r.contexts = row.contexts, r.labels = row.labels,
    r.squashed = row.squashed, r.direction = row.direction`

// Export upserts the result of a search.
func (e *Neo4jExporter) Export(ctx context.Context, result *graph.ChainSet) (ExportStats, error) {
	nodes, rels := Rows(result)
	if err := e.batched(ctx, upsertNodes, nodes); err != nil {
		return ExportStats{}, fmt.Errorf("upserting nodes: %w", err)
	}
	if err := e.batched(ctx, upsertRelationships, rels); err != nil {
		return ExportStats{}, fmt.Errorf("upserting relationships: %w", err)
	}

	e.logger.Info("exported reach graph", "nodes", len(nodes), "relationships", len(rels))
	return ExportStats{Nodes: len(nodes), Relationships: len(rels)}, nil
}

func (e *Neo4jExporter) batched(ctx context.Context, cypher string, rows []map[string]any) error {
	for start := 0; start < len(rows); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+e.batchSize, len(rows))
		if err := e.run.Run(ctx, cypher, map[string]any{"batch": rows[start:end]}); err != nil {
			return err
		}
	}
	return nil
}

// Rows converts a search result into node and relationship rows. Only
// complete edges are exported; their endpoints are the node rows.
func Rows(result *graph.ChainSet) (nodes, rels []map[string]any) {
	for _, n := range result.Nodes() {
		ref := n.ClassReference()
		nodes = append(nodes, map[string]any{
			"key":     n.String(),
			"name":    n.Name(),
			"kind":    n.Kind().String(),
			"class":   ref.QualifiedName(),
			"package": ref.Path(),
			"file":    ref.FilePath,
		})
	}

	for _, edge := range result.Edges() {
		if !edge.IsComplete() {
			continue
		}
		var kinds, labels []string
		seen := make(map[graph.ContextKind]bool)
		for _, c := range edge.Contexts() {
			if !seen[c.Kind] {
				seen[c.Kind] = true
				kinds = append(kinds, c.Kind.String())
			}
			if label := c.Label(); label != "" {
				labels = append(labels, label)
			}
		}
		rels = append(rels, map[string]any{
			"from":      edge.From().String(),
			"to":        edge.To().String(),
			"contexts":  kinds,
			"labels":    labels,
			"squashed":  edge.Squashed(),
			"direction": edge.Direction().String(),
		})
	}
	return nodes, rels
}
