package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Benny93/reachgraph/internal/index"
)

// DefaultChunkSize is the number of classes analyzed per work unit.
const DefaultChunkSize = 10

// Build stages reported to a ProgressFunc.
const (
	StageCollect  = "collect"
	StageAnalyze  = "analyze"
	StageRemove   = "remove"
	StageOptimize = "optimize"
)

// ProgressFunc receives build progress. It may be called concurrently.
type ProgressFunc func(stage string, done, total int)

// CacheOption configures NewCache.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	scope     index.Scope
	chunkSize int
	workers   int
	logger    *slog.Logger
	progress  ProgressFunc
}

// WithScope selects the class enumeration scope.
func WithScope(scope index.Scope) CacheOption {
	return func(c *cacheConfig) { c.scope = scope }
}

// WithChunkSize sets the number of classes per analysis chunk.
func WithChunkSize(n int) CacheOption {
	return func(c *cacheConfig) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithWorkers bounds the number of chunks analyzed concurrently.
func WithWorkers(n int) CacheOption {
	return func(c *cacheConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets the logger used for build diagnostics.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *cacheConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) CacheOption {
	return func(c *cacheConfig) { c.progress = fn }
}

// Cache owns the analyzed classes of one request and the indices derived
// from them. It is immutable once NewCache returns and may be searched
// concurrently.
type Cache struct {
	source string
	filter RestrictionFilter
	logger *slog.Logger

	classes map[ClassID]*AnalyzedClass
	order   []ClassID

	forwardCalls       map[MethodID][]AnalyzeCall
	backwardCalls      map[MethodID][]AnalyzeCall
	subclasses         map[ClassID][]ClassReference
	methodClassUsage   map[MethodID][]MethodClassUsage
	forwardFieldUsage  map[ClassID][]FieldUsage
	backwardFieldUsage map[ClassID][]FieldUsage
}

// NewCache builds a cache from a source snapshot.
//
// Candidates are enumerated and filtered with AcceptClass, analyzed in
// parallel chunks, then pruned with RemoveClass once every class is known.
// The derived indices are built last in a single pass. Cancellation is
// checked per chunk and between phases; a cancelled build returns an error
// wrapping ErrCancelled and no cache.
func NewCache(ctx context.Context, src index.Source, filter RestrictionFilter, opts ...CacheOption) (cache *Cache, err error) {
	cfg := cacheConfig{
		scope:     index.ScopeProject,
		chunkSize: DefaultChunkSize,
		workers:   runtime.NumCPU(),
		logger:    slog.Default(),
		progress:  func(string, int, int) {},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if filter == nil {
		filter = OpenRestriction{}
	}

	ctx, span := startBuildSpan(ctx, src.Name(), cfg.scope.String())
	start := time.Now()
	defer func() {
		classCount := 0
		if cache != nil {
			classCount = len(cache.classes)
		}
		recordBuildMetrics(ctx, time.Since(start), classCount, err == nil)
		endSpan(span, err)
	}()

	headers, err := src.List(ctx, cfg.scope)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		return nil, fmt.Errorf("listing classes of %s: %w", src.Name(), err)
	}

	candidates := make([]index.ClassHeader, 0, len(headers))
	for _, h := range headers {
		if filter.AcceptClass(headerReference(h)) {
			candidates = append(candidates, h)
		}
	}
	cfg.progress(StageCollect, len(candidates), len(headers))
	cfg.logger.Debug("classes collected", "source", src.Name(), "listed", len(headers), "candidates", len(candidates))

	c := &Cache{
		source:             src.Name(),
		filter:             filter,
		logger:             cfg.logger,
		classes:            make(map[ClassID]*AnalyzedClass, len(candidates)),
		forwardCalls:       make(map[MethodID][]AnalyzeCall),
		backwardCalls:      make(map[MethodID][]AnalyzeCall),
		subclasses:         make(map[ClassID][]ClassReference),
		methodClassUsage:   make(map[MethodID][]MethodClassUsage),
		forwardFieldUsage:  make(map[ClassID][]FieldUsage),
		backwardFieldUsage: make(map[ClassID][]FieldUsage),
	}

	if err := c.analyze(ctx, src, candidates, cfg); err != nil {
		return nil, err
	}

	// Inheritance based removal needs every class loaded.
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	removed := c.removeRejected()
	cfg.progress(StageRemove, removed, len(candidates))

	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	c.optimize()
	cfg.progress(StageOptimize, len(c.classes), len(c.classes))

	stats := c.Stats()
	cfg.logger.Info("graph cache built",
		"source", c.source,
		"classes", stats.Classes,
		"methods", stats.Methods,
		"calls", stats.Calls,
		"removed", removed,
		"duration", time.Since(start),
	)
	return c, nil
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// analyze runs the per-class analysis over chunks of candidates.
func (c *Cache) analyze(ctx context.Context, src index.Source, candidates []index.ClassHeader, cfg cacheConfig) error {
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)

	for start := 0; start < len(candidates); start += cfg.chunkSize {
		end := min(start+cfg.chunkSize, len(candidates))
		chunk := candidates[start:end]

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return cancelled(err)
			}

			analyzed := make([]*AnalyzedClass, 0, len(chunk))
			for _, h := range chunk {
				info, err := src.Lookup(gctx, h.Ref())
				if err != nil {
					if gctx.Err() != nil {
						return cancelled(gctx.Err())
					}
					return fmt.Errorf("looking up %s.%s: %w", h.Path, h.Name, err)
				}
				if info == nil {
					continue
				}
				analyzed = append(analyzed, analyzeClass(info, c.filter))
			}

			mu.Lock()
			for _, class := range analyzed {
				c.classes[class.ID()] = class
			}
			done += len(chunk)
			progress := done
			mu.Unlock()

			cfg.progress(StageAnalyze, progress, len(candidates))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}
	return nil
}

// removeRejected applies RemoveClass to every class. Decisions are taken on
// the complete map before anything is deleted.
func (c *Cache) removeRejected() int {
	ids := c.sortedIDs()

	var rejected []ClassID
	for _, id := range ids {
		if c.filter.RemoveClass(c.classes[id].Reference, c) {
			rejected = append(rejected, id)
		}
	}
	for _, id := range rejected {
		delete(c.classes, id)
	}
	if len(rejected) > 0 {
		c.logger.Debug("classes removed after load", "count", len(rejected))
	}
	return len(rejected)
}

// optimize builds the derived indices in one pass over the retained classes.
// References that do not resolve are dropped.
func (c *Cache) optimize() {
	c.order = c.sortedIDs()

	seenCalls := make(map[CallKey]bool)
	for _, id := range c.order {
		for _, call := range c.classes[id].Calls {
			if c.MethodFor(call.Source) == nil || c.MethodFor(call.Target) == nil {
				continue
			}
			if seenCalls[call.Key()] {
				continue
			}
			seenCalls[call.Key()] = true
			source, target := call.Source.ID(), call.Target.ID()
			c.forwardCalls[source] = append(c.forwardCalls[source], call)
			c.backwardCalls[target] = append(c.backwardCalls[target], call)
		}
	}

	for _, id := range c.order {
		class := c.classes[id]
		for _, super := range class.Supertypes {
			if _, ok := c.classes[super.ID]; ok {
				c.subclasses[super.ID] = append(c.subclasses[super.ID], class.Reference)
			}
		}
	}

	for _, id := range c.order {
		for _, m := range c.classes[id].Methods() {
			if usages := c.methodUsages(m); len(usages) > 0 {
				c.methodClassUsage[m.ID] = usages
			}
		}
	}

	forwardSeen := make(map[fieldUsageKey]bool)
	for _, id := range c.order {
		class := c.classes[id]
		for _, field := range class.Fields {
			for _, t := range field.Types {
				if t.ID == class.ID() {
					continue
				}
				target, ok := c.classes[t.ID]
				if !ok || !c.filter.AcceptClass(target.Reference) {
					continue
				}
				usage := FieldUsage{Field: field, Target: target}
				if forwardSeen[usage.key()] {
					continue
				}
				forwardSeen[usage.key()] = true
				c.forwardFieldUsage[class.ID()] = append(c.forwardFieldUsage[class.ID()], usage)
				c.backwardFieldUsage[target.ID()] = append(c.backwardFieldUsage[target.ID()], usage)
			}
		}
	}
}

// methodUsages collects the classes a method uses through its return type
// and parameters, excluding its own class.
func (c *Cache) methodUsages(m *AnalyzedMethod) []MethodClassUsage {
	var usages []MethodClassUsage
	seen := make(map[usageKey]bool)

	add := func(refs []ClassReference, reference string) {
		for _, ref := range refs {
			target, ok := c.classes[ref.ID]
			if !ok || !c.filter.AcceptClass(target.Reference) {
				continue
			}
			if target.ID() == m.Class.ID {
				continue
			}
			u := MethodClassUsage{Class: target, Method: m, Reference: reference}
			if seen[u.key()] {
				continue
			}
			seen[u.key()] = true
			usages = append(usages, u)
		}
	}

	add(m.ReturnTypes, "return")
	for _, p := range m.Parameters {
		add(p.Types, p.Name)
	}
	return usages
}

func (c *Cache) sortedIDs() []ClassID {
	ids := make([]ClassID, 0, len(c.classes))
	for id := range c.classes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Path != ids[j].Path {
			return ids[i].Path < ids[j].Path
		}
		return ids[i].Name < ids[j].Name
	})
	return ids
}

// Source returns the name of the snapshot the cache was built from.
func (c *Cache) Source() string { return c.source }

// Class returns the class with the given identity.
func (c *Cache) Class(id ClassID) (*AnalyzedClass, bool) {
	class, ok := c.classes[id]
	return class, ok
}

// Method returns the method with the given identity.
func (c *Cache) Method(id MethodID) (*AnalyzedMethod, bool) {
	class, ok := c.classes[id.Class]
	if !ok {
		return nil, false
	}
	return class.Method(id)
}

// ClassFor resolves a class reference, or returns nil.
func (c *Cache) ClassFor(ref ClassReference) *AnalyzedClass {
	return c.classes[ref.ID]
}

// MethodFor resolves a method reference, or returns nil.
func (c *Cache) MethodFor(ref MethodReference) *AnalyzedMethod {
	m, _ := c.Method(ref.ID())
	return m
}

// Classes returns every class sorted by path and name.
func (c *Cache) Classes() []*AnalyzedClass {
	ids := c.order
	if ids == nil {
		ids = c.sortedIDs()
	}
	out := make([]*AnalyzedClass, 0, len(ids))
	for _, id := range ids {
		if class, ok := c.classes[id]; ok {
			out = append(out, class)
		}
	}
	return out
}

// AllInheritedClasses returns the transitive supertypes of a class that are
// in the cache, each once, excluding the class itself. Cyclic hierarchies
// are tolerated.
func (c *Cache) AllInheritedClasses(root ClassID) []*AnalyzedClass {
	var out []*AnalyzedClass
	visited := map[ClassID]bool{root: true}
	stack := []ClassID{root}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		class, ok := c.classes[current]
		if !ok {
			continue
		}
		if current != root {
			out = append(out, class)
		}
		for _, super := range class.Supertypes {
			if !visited[super.ID] {
				visited[super.ID] = true
				stack = append(stack, super.ID)
			}
		}
	}
	return out
}

// CallsFrom returns the calls made by a method, in discovery order.
func (c *Cache) CallsFrom(id MethodID) []AnalyzeCall { return c.forwardCalls[id] }

// CallsTo returns the calls targeting a method, in discovery order.
func (c *Cache) CallsTo(id MethodID) []AnalyzeCall { return c.backwardCalls[id] }

// Subclasses returns the cached classes that list the class as a supertype.
func (c *Cache) Subclasses(id ClassID) []ClassReference { return c.subclasses[id] }

// MethodClassUsages returns the classes used by a method's signature.
func (c *Cache) MethodClassUsages(id MethodID) []MethodClassUsage { return c.methodClassUsage[id] }

// FieldUsagesFrom returns the field usages declared by a class.
func (c *Cache) FieldUsagesFrom(id ClassID) []FieldUsage { return c.forwardFieldUsage[id] }

// FieldUsagesTo returns the field usages typed with a class.
func (c *Cache) FieldUsagesTo(id ClassID) []FieldUsage { return c.backwardFieldUsage[id] }

// CacheStats summarizes the cache contents.
type CacheStats struct {
	Classes      int `json:"classes"`
	Methods      int `json:"methods"`
	Calls        int `json:"calls"`
	Subclassings int `json:"subclassings"`
	MethodUsages int `json:"method_usages"`
	FieldUsages  int `json:"field_usages"`
}

// Stats counts the cached entities and indexed relations.
func (c *Cache) Stats() CacheStats {
	s := CacheStats{Classes: len(c.classes)}
	for _, class := range c.classes {
		s.Methods += len(class.methods)
	}
	for _, calls := range c.forwardCalls {
		s.Calls += len(calls)
	}
	for _, subs := range c.subclasses {
		s.Subclassings += len(subs)
	}
	for _, usages := range c.methodClassUsage {
		s.MethodUsages += len(usages)
	}
	for _, usages := range c.forwardFieldUsage {
		s.FieldUsages += len(usages)
	}
	return s
}

// RootNode resolves a root in the cache.
func (c *Cache) RootNode(root Root) (Node, error) {
	class, ok := c.classes[root.Class]
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}
	if !root.IsMethod() {
		return ClassNode(class), nil
	}
	m, ok := class.Method(root.Method)
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}
	return MethodNode(m), nil
}

// FindNodes resolves a query to cached nodes. Accepted forms are "Type",
// "path.Type", "Type.Method", "path.Type.Method" and "Type.Method(sig)".
// Results are ordered by class and method declaration.
func (c *Cache) FindNodes(query string) []Node {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	var nodes []Node
	for _, class := range c.Classes() {
		if matchesClass(class.Reference, query) {
			nodes = append(nodes, ClassNode(class))
		}
	}
	if len(nodes) > 0 {
		return nodes
	}

	typePart, methodPart, ok := splitMethodQuery(query)
	if !ok {
		return nil
	}
	for _, class := range c.Classes() {
		if !matchesClass(class.Reference, typePart) {
			continue
		}
		for _, m := range class.Methods() {
			if m.Name == methodPart || m.ID.Signature == methodPart {
				nodes = append(nodes, MethodNode(m))
			}
		}
	}
	return nodes
}

// LocateRoot resolves a query against a source before any cache exists, so
// that the restriction filter can exempt the root. The first match in path
// order wins.
func LocateRoot(ctx context.Context, src index.Source, scope index.Scope, query string) (Root, error) {
	query = strings.TrimSpace(query)
	headers, err := src.List(ctx, scope)
	if err != nil {
		return Root{}, fmt.Errorf("listing classes of %s: %w", src.Name(), err)
	}

	for _, h := range headers {
		if matchesClass(headerReference(h), query) {
			return Root{Class: ClassID{Path: h.Path, Name: h.Name}}, nil
		}
	}

	typePart, methodPart, ok := splitMethodQuery(query)
	if !ok {
		return Root{}, fmt.Errorf("%w: %s", ErrRootNotFound, query)
	}
	for _, h := range headers {
		if !matchesClass(headerReference(h), typePart) {
			continue
		}
		info, err := src.Lookup(ctx, h.Ref())
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Root{}, cancelled(err)
			}
			return Root{}, fmt.Errorf("looking up %s.%s: %w", h.Path, h.Name, err)
		}
		if info == nil {
			continue
		}
		for _, mi := range info.Methods {
			sig := mi.Signature
			if sig == "" {
				sig = mi.Name + "()"
			}
			if mi.Name == methodPart || sig == methodPart {
				id := ClassID{Path: h.Path, Name: h.Name}
				return Root{Class: id, Method: MethodID{Class: id, Signature: sig}}, nil
			}
		}
	}
	return Root{}, fmt.Errorf("%w: %s", ErrRootNotFound, query)
}

func matchesClass(ref ClassReference, query string) bool {
	return ref.Name() == query || ref.QualifiedName() == query
}

// splitMethodQuery splits "Type.Method(args)" at the last dot before any
// parameter list.
func splitMethodQuery(query string) (typePart, methodPart string, ok bool) {
	head := query
	if i := strings.Index(query, "("); i >= 0 {
		head = query[:i]
	}
	dot := strings.LastIndex(head, ".")
	if dot <= 0 || dot == len(query)-1 {
		return "", "", false
	}
	return query[:dot], query[dot+1:], true
}
