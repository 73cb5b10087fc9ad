package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// EdgeMode selects the relation kinds a search navigates.
type EdgeMode int

const (
	// TypesOnly navigates inheritance and field usage.
	TypesOnly EdgeMode = iota
	// MethodsOnly navigates calls.
	MethodsOnly
	// TypesAndMethods navigates every relation.
	TypesAndMethods
	// MethodsAndDirectTypeUsage navigates calls plus the classes used by
	// visible methods' signatures.
	MethodsAndDirectTypeUsage
)

var edgeModeNames = map[EdgeMode]string{
	TypesOnly:                 "TypesOnly",
	MethodsOnly:               "MethodsOnly",
	TypesAndMethods:           "TypesAndMethods",
	MethodsAndDirectTypeUsage: "MethodsAndDirectTypeUsage",
}

// String implements fmt.Stringer.
func (m EdgeMode) String() string {
	if name, ok := edgeModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("EdgeMode(%d)", int(m))
}

// ParseEdgeMode parses an edge mode name, case-insensitively.
func ParseEdgeMode(value string) (EdgeMode, error) {
	for mode, name := range edgeModeNames {
		if strings.EqualFold(name, strings.TrimSpace(value)) {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEdgeMode, value)
}

// MarshalText implements encoding.TextMarshaler.
func (m EdgeMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *EdgeMode) UnmarshalText(text []byte) error {
	parsed, err := ParseEdgeMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// cancelCheckInterval is the number of loop iterations between context polls.
const cancelCheckInterval = 256

// FindContext explores one direction from one root. It holds private
// mutable state and must not be shared between goroutines.
type FindContext struct {
	cache     *Cache
	direction Direction
	filter    TraversalFilter
	depth     int
	mode      EdgeMode
}

// NewFindContext creates a search context.
func NewFindContext(cache *Cache, direction Direction, filter TraversalFilter, depth int, mode EdgeMode) *FindContext {
	if filter == nil {
		filter = AcceptAll
	}
	return &FindContext{cache: cache, direction: direction, filter: filter, depth: depth, mode: mode}
}

// Find walks the graph depth first from root and returns one chain per
// terminated branch.
//
// A branch terminates when its frontier node has no unexplored neighbours
// or when its squashed chain holds depth complete edges. Each node is
// expanded at most once and each edge processed at most once, so cycles
// terminate. A depth of zero or less, or a root without neighbours, yields
// a single empty chain.
func (f *FindContext) Find(ctx context.Context, root Node) ([]Chain, error) {
	if root.IsZero() {
		return nil, ErrRootNotFound
	}
	if f.depth <= 0 {
		return []Chain{{}}, nil
	}

	var (
		chains    []Chain
		chain     []*DirectedEdge
		squashed  []*SquashedEdge
		expanded  = make(map[NodeKey]bool)
		processed = make(map[EdgeKey]bool)
		stack     = f.expand(root, expanded, processed)
	)
	if len(stack) == 0 {
		return []Chain{{}}, nil
	}

	for iteration := 0; len(stack) > 0; iteration++ {
		if iteration%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, cancelled(err)
			}
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		processed[current.Key()] = true

		chain, squashed = f.rollback(root.Key(), current, chain, squashed)
		chain = append(chain, current)
		squashed = appendSquashed(squashed, current, f.filter, f.direction)

		more := f.expand(current.Next(f.direction), expanded, processed)

		if len(more) == 0 || countComplete(squashed) >= f.depth {
			chains = append(chains, completeSegments(squashed, f.direction))
			continue
		}
		stack = append(stack, more...)
	}

	return chains, nil
}

// rollback cuts the current chain back to the edge that leads to the source
// of the popped edge. Sibling branches share the stack, so the popped edge
// may continue an earlier point of the path. The squashed view is rebuilt
// from the kept raw edges because one squashed edge can span several.
// Edges leaving the root always start a fresh chain, even when the previous
// branch ended on an edge back into the root.
func (f *FindContext) rollback(root NodeKey, current *DirectedEdge, chain []*DirectedEdge, squashed []*SquashedEdge) ([]*DirectedEdge, []*SquashedEdge) {
	source := current.Next(f.direction.Flip()).Key()

	keep := 0
	if source != root {
		for i, e := range chain {
			if e.Next(f.direction).Key() == source {
				keep = i + 1
				break
			}
		}
	}
	if keep == len(chain) {
		return chain, squashed
	}

	chain = chain[:keep]
	squashed = squashed[:0]
	for _, e := range chain {
		squashed = appendSquashed(squashed, e, f.filter, f.direction)
	}
	return chain, squashed
}

// expand returns the unprocessed neighbour edges of a node, or nothing if
// the node was expanded before.
func (f *FindContext) expand(node Node, expanded map[NodeKey]bool, processed map[EdgeKey]bool) []*DirectedEdge {
	if expanded[node.Key()] {
		return nil
	}
	expanded[node.Key()] = true

	var more []*DirectedEdge
	for _, e := range f.navigate(node) {
		if processed[e.Key()] {
			continue
		}
		if f.mode == MethodsAndDirectTypeUsage && e.HasContext(ContextMethodClassUsage) &&
			!(f.filter.Accept(node) && f.filter.Accept(e.Next(f.direction))) {
			continue
		}
		more = append(more, e)
	}
	return more
}

// navigate returns the deduplicated neighbour edges of a node.
func (f *FindContext) navigate(n Node) []*DirectedEdge {
	var edges []*DirectedEdge
	switch n.Kind() {
	case NodeMethod:
		m := n.Method()
		edges = append(edges, f.calls(m)...)
		edges = append(edges, f.classUsages(m)...)
	case NodeClass:
		c := n.Class()
		edges = append(edges, f.fieldEdges(c)...)
		edges = append(edges, f.superTypeEdges(c)...)
		edges = append(edges, f.subTypeEdges(c)...)
	}
	return uniqueEdges(edges)
}

// calls emits call edges in reverse declaration order. The stack is LIFO,
// so the first declared call is explored first.
func (f *FindContext) calls(m *AnalyzedMethod) []*DirectedEdge {
	if f.mode == TypesOnly {
		return nil
	}

	calls := f.cache.forwardCalls[m.ID]
	if f.direction == Backward {
		calls = f.cache.backwardCalls[m.ID]
	}

	edges := make([]*DirectedEdge, 0, len(calls))
	for i := len(calls) - 1; i >= 0; i-- {
		call := calls[i]
		source := f.cache.MethodFor(call.Source)
		target := f.cache.MethodFor(call.Target)
		if source == nil || target == nil {
			continue
		}
		edges = append(edges, &DirectedEdge{
			From:     MethodNode(source),
			To:       MethodNode(target),
			Contexts: []EdgeContext{CallContext(call)},
		})
	}
	return edges
}

// classUsages links a method with the classes of its signature. Backward
// searches see the same relation inverted.
func (f *FindContext) classUsages(m *AnalyzedMethod) []*DirectedEdge {
	if f.mode == MethodsOnly {
		return nil
	}

	var (
		edges   []*DirectedEdge
		byClass = make(map[ClassID]*DirectedEdge)
	)
	for _, u := range f.cache.methodClassUsage[m.ID] {
		if e, ok := byClass[u.Class.ID()]; ok {
			e.Contexts = append(e.Contexts, UsageContext(u))
			continue
		}
		e := &DirectedEdge{From: MethodNode(m), To: ClassNode(u.Class), Contexts: []EdgeContext{UsageContext(u)}}
		if f.direction == Backward {
			e.From, e.To = e.To, e.From
		}
		byClass[u.Class.ID()] = e
		edges = append(edges, e)
	}
	return edges
}

func (f *FindContext) fieldEdges(c *AnalyzedClass) []*DirectedEdge {
	if f.mode == MethodsOnly {
		return nil
	}

	var (
		edges []*DirectedEdge
		byEnd = make(map[ClassID]*DirectedEdge)
	)
	if f.direction == Forward {
		for _, u := range f.cache.forwardFieldUsage[c.ID()] {
			if e, ok := byEnd[u.Target.ID()]; ok {
				e.Contexts = append(e.Contexts, FieldContext(u))
				continue
			}
			e := &DirectedEdge{From: ClassNode(c), To: ClassNode(u.Target), Contexts: []EdgeContext{FieldContext(u)}}
			byEnd[u.Target.ID()] = e
			edges = append(edges, e)
		}
		return edges
	}

	for _, u := range f.cache.backwardFieldUsage[c.ID()] {
		owner, ok := f.cache.classes[u.Field.Class.ID]
		if !ok {
			continue
		}
		if e, ok := byEnd[owner.ID()]; ok {
			e.Contexts = append(e.Contexts, FieldContext(u))
			continue
		}
		e := &DirectedEdge{From: ClassNode(owner), To: ClassNode(c), Contexts: []EdgeContext{FieldContext(u)}}
		byEnd[owner.ID()] = e
		edges = append(edges, e)
	}
	return edges
}

func (f *FindContext) superTypeEdges(c *AnalyzedClass) []*DirectedEdge {
	if f.mode == MethodsOnly {
		return nil
	}

	var edges []*DirectedEdge
	for _, ref := range c.Supertypes {
		super, ok := f.cache.classes[ref.ID]
		if !ok {
			continue
		}
		e := &DirectedEdge{From: ClassNode(c), To: ClassNode(super), Contexts: []EdgeContext{InheritanceContext(ContextImplementation)}}
		if f.direction == Backward {
			e.From, e.To = e.To, e.From
		}
		edges = append(edges, e)
	}
	return edges
}

func (f *FindContext) subTypeEdges(c *AnalyzedClass) []*DirectedEdge {
	if f.mode == MethodsOnly {
		return nil
	}

	var edges []*DirectedEdge
	for _, ref := range f.cache.subclasses[c.ID()] {
		sub, ok := f.cache.classes[ref.ID]
		if !ok {
			continue
		}
		e := &DirectedEdge{From: ClassNode(c), To: ClassNode(sub), Contexts: []EdgeContext{InheritanceContext(ContextSubClass)}}
		if f.direction == Backward {
			e.From, e.To = e.To, e.From
		}
		edges = append(edges, e)
	}
	return edges
}

// SearchRequest describes a search over a cache. A direction with depth
// zero is skipped.
type SearchRequest struct {
	Roots         []Node
	ForwardDepth  int
	BackwardDepth int
	EdgeMode      EdgeMode
}

// Search runs one FindContext per root and direction concurrently and
// collects the distinct chains. Chains are ordered by root, forward before
// backward, then discovery order.
func (c *Cache) Search(ctx context.Context, filter TraversalFilter, req SearchRequest) (result *ChainSet, err error) {
	ctx, span := startSearchSpan(ctx, req)
	start := time.Now()
	defer func() {
		if result != nil {
			recordSearchMetrics(ctx, req.EdgeMode, time.Since(start), result.Len())
		}
		endSpan(span, err)
	}()

	for _, root := range req.Roots {
		if root.IsZero() {
			return nil, ErrRootNotFound
		}
	}

	found := make([][]Chain, 2*len(req.Roots))
	g, gctx := errgroup.WithContext(ctx)

	for i, root := range req.Roots {
		if req.ForwardDepth > 0 {
			g.Go(func() error {
				chains, err := NewFindContext(c, Forward, filter, req.ForwardDepth, req.EdgeMode).Find(gctx, root)
				found[2*i] = chains
				return err
			})
		}
		if req.BackwardDepth > 0 {
			g.Go(func() error {
				chains, err := NewFindContext(c, Backward, filter, req.BackwardDepth, req.EdgeMode).Find(gctx, root)
				found[2*i+1] = chains
				return err
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	set := NewChainSet()
	for _, chains := range found {
		set.AddAll(chains)
	}

	c.logger.Debug("search finished",
		"roots", len(req.Roots),
		"mode", req.EdgeMode.String(),
		"chains", set.Len(),
		"duration", time.Since(start),
	)
	return set, nil
}
