package graph

import (
	"strings"
)

// SquashedEdge is a visible edge between two visible nodes. It may stand for
// several raw edges whose inner nodes were hidden by the traversal filter.
//
// The origin side is visible from construction on. The far side is set once
// a pushed raw edge reaches a visible node; until then the edge is
// incomplete and keeps absorbing raw edges.
type SquashedEdge struct {
	direction Direction
	edges     []*DirectedEdge
	origin    Node
	reached   Node
}

func newSquashedEdge(edge *DirectedEdge, filter TraversalFilter, direction Direction) *SquashedEdge {
	s := &SquashedEdge{
		direction: direction,
		origin:    edge.Next(direction.Flip()),
	}
	s.push(edge, filter)
	return s
}

func (s *SquashedEdge) push(edge *DirectedEdge, filter TraversalFilter) {
	s.edges = append(s.edges, edge)
	next := edge.Next(s.direction)
	if filter.Accept(next) {
		s.reached = next
	} else {
		s.reached = Node{}
	}
}

// Direction returns the direction the edge was discovered in.
func (s *SquashedEdge) Direction() Direction { return s.direction }

// IsComplete reports whether both endpoints are visible.
func (s *SquashedEdge) IsComplete() bool { return !s.reached.IsZero() }

// From returns the source endpoint in natural orientation. It is the zero
// Node for an incomplete backward edge.
func (s *SquashedEdge) From() Node {
	if s.direction == Forward {
		return s.origin
	}
	return s.reached
}

// To returns the target endpoint in natural orientation. It is the zero
// Node for an incomplete forward edge.
func (s *SquashedEdge) To() Node {
	if s.direction == Forward {
		return s.reached
	}
	return s.origin
}

// Edges returns the squashed raw edges in natural source to target order.
func (s *SquashedEdge) Edges() []*DirectedEdge {
	out := make([]*DirectedEdge, len(s.edges))
	if s.direction == Forward {
		copy(out, s.edges)
		return out
	}
	for i, e := range s.edges {
		out[len(s.edges)-1-i] = e
	}
	return out
}

// Squashed returns the number of hidden nodes inside the edge.
func (s *SquashedEdge) Squashed() int {
	return len(s.edges) - 1
}

// Nodes returns the visible endpoints that are set.
func (s *SquashedEdge) Nodes() []Node {
	nodes := make([]Node, 0, 2)
	if from := s.From(); !from.IsZero() {
		nodes = append(nodes, from)
	}
	if to := s.To(); !to.IsZero() {
		nodes = append(nodes, to)
	}
	return nodes
}

// Contexts returns the contexts of all raw edges in natural order.
func (s *SquashedEdge) Contexts() []EdgeContext {
	var out []EdgeContext
	for _, e := range s.Edges() {
		out = append(out, e.Contexts...)
	}
	return out
}

// HasContext reports whether any raw edge carries a context of the given kind.
func (s *SquashedEdge) HasContext(kind ContextKind) bool {
	for _, e := range s.edges {
		if e.HasContext(kind) {
			return true
		}
	}
	return false
}

// String returns "from->to" in natural orientation.
func (s *SquashedEdge) String() string {
	return s.From().String() + "->" + s.To().String()
}

// Chain is an ordered list of squashed edges from a root outward, or inward
// for backward searches. Edges are always in natural orientation.
type Chain []*SquashedEdge

// String joins the edges of the chain.
func (c Chain) String() string {
	parts := make([]string, len(c))
	for i, e := range c {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// appendSquashed extends the squashed view of a chain with a raw edge.
func appendSquashed(chain []*SquashedEdge, edge *DirectedEdge, filter TraversalFilter, direction Direction) []*SquashedEdge {
	if len(chain) == 0 || chain[len(chain)-1].IsComplete() {
		return append(chain, newSquashedEdge(edge, filter, direction))
	}
	chain[len(chain)-1].push(edge, filter)
	return chain
}

// completeSegments snapshots the complete edges of a squashed chain in
// natural order.
func completeSegments(chain []*SquashedEdge, direction Direction) Chain {
	out := make(Chain, 0, len(chain))
	for _, s := range chain {
		if s.IsComplete() {
			out = append(out, s)
		}
	}
	if direction == Backward {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

func countComplete(chain []*SquashedEdge) int {
	n := 0
	for _, s := range chain {
		if s.IsComplete() {
			n++
		}
	}
	return n
}

// ChainSet is an insertion-ordered set of chains. Two chains are equal when
// their edges connect the same endpoints in the same order.
type ChainSet struct {
	keys   map[string]struct{}
	chains []Chain
}

// NewChainSet creates an empty set.
func NewChainSet() *ChainSet {
	return &ChainSet{keys: make(map[string]struct{})}
}

// Add inserts a chain and reports whether it was new.
func (s *ChainSet) Add(c Chain) bool {
	key := c.String()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	s.chains = append(s.chains, c)
	return true
}

// AddAll inserts every chain.
func (s *ChainSet) AddAll(chains []Chain) {
	for _, c := range chains {
		s.Add(c)
	}
}

// Len returns the number of distinct chains.
func (s *ChainSet) Len() int { return len(s.chains) }

// Chains returns the chains in insertion order.
func (s *ChainSet) Chains() []Chain {
	out := make([]Chain, len(s.chains))
	copy(out, s.chains)
	return out
}

// Contains reports whether an equal chain is in the set.
func (s *ChainSet) Contains(c Chain) bool {
	_, ok := s.keys[c.String()]
	return ok
}

// Edges returns the distinct squashed edges of all chains, first seen first.
func (s *ChainSet) Edges() []*SquashedEdge {
	seen := make(map[string]bool)
	var out []*SquashedEdge
	for _, c := range s.chains {
		for _, e := range c {
			key := e.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, e)
		}
	}
	return out
}

// Nodes returns the distinct visible nodes of all chains, first seen first.
func (s *ChainSet) Nodes() []Node {
	seen := make(map[NodeKey]bool)
	var out []Node
	for _, e := range s.Edges() {
		for _, n := range e.Nodes() {
			if seen[n.Key()] {
				continue
			}
			seen[n.Key()] = true
			out = append(out, n)
		}
	}
	return out
}
