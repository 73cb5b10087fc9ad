package graph

import (
	"strconv"
)

// NodeKind tags the two node variants.
type NodeKind uint8

const (
	NodeClass NodeKind = iota + 1
	NodeMethod
)

// String implements fmt.Stringer.
func (k NodeKind) String() string {
	switch k {
	case NodeClass:
		return "class"
	case NodeMethod:
		return "method"
	default:
		return "unknown"
	}
}

// Node is a class or a method participating in the graph.
//
// It is a closed variant: exactly one of the payloads is set, selected by
// Kind. Code that branches on node kind switches over Kind.
type Node struct {
	kind   NodeKind
	class  *AnalyzedClass
	method *AnalyzedMethod
}

// ClassNode wraps a class.
func ClassNode(c *AnalyzedClass) Node {
	return Node{kind: NodeClass, class: c}
}

// MethodNode wraps a method.
func MethodNode(m *AnalyzedMethod) Node {
	return Node{kind: NodeMethod, method: m}
}

// Kind returns the variant tag.
func (n Node) Kind() NodeKind { return n.kind }

// Class returns the class payload, nil for method nodes.
func (n Node) Class() *AnalyzedClass { return n.class }

// Method returns the method payload, nil for class nodes.
func (n Node) Method() *AnalyzedMethod { return n.method }

// IsZero reports whether the node is unset.
func (n Node) IsZero() bool { return n.kind == 0 }

// NodeKey is the comparable identity of a node.
type NodeKey struct {
	Kind   NodeKind
	Class  ClassID
	Method MethodID
}

// Key returns the identity of the node.
func (n Node) Key() NodeKey {
	switch n.kind {
	case NodeClass:
		return NodeKey{Kind: NodeClass, Class: n.class.ID()}
	case NodeMethod:
		return NodeKey{Kind: NodeMethod, Class: n.method.Class.ID, Method: n.method.ID}
	default:
		return NodeKey{}
	}
}

// Equal compares node identities.
func (n Node) Equal(other Node) bool {
	return n.Key() == other.Key()
}

// ClassReference returns the class itself or the class declaring the method.
func (n Node) ClassReference() ClassReference {
	switch n.kind {
	case NodeClass:
		return n.class.Reference
	case NodeMethod:
		return n.method.Class
	default:
		return ClassReference{}
	}
}

// Name returns a short display name: "Class" or "Class.method".
func (n Node) Name() string {
	switch n.kind {
	case NodeClass:
		return n.class.Reference.Name()
	case NodeMethod:
		return n.method.Class.Name() + "." + n.method.Name
	default:
		return ""
	}
}

// String returns the qualified identity of the node.
func (n Node) String() string {
	switch n.kind {
	case NodeClass:
		return n.class.ID().QualifiedName()
	case NodeMethod:
		return n.method.ID.String()
	default:
		return "<none>"
	}
}

// ContextKind tags the edge context variants.
type ContextKind uint8

const (
	ContextCall ContextKind = iota + 1
	ContextMethodClassUsage
	ContextFieldUsage
	ContextImplementation
	ContextSubClass
)

// String implements fmt.Stringer.
func (k ContextKind) String() string {
	switch k {
	case ContextCall:
		return "call"
	case ContextMethodClassUsage:
		return "method_class_usage"
	case ContextFieldUsage:
		return "field_usage"
	case ContextImplementation:
		return "implementation"
	case ContextSubClass:
		return "subclass"
	default:
		return "unknown"
	}
}

// MethodClassUsage records that a method uses a class through its return
// type or a parameter. Reference is "return" or the parameter name.
type MethodClassUsage struct {
	Class     *AnalyzedClass
	Method    *AnalyzedMethod
	Reference string
}

type usageKey struct {
	Class     ClassID
	Method    MethodID
	Reference string
}

func (u MethodClassUsage) key() usageKey {
	return usageKey{Class: u.Class.ID(), Method: u.Method.ID, Reference: u.Reference}
}

// FieldUsage records that a field is typed with another class.
type FieldUsage struct {
	Field  *AnalyzedField
	Target *AnalyzedClass
}

type fieldUsageKey struct {
	Field  FieldID
	Target ClassID
}

func (f FieldUsage) key() fieldUsageKey {
	return fieldUsageKey{Field: f.Field.ID(), Target: f.Target.ID()}
}

// EdgeContext is the reason an edge exists. It is a closed variant selected
// by Kind; inheritance contexts carry no payload.
type EdgeContext struct {
	Kind  ContextKind
	Call  *AnalyzeCall
	Usage *MethodClassUsage
	Field *FieldUsage
}

// CallContext wraps a call.
func CallContext(c AnalyzeCall) EdgeContext {
	return EdgeContext{Kind: ContextCall, Call: &c}
}

// UsageContext wraps a method class usage.
func UsageContext(u MethodClassUsage) EdgeContext {
	return EdgeContext{Kind: ContextMethodClassUsage, Usage: &u}
}

// FieldContext wraps a field usage.
func FieldContext(f FieldUsage) EdgeContext {
	return EdgeContext{Kind: ContextFieldUsage, Field: &f}
}

// InheritanceContext returns an implementation or subclass context.
func InheritanceContext(kind ContextKind) EdgeContext {
	return EdgeContext{Kind: kind}
}

// IsInheritance reports whether the context is an inheritance relation.
func (c EdgeContext) IsInheritance() bool {
	return c.Kind == ContextImplementation || c.Kind == ContextSubClass
}

// Label returns the rendering label of the context: the call sequence, the
// usage reference, or the field name with its cardinality.
func (c EdgeContext) Label() string {
	switch c.Kind {
	case ContextCall:
		if c.Call.Synthetic() {
			return ""
		}
		return strconv.Itoa(c.Call.Sequence)
	case ContextMethodClassUsage:
		return c.Usage.Reference
	case ContextFieldUsage:
		return c.Field.Field.Name + " " + c.Field.Field.Cardinality().String()
	default:
		return ""
	}
}

// Direction is the traversal direction of a search.
type Direction uint8

const (
	Forward Direction = iota
	Backward
)

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Forward {
		return Backward
	}
	return Forward
}

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// DirectedEdge connects two nodes. Equality is defined on (From, To) only:
// parallel relations between the same pair collapse into one edge with
// merged contexts.
type DirectedEdge struct {
	From     Node
	To       Node
	Contexts []EdgeContext
}

// EdgeKey is the comparable identity of a directed edge.
type EdgeKey struct {
	From NodeKey
	To   NodeKey
}

// Key returns the identity of the edge.
func (e *DirectedEdge) Key() EdgeKey {
	return EdgeKey{From: e.From.Key(), To: e.To.Key()}
}

// Next returns the node reached when walking the edge in the given direction.
func (e *DirectedEdge) Next(d Direction) Node {
	if d == Backward {
		return e.From
	}
	return e.To
}

// HasContext reports whether any context is of the given kind.
func (e *DirectedEdge) HasContext(kind ContextKind) bool {
	for _, c := range e.Contexts {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// String returns "from->to".
func (e *DirectedEdge) String() string {
	return e.From.String() + "->" + e.To.String()
}

// uniqueEdges merges edges sharing (From, To) into one edge carrying all
// their contexts. First-seen order is kept.
func uniqueEdges(edges []*DirectedEdge) []*DirectedEdge {
	if len(edges) < 2 {
		return edges
	}

	byKey := make(map[EdgeKey]*DirectedEdge, len(edges))
	out := make([]*DirectedEdge, 0, len(edges))
	for _, e := range edges {
		key := e.Key()
		if existing, ok := byKey[key]; ok {
			existing.Contexts = append(existing.Contexts, e.Contexts...)
			continue
		}
		merged := &DirectedEdge{From: e.From, To: e.To, Contexts: append([]EdgeContext(nil), e.Contexts...)}
		byKey[key] = merged
		out = append(out, merged)
	}
	return out
}
