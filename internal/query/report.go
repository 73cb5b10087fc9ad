package query

import (
	"fmt"
	"strings"

	"github.com/Benny93/reachgraph/internal/graph"
)

// Report is the presentation form of a search result.
type Report struct {
	Root     string       `json:"root"`
	EdgeMode string       `json:"edge_mode"`
	Forward  int          `json:"forward_depth"`
	Backward int          `json:"backward_depth"`
	Classes  int          `json:"cached_classes"`
	Chains   [][]EdgeView `json:"chains"`
}

// EdgeView describes one squashed edge.
type EdgeView struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Direction string   `json:"direction"`
	Contexts  []string `json:"contexts,omitempty"`
	Squashed  int      `json:"squashed,omitempty"`
}

// NewReport converts a result. Empty chains are skipped.
func NewReport(res *Result) Report {
	r := Report{
		Root:     res.Root.Name(),
		EdgeMode: res.Request.EdgeMode.String(),
		Forward:  res.Request.ForwardDepth,
		Backward: res.Request.BackwardDepth,
		Classes:  res.Cache.Classes,
		Chains:   [][]EdgeView{},
	}
	for _, chain := range res.Chains.Chains() {
		if len(chain) == 0 {
			continue
		}
		views := make([]EdgeView, len(chain))
		for i, e := range chain {
			views[i] = NewEdgeView(e)
		}
		r.Chains = append(r.Chains, views)
	}
	return r
}

// NewEdgeView describes a squashed edge. Squashed counts the hidden nodes.
func NewEdgeView(e *graph.SquashedEdge) EdgeView {
	v := EdgeView{
		From:      nodeName(e.From()),
		To:        nodeName(e.To()),
		Direction: e.Direction().String(),
		Squashed:  e.Squashed(),
	}
	for _, c := range e.Contexts() {
		label := c.Kind.String()
		if l := c.Label(); l != "" {
			label += " " + l
		}
		v.Contexts = append(v.Contexts, label)
	}
	return v
}

func nodeName(n graph.Node) string {
	if n.IsZero() {
		return "?"
	}
	return n.Name()
}

// String renders the edge as "From -> To [contexts]".
func (v EdgeView) String() string {
	var b strings.Builder
	b.WriteString(v.From)
	b.WriteString(" -> ")
	b.WriteString(v.To)
	if len(v.Contexts) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(v.Contexts, ", "))
	}
	if v.Squashed > 0 {
		fmt.Fprintf(&b, " (%d hidden)", v.Squashed)
	}
	return b.String()
}

// Text renders the report as plain text, one chain per block.
func (r Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Root: %s\n", r.Root)
	fmt.Fprintf(&b, "Mode: %s, forward %d, backward %d, %d classes cached\n",
		r.EdgeMode, r.Forward, r.Backward, r.Classes)

	if len(r.Chains) == 0 {
		b.WriteString("\nNo chains found.\n")
		return b.String()
	}
	for i, chain := range r.Chains {
		fmt.Fprintf(&b, "\nChain %d:\n", i+1)
		for _, e := range chain {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	return b.String()
}

// NodeView describes a candidate root.
type NodeView struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Class string `json:"class"`
	File  string `json:"file,omitempty"`
}

// NewNodeView describes a node.
func NewNodeView(n graph.Node) NodeView {
	ref := n.ClassReference()
	return NodeView{
		Name:  n.Name(),
		ID:    n.String(),
		Kind:  n.Kind().String(),
		Class: ref.QualifiedName(),
		File:  ref.FilePath,
	}
}
