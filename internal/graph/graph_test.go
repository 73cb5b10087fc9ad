package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClass(name string) *AnalyzedClass {
	return &AnalyzedClass{Reference: ClassReference{ID: ClassID{Path: testPkg, Name: name}, Kind: KindClass}}
}

func testMethod(class *AnalyzedClass, name string) *AnalyzedMethod {
	m := &AnalyzedMethod{
		ID:         MethodID{Class: class.ID(), Signature: name + "()"},
		Name:       name,
		Class:      class.Reference,
		Visibility: VisibilityPublic,
	}
	class.addMethod(m)
	return m
}

func TestNode(t *testing.T) {
	t.Parallel()

	a := testClass("A")
	run := testMethod(a, "Run")

	t.Run("ClassVariant", func(t *testing.T) {
		t.Parallel()
		n := ClassNode(a)

		assert.Equal(t, NodeClass, n.Kind())
		assert.Same(t, a, n.Class())
		assert.Nil(t, n.Method())
		assert.Equal(t, "A", n.Name())
		assert.Equal(t, testPkg+".A", n.String())
	})

	t.Run("MethodVariant", func(t *testing.T) {
		t.Parallel()
		n := MethodNode(run)

		assert.Equal(t, NodeMethod, n.Kind())
		assert.Same(t, run, n.Method())
		assert.Equal(t, "A.Run", n.Name())
		assert.Equal(t, a.Reference, n.ClassReference())
	})

	t.Run("KeysDistinguishKinds", func(t *testing.T) {
		t.Parallel()
		assert.NotEqual(t, ClassNode(a).Key(), MethodNode(run).Key())
		assert.True(t, ClassNode(a).Equal(ClassNode(testClass("A"))))
	})

	t.Run("Zero", func(t *testing.T) {
		t.Parallel()
		var n Node
		assert.True(t, n.IsZero())
		assert.Equal(t, NodeKey{}, n.Key())
	})
}

func TestDirectedEdge(t *testing.T) {
	t.Parallel()

	a, b := testClass("A"), testClass("B")
	ma, mb := testMethod(a, "Run"), testMethod(b, "Serve")

	t.Run("Next", func(t *testing.T) {
		t.Parallel()
		e := &DirectedEdge{From: MethodNode(ma), To: MethodNode(mb)}

		assert.True(t, e.Next(Forward).Equal(MethodNode(mb)))
		assert.True(t, e.Next(Backward).Equal(MethodNode(ma)))
	})

	t.Run("KeyIgnoresContexts", func(t *testing.T) {
		t.Parallel()
		one := &DirectedEdge{From: ClassNode(a), To: ClassNode(b), Contexts: []EdgeContext{InheritanceContext(ContextImplementation)}}
		two := &DirectedEdge{From: ClassNode(a), To: ClassNode(b)}

		assert.Equal(t, one.Key(), two.Key())
	})

	t.Run("UniqueEdgesMergeContexts", func(t *testing.T) {
		t.Parallel()
		call1 := AnalyzeCall{Source: ma.Reference(), Target: mb.Reference(), Sequence: 0}
		call2 := AnalyzeCall{Source: ma.Reference(), Target: mb.Reference(), Sequence: 3}
		edges := uniqueEdges([]*DirectedEdge{
			{From: MethodNode(ma), To: MethodNode(mb), Contexts: []EdgeContext{CallContext(call1)}},
			{From: MethodNode(mb), To: MethodNode(ma), Contexts: []EdgeContext{CallContext(call1)}},
			{From: MethodNode(ma), To: MethodNode(mb), Contexts: []EdgeContext{CallContext(call2)}},
		})

		require.Len(t, edges, 2)
		assert.Len(t, edges[0].Contexts, 2)
		assert.Equal(t, "0", edges[0].Contexts[0].Label())
		assert.Equal(t, "3", edges[0].Contexts[1].Label())
		assert.Len(t, edges[1].Contexts, 1)
	})
}

func TestEdgeContext(t *testing.T) {
	t.Parallel()

	a, b := testClass("A"), testClass("B")
	ma := testMethod(a, "Run")

	t.Run("SyntheticCallHasNoLabel", func(t *testing.T) {
		t.Parallel()
		c := CallContext(AnalyzeCall{Source: ma.Reference(), Target: ma.Reference(), Sequence: SyntheticSequence})
		assert.Equal(t, "", c.Label())
	})

	t.Run("UsageLabel", func(t *testing.T) {
		t.Parallel()
		c := UsageContext(MethodClassUsage{Class: b, Method: ma, Reference: "return"})
		assert.Equal(t, "return", c.Label())
		assert.False(t, c.IsInheritance())
	})

	t.Run("FieldLabelCarriesCardinality", func(t *testing.T) {
		t.Parallel()
		field := &AnalyzedField{Variable: Variable{Name: "items", Collection: true}, Class: a.Reference}
		c := FieldContext(FieldUsage{Field: field, Target: b})
		assert.Equal(t, "items [0..*]", c.Label())
	})

	t.Run("Inheritance", func(t *testing.T) {
		t.Parallel()
		assert.True(t, InheritanceContext(ContextSubClass).IsInheritance())
		assert.Equal(t, "subclass", ContextSubClass.String())
	})
}

func TestDirection(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Backward, Forward.Flip())
	assert.Equal(t, Forward, Backward.Flip())
	assert.Equal(t, "backward", Backward.String())
}
