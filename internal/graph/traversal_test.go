package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphTraversalFilter(t *testing.T) {
	t.Parallel()

	classification := testClassification(t)

	order := testClass("Order")
	run := testMethod(order, "Run")
	helper := testMethod(order, "helper")
	helper.Visibility = VisibilityPackageLocal

	dto := testClass("OrderDto")
	mapper := testClass("OrderMapper")
	handler := testClass("OrderHandler")
	store := &AnalyzedClass{Reference: classRef("Store", KindInterface)}
	save := testMethod(store, "Save")

	t.Run("DefaultsShowEverything", func(t *testing.T) {
		t.Parallel()
		f, err := NewTraversalFilter(classification, TraversalOptions{})
		require.NoError(t, err)

		for _, n := range []Node{ClassNode(order), MethodNode(helper), ClassNode(dto), MethodNode(save)} {
			assert.True(t, f.Accept(n), n.String())
		}
	})

	t.Run("HideRules", func(t *testing.T) {
		t.Parallel()
		f, err := NewTraversalFilter(classification, TraversalOptions{
			HideDataStructures: true,
			HideMappings:       true,
			HidePrivateMethods: true,
			HideInterfaceCalls: true,
		})
		require.NoError(t, err)

		assert.True(t, f.Accept(ClassNode(order)))
		assert.True(t, f.Accept(MethodNode(run)))
		assert.False(t, f.Accept(MethodNode(helper)))
		assert.False(t, f.Accept(ClassNode(dto)))
		assert.False(t, f.Accept(ClassNode(mapper)))
		assert.False(t, f.Accept(ClassNode(store)))
		assert.False(t, f.Accept(MethodNode(save)))
	})

	t.Run("MethodNeedsVisibleClass", func(t *testing.T) {
		t.Parallel()
		f, err := NewTraversalFilter(classification, TraversalOptions{ClassNameExclude: "Order"})
		require.NoError(t, err)

		assert.False(t, f.Accept(MethodNode(run)))
	})

	t.Run("MethodNamePatterns", func(t *testing.T) {
		t.Parallel()
		f, err := NewTraversalFilter(classification, TraversalOptions{MethodNameInclude: "R*"})
		require.NoError(t, err)

		assert.True(t, f.Accept(MethodNode(run)))
		assert.False(t, f.Accept(MethodNode(helper)))
		assert.True(t, f.Accept(ClassNode(dto)), "method patterns do not apply to classes")
	})

	t.Run("OnlyEntryPoints", func(t *testing.T) {
		t.Parallel()
		f, err := NewTraversalFilter(classification, TraversalOptions{OnlyShowApplicationEntryPoints: true}, ClassNode(order))
		require.NoError(t, err)

		assert.True(t, f.Accept(ClassNode(handler)))
		assert.True(t, f.Accept(ClassNode(order)), "roots stay visible")
		assert.False(t, f.Accept(ClassNode(dto)))
	})

	t.Run("RootsAlwaysVisible", func(t *testing.T) {
		t.Parallel()
		f, err := NewTraversalFilter(classification, TraversalOptions{HidePrivateMethods: true, ClassNameExclude: "*"}, MethodNode(helper))
		require.NoError(t, err)

		assert.True(t, f.Accept(MethodNode(helper)))
		assert.False(t, f.Accept(ClassNode(order)))
	})

	t.Run("ZeroNode", func(t *testing.T) {
		t.Parallel()
		f, err := NewTraversalFilter(nil, TraversalOptions{})
		require.NoError(t, err)
		assert.False(t, f.Accept(Node{}))
	})

	t.Run("InvalidPattern", func(t *testing.T) {
		t.Parallel()
		_, err := NewTraversalFilter(nil, TraversalOptions{MethodNameExclude: "a(b"})
		assert.ErrorIs(t, err, ErrInvalidPattern)
	})
}
