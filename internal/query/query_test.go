package query

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/reachgraph/internal/config"
	"github.com/Benny93/reachgraph/internal/graph"
	"github.com/Benny93/reachgraph/internal/index"
)

const shop = "example.com/shop"

func shopSource() *index.MemorySource {
	ref := func(name string) index.ClassRef { return index.ClassRef{Path: shop, Name: name, Kind: index.KindClass} }
	run := func(name string) index.MethodRef { return index.MethodRef{Class: ref(name), Signature: "Run()"} }
	class := func(name string, calls ...index.MethodRef) index.ClassInfo {
		info := index.ClassInfo{ClassHeader: index.ClassHeader{Path: shop, Name: name, Kind: index.KindClass, FilePath: name + ".go"}}
		mi := index.MethodInfo{Name: "Run", Signature: "Run()", Exported: true}
		for i, c := range calls {
			mi.Calls = append(mi.Calls, index.CallInfo{Target: c, Sequence: i})
		}
		info.Methods = []index.MethodInfo{mi}
		return info
	}

	return index.NewMemorySource(shop,
		class("OrderHandler", run("OrderService")),
		class("OrderService", run("OrderRepository"), run("PaymentClient")),
		class("OrderRepository"),
		class("PaymentClient"),
	)
}

func TestEngine_Search(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := NewEngine(shopSource(), nil)

	t.Run("Flow", func(t *testing.T) {
		t.Parallel()
		res, err := engine.Search(ctx, config.DefaultFlow(), "OrderHandler.Run")
		require.NoError(t, err)
		assert.Equal(t, "OrderHandler.Run", res.Root.Name())
		assert.Equal(t, 4, res.Cache.Classes)

		report := NewReport(res)
		require.Len(t, report.Chains, 2)
		for _, chain := range report.Chains {
			require.Len(t, chain, 2)
			assert.Equal(t, "OrderHandler.Run", chain[0].From)
			assert.Equal(t, "OrderService.Run", chain[0].To)
			assert.Equal(t, []string{"call 0"}, chain[0].Contexts)
		}
		assert.ElementsMatch(t,
			[]string{"OrderRepository.Run", "PaymentClient.Run"},
			[]string{report.Chains[0][1].To, report.Chains[1][1].To})
	})

	t.Run("CallPresetCutsDataAccess", func(t *testing.T) {
		t.Parallel()
		res, err := engine.Search(ctx, config.DefaultCall(), "OrderService.Run")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Cache.Classes)

		report := NewReport(res)
		require.Len(t, report.Chains, 1)
		assert.Equal(t, "OrderHandler.Run", report.Chains[0][0].From)
		assert.Equal(t, "backward", report.Chains[0][0].Direction)
	})

	t.Run("UnknownRoot", func(t *testing.T) {
		t.Parallel()
		_, err := engine.Search(ctx, config.DefaultCall(), "Nope")
		require.ErrorIs(t, err, graph.ErrRootNotFound)
	})

	t.Run("InvalidPattern", func(t *testing.T) {
		t.Parallel()
		cfg := config.DefaultCall()
		cfg.Traversal.ClassNameExclude = "a(b"
		_, err := engine.Search(ctx, cfg, "OrderService")
		require.ErrorIs(t, err, graph.ErrInvalidPattern)
	})

	t.Run("Cancelled", func(t *testing.T) {
		t.Parallel()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := engine.Search(cctx, config.DefaultCall(), "OrderService")
		require.Error(t, err)
	})
}

func TestEngine_Roots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := NewEngine(shopSource(), nil)

	nodes, err := engine.Roots(ctx, config.DefaultCall(), "OrderRepository")
	require.NoError(t, err)
	require.Len(t, nodes, 1, "roots ignore the restriction")
	view := NewNodeView(nodes[0])
	assert.Equal(t, NodeView{
		Name:  "OrderRepository",
		ID:    shop + ".OrderRepository",
		Kind:  "class",
		Class: shop + ".OrderRepository",
		File:  "OrderRepository.go",
	}, view)

	nodes, err = engine.Roots(ctx, config.DefaultCall(), "OrderService.Run")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "method", nodes[0].Kind().String())

	nodes, err = engine.Roots(ctx, config.DefaultCall(), "Missing")
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestReport(t *testing.T) {
	t.Parallel()

	res, err := NewEngine(shopSource(), nil).Search(context.Background(), config.DefaultFlow(), "OrderHandler.Run")
	require.NoError(t, err)
	report := NewReport(res)

	t.Run("Text", func(t *testing.T) {
		t.Parallel()
		text := report.Text()
		assert.Contains(t, text, "Root: OrderHandler.Run\n")
		assert.Contains(t, text, "Mode: MethodsOnly, forward 999, backward 0")
		assert.Contains(t, text, "Chain 2:")
		assert.Contains(t, text, "  OrderHandler.Run -> OrderService.Run [call 0]\n")
	})

	t.Run("JSON", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(report)
		require.NoError(t, err)
		var decoded Report
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, report, decoded)
	})

	t.Run("Empty", func(t *testing.T) {
		t.Parallel()
		text := Report{Root: "X", EdgeMode: "MethodsOnly", Chains: [][]EdgeView{}}.Text()
		assert.Contains(t, text, "No chains found.")
	})

	t.Run("SquashedEdge", func(t *testing.T) {
		t.Parallel()
		v := EdgeView{From: "A.Run", To: "C.Run", Contexts: []string{"call 0", "call 1"}, Squashed: 1}
		assert.Equal(t, "A.Run -> C.Run [call 0, call 1] (1 hidden)", v.String())
	})
}
