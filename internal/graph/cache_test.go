package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/reachgraph/internal/index"
)

func TestNewCache(t *testing.T) {
	t.Parallel()

	c := buildCache(t, nil,
		newClass("Order").
			supers("Entity", "Missing").
			field("items", sliceOf("Item")).
			field("self", typeOf("Order")).
			method("Total", mref("Item", "Price"), mref("Ghost", "Run")).
			withMethod(index.MethodInfo{
				Name:     "Merge",
				Exported: true,
				Params:   []index.ParamInfo{{Name: "other", Type: typeOf("Order")}, {Name: "item", Type: typeOf("Item")}},
			}),
		newClass("Entity").kind(index.KindInterface),
		newClass("Item").method("Price"),
	)

	t.Run("Classes", func(t *testing.T) {
		t.Parallel()
		var names []string
		for _, class := range c.Classes() {
			names = append(names, class.Reference.Name())
		}
		assert.Equal(t, []string{"Entity", "Item", "Order"}, names)
		assert.Equal(t, testPkg, c.Source())
	})

	t.Run("UnresolvedReferencesAreDropped", func(t *testing.T) {
		t.Parallel()
		total := MethodID{Class: ClassID{Path: testPkg, Name: "Order"}, Signature: "Total()"}
		calls := c.CallsFrom(total)
		require.Len(t, calls, 1)
		assert.Equal(t, "Price()", calls[0].Target.Signature)

		price := MethodID{Class: ClassID{Path: testPkg, Name: "Item"}, Signature: "Price()"}
		assert.Len(t, c.CallsTo(price), 1)
	})

	t.Run("Subclasses", func(t *testing.T) {
		t.Parallel()
		subs := c.Subclasses(ClassID{Path: testPkg, Name: "Entity"})
		require.Len(t, subs, 1)
		assert.Equal(t, "Order", subs[0].Name())
		assert.Empty(t, c.Subclasses(ClassID{Path: testPkg, Name: "Missing"}))
	})

	t.Run("CollectionFieldResolvesElement", func(t *testing.T) {
		t.Parallel()
		usages := c.FieldUsagesFrom(ClassID{Path: testPkg, Name: "Order"})
		require.Len(t, usages, 1, "self references are not usages")
		assert.Equal(t, "Item", usages[0].Target.Reference.Name())
		assert.Equal(t, "[0..*]", usages[0].Field.Cardinality().String())

		assert.Len(t, c.FieldUsagesTo(ClassID{Path: testPkg, Name: "Item"}), 1)
	})

	t.Run("MethodUsageExcludesOwnClass", func(t *testing.T) {
		t.Parallel()
		merge := MethodID{Class: ClassID{Path: testPkg, Name: "Order"}, Signature: "Merge()"}
		usages := c.MethodClassUsages(merge)
		require.Len(t, usages, 1)
		assert.Equal(t, "Item", usages[0].Class.Reference.Name())
		assert.Equal(t, "item", usages[0].Reference)
	})

	t.Run("Stats", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, CacheStats{
			Classes:      3,
			Methods:      3,
			Calls:        1,
			Subclassings: 1,
			MethodUsages: 1,
			FieldUsages:  1,
		}, c.Stats())
	})

	t.Run("Lookups", func(t *testing.T) {
		t.Parallel()
		order, ok := c.Class(ClassID{Path: testPkg, Name: "Order"})
		require.True(t, ok)
		assert.Same(t, order, c.ClassFor(order.Reference))
		assert.Nil(t, c.ClassFor(ClassReference{ID: ClassID{Path: testPkg, Name: "Missing"}}))
		assert.Nil(t, c.MethodFor(MethodReference{Class: order.Reference, Signature: "Nope()"}))
	})
}

func TestCache_AllInheritedClasses(t *testing.T) {
	t.Parallel()

	c := buildCache(t, nil,
		newClass("A").supers("B", "C"),
		newClass("B").supers("D"),
		newClass("C").supers("D"),
		newClass("D").supers("A"),
	)

	var names []string
	for _, class := range c.AllInheritedClasses(ClassID{Path: testPkg, Name: "A"}) {
		names = append(names, class.Reference.Name())
	}
	assert.ElementsMatch(t, []string{"B", "C", "D"}, names)
	assert.Empty(t, c.AllInheritedClasses(ClassID{Path: testPkg, Name: "Unknown"}))
}

func TestNewCache_Restriction(t *testing.T) {
	t.Parallel()

	f, err := NewRestrictionFilter(Root{}, nil, RestrictionOptions{
		CutEnum:            true,
		CutGetterAndSetter: true,
		CutTests:           true,
	})
	require.NoError(t, err)

	c := buildCache(t, f,
		newClass("Service").
			field("color", typeOf("Color")).
			withMethod(index.MethodInfo{Name: "GetName", Exported: true, Return: &index.TypeExpr{Display: "string", Primitive: true}}).
			method("Run"),
		newClass("Color").kind(index.KindEnum),
		newClass("Fixture").file("app/service_test.go"),
	)

	_, ok := c.Class(ClassID{Path: testPkg, Name: "Color"})
	assert.False(t, ok)
	_, ok = c.Class(ClassID{Path: testPkg, Name: "Fixture"})
	assert.False(t, ok)

	service, ok := c.Class(ClassID{Path: testPkg, Name: "Service"})
	require.True(t, ok)
	require.Len(t, service.Methods(), 1)
	assert.Equal(t, "Run", service.Methods()[0].Name)
	assert.Empty(t, c.FieldUsagesFrom(service.ID()))
}

func TestNewCache_Deterministic(t *testing.T) {
	t.Parallel()

	var builders []*classBuilder
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L"} {
		builders = append(builders, newClass(name).method("m", mref("A", "m"), mref("L", "m")))
	}
	infos := make([]index.ClassInfo, len(builders))
	for i, b := range builders {
		infos[i] = b.build()
	}
	src := index.NewMemorySource(testPkg, infos...)

	serial, err := NewCache(context.Background(), src, nil, WithChunkSize(100), WithWorkers(1))
	require.NoError(t, err)
	parallel, err := NewCache(context.Background(), src, nil, WithChunkSize(1), WithWorkers(8))
	require.NoError(t, err)

	assert.Equal(t, serial.Stats(), parallel.Stats())
	a := MethodID{Class: ClassID{Path: testPkg, Name: "A"}, Signature: "m()"}
	assert.Equal(t, serial.CallsTo(a), parallel.CallsTo(a))
}

func TestNewCache_Progress(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		stages = map[string]int{}
	)
	src := index.NewMemorySource(testPkg, newClass("A").build(), newClass("B").build(), newClass("C").build())

	_, err := NewCache(context.Background(), src, nil,
		WithChunkSize(1),
		WithProgress(func(stage string, done, total int) {
			mu.Lock()
			defer mu.Unlock()
			stages[stage]++
		}),
	)
	require.NoError(t, err)

	assert.Equal(t, 1, stages[StageCollect])
	assert.Equal(t, 3, stages[StageAnalyze])
	assert.Equal(t, 1, stages[StageRemove])
	assert.Equal(t, 1, stages[StageOptimize])
}

func TestNewCache_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := NewCache(ctx, index.NewMemorySource(testPkg, newClass("A").build()), nil)

	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

type brokenSource struct {
	*index.MemorySource
}

var errBrokenLookup = errors.New("snapshot corrupted")

func (brokenSource) Lookup(context.Context, index.ClassRef) (*index.ClassInfo, error) {
	return nil, errBrokenLookup
}

func TestNewCache_LookupError(t *testing.T) {
	t.Parallel()

	src := brokenSource{index.NewMemorySource(testPkg, newClass("A").build())}

	_, err := NewCache(context.Background(), src, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, errBrokenLookup)
	assert.NotErrorIs(t, err, ErrCancelled)
}

func TestCache_FindNodes(t *testing.T) {
	t.Parallel()

	c := buildCache(t, nil,
		newClass("Order").method("Total").method("Merge"),
		newClass("Item").method("Total"),
	)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"Class", "Order", []string{"example.com/app.Order"}},
		{"QualifiedClass", "example.com/app.Item", []string{"example.com/app.Item"}},
		{"Method", "Order.Total", []string{"example.com/app.Order#Total()"}},
		{"Signature", "Order.Merge()", []string{"example.com/app.Order#Merge()"}},
		{"QualifiedMethod", "example.com/app.Item.Total", []string{"example.com/app.Item#Total()"}},
		{"Unknown", "Nope", nil},
		{"Blank", "  ", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var got []string
			for _, n := range c.FindNodes(tc.query) {
				got = append(got, n.String())
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCache_RootNode(t *testing.T) {
	t.Parallel()

	c := buildCache(t, nil, newClass("Order").method("Total"))
	id := ClassID{Path: testPkg, Name: "Order"}

	n, err := c.RootNode(Root{Class: id})
	require.NoError(t, err)
	assert.Equal(t, NodeClass, n.Kind())

	n, err = c.RootNode(Root{Class: id, Method: MethodID{Class: id, Signature: "Total()"}})
	require.NoError(t, err)
	assert.Equal(t, NodeMethod, n.Kind())

	_, err = c.RootNode(Root{Class: id, Method: MethodID{Class: id, Signature: "Gone()"}})
	assert.ErrorIs(t, err, ErrRootNotFound)
	_, err = c.RootNode(Root{Class: ClassID{Path: testPkg, Name: "Gone"}})
	assert.ErrorIs(t, err, ErrRootNotFound)
}

func TestLocateRoot(t *testing.T) {
	t.Parallel()

	src := index.NewMemorySource(testPkg,
		newClass("Order").method("Total").build(),
		newClass("Item").build(),
	)
	ctx := context.Background()

	root, err := LocateRoot(ctx, src, index.ScopeProject, "Order")
	require.NoError(t, err)
	assert.False(t, root.IsMethod())
	assert.Equal(t, "example.com/app.Order", root.String())

	root, err = LocateRoot(ctx, src, index.ScopeProject, "Order.Total")
	require.NoError(t, err)
	assert.True(t, root.IsMethod())
	assert.Equal(t, "example.com/app.Order#Total()", root.String())

	_, err = LocateRoot(ctx, src, index.ScopeProject, "Item.Missing")
	assert.ErrorIs(t, err, ErrRootNotFound)
	_, err = LocateRoot(ctx, src, index.ScopeProject, "Nothing")
	assert.ErrorIs(t, err, ErrRootNotFound)
}
