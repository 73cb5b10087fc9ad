package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Benny93/reachgraph/internal/index"
)

const testPkg = "example.com/app"

func cref(name string) index.ClassRef {
	return index.ClassRef{Path: testPkg, Name: name, Kind: index.KindClass}
}

func mref(class, method string) index.MethodRef {
	return index.MethodRef{Class: cref(class), Signature: method + "()"}
}

func typeOf(name string) index.TypeExpr {
	r := cref(name)
	return index.TypeExpr{Display: name, Class: &r}
}

func sliceOf(name string) index.TypeExpr {
	return index.TypeExpr{Display: "[]" + name, Collection: true, Args: []index.TypeExpr{typeOf(name)}}
}

type classBuilder struct {
	info index.ClassInfo
}

func newClass(name string) *classBuilder {
	return &classBuilder{info: index.ClassInfo{ClassHeader: index.ClassHeader{
		Path:     testPkg,
		Name:     name,
		Kind:     index.KindClass,
		FilePath: "app/" + name + ".go",
	}}}
}

func (b *classBuilder) kind(k index.Kind) *classBuilder {
	b.info.Kind = k
	return b
}

func (b *classBuilder) file(path string) *classBuilder {
	b.info.FilePath = path
	return b
}

func (b *classBuilder) supers(names ...string) *classBuilder {
	for _, n := range names {
		b.info.Supertypes = append(b.info.Supertypes, cref(n))
	}
	return b
}

func (b *classBuilder) annotated(names ...string) *classBuilder {
	for _, n := range names {
		b.info.Annotations = append(b.info.Annotations, index.Annotation{Name: n})
	}
	return b
}

func (b *classBuilder) field(name string, t index.TypeExpr) *classBuilder {
	b.info.Fields = append(b.info.Fields, index.FieldInfo{Name: name, Type: t, Exported: true})
	return b
}

// method adds an exported method calling the targets in order.
func (b *classBuilder) method(name string, calls ...index.MethodRef) *classBuilder {
	mi := index.MethodInfo{Name: name, Signature: name + "()", Exported: true}
	for i, target := range calls {
		mi.Calls = append(mi.Calls, index.CallInfo{Target: target, Sequence: i})
	}
	b.info.Methods = append(b.info.Methods, mi)
	return b
}

func (b *classBuilder) withMethod(mi index.MethodInfo) *classBuilder {
	if mi.Signature == "" {
		mi.Signature = mi.Name + "()"
	}
	b.info.Methods = append(b.info.Methods, mi)
	return b
}

func (b *classBuilder) build() index.ClassInfo {
	return b.info
}

func buildCache(t *testing.T, filter RestrictionFilter, classes ...*classBuilder) *Cache {
	t.Helper()
	infos := make([]index.ClassInfo, len(classes))
	for i, c := range classes {
		infos[i] = c.build()
	}
	cache, err := NewCache(context.Background(), index.NewMemorySource(testPkg, infos...), filter)
	require.NoError(t, err)
	return cache
}

func methodNode(t *testing.T, c *Cache, class, method string) Node {
	t.Helper()
	m, ok := c.Method(MethodID{Class: ClassID{Path: testPkg, Name: class}, Signature: method + "()"})
	require.True(t, ok, "method %s.%s not cached", class, method)
	return MethodNode(m)
}

func classNode(t *testing.T, c *Cache, class string) Node {
	t.Helper()
	cls, ok := c.Class(ClassID{Path: testPkg, Name: class})
	require.True(t, ok, "class %s not cached", class)
	return ClassNode(cls)
}

// edgeNames renders each chain as "From->To" short names.
func edgeNames(chains []Chain) [][]string {
	out := make([][]string, len(chains))
	for i, c := range chains {
		out[i] = []string{}
		for _, e := range c {
			out[i] = append(out[i], fmt.Sprintf("%s->%s", e.From().Name(), e.To().Name()))
		}
	}
	return out
}

func hideClasses(names ...string) TraversalFilter {
	hidden := make(map[string]bool, len(names))
	for _, n := range names {
		hidden[n] = true
	}
	return TraversalFunc(func(n Node) bool {
		return !hidden[n.ClassReference().Name()]
	})
}
