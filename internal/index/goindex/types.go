package goindex

import (
	"go/types"
	"strings"

	"github.com/Benny93/reachgraph/internal/index"
)

// typeExpr describes a Go type. Pointers keep the class of their element;
// slices, arrays, maps and channels are collections of their elements.
func typeExpr(t types.Type, q types.Qualifier) index.TypeExpr {
	display := types.TypeString(t, q)

	switch t := types.Unalias(t).(type) {
	case *types.Basic:
		return index.TypeExpr{Display: display, Primitive: true}
	case *types.Pointer:
		elem := typeExpr(t.Elem(), q)
		elem.Display = display
		elem.Primitive = false
		return elem
	case *types.Slice:
		return collection(display, typeExpr(t.Elem(), q))
	case *types.Array:
		return collection(display, typeExpr(t.Elem(), q))
	case *types.Chan:
		return collection(display, typeExpr(t.Elem(), q))
	case *types.Map:
		return collection(display, typeExpr(t.Key(), q), typeExpr(t.Elem(), q))
	case *types.Named:
		ref, ok := classRef(t)
		if !ok {
			return index.TypeExpr{Display: display}
		}
		expr := index.TypeExpr{Display: display, Class: &ref}
		args := t.TypeArgs()
		for i := 0; i < args.Len(); i++ {
			expr.Args = append(expr.Args, typeExpr(args.At(i), q))
		}
		switch t.Underlying().(type) {
		case *types.Struct, *types.Basic, *types.Array:
			expr.Primitive = true
		}
		return expr
	default:
		return index.TypeExpr{Display: display}
	}
}

func collection(display string, elems ...index.TypeExpr) index.TypeExpr {
	return index.TypeExpr{Display: display, Collection: true, Args: elems}
}

// namedOf returns the named type behind t, looking through aliases and one
// pointer indirection.
func namedOf(t types.Type) *types.Named {
	t = types.Unalias(t)
	if ptr, ok := t.(*types.Pointer); ok {
		t = types.Unalias(ptr.Elem())
	}
	named, _ := t.(*types.Named)
	return named
}

// classRef returns the class of a named type. Predeclared types such as
// error have no package and no class.
func classRef(t types.Type) (index.ClassRef, bool) {
	named := namedOf(t)
	if named == nil {
		return index.ClassRef{}, false
	}
	obj := named.Origin().Obj()
	if obj.Pkg() == nil {
		return index.ClassRef{}, false
	}
	kind := index.KindClass
	if types.IsInterface(named) {
		kind = index.KindInterface
	}
	return index.ClassRef{Path: obj.Pkg().Path(), Name: obj.Name(), Kind: kind}, true
}

func displayName(named *types.Named, q types.Qualifier) string {
	name := named.Obj().Name()
	params := named.TypeParams()
	if params.Len() == 0 {
		return name
	}
	parts := make([]string, params.Len())
	for i := 0; i < params.Len(); i++ {
		parts[i] = types.TypeString(params.At(i), q)
	}
	return name + "[" + strings.Join(parts, ", ") + "]"
}

// signature renders the identity of a function within its class: the name
// and the parameter types, qualified relative to the declaring package.
// Generic instantiations share the signature of their origin.
func signature(fn *types.Func) string {
	fn = fn.Origin()
	sig := fn.Type().(*types.Signature)
	q := types.RelativeTo(fn.Pkg())

	var b strings.Builder
	b.WriteString(fn.Name())
	b.WriteByte('(')
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		t := params.At(i).Type()
		if sig.Variadic() && i == params.Len()-1 {
			if s, ok := t.(*types.Slice); ok {
				b.WriteString("..." + types.TypeString(s.Elem(), q))
				continue
			}
		}
		b.WriteString(types.TypeString(t, q))
	}
	b.WriteByte(')')
	return b.String()
}

// ownerOf returns the class a function is a method of. Methods belong to
// their receiver type, NewT constructors to T and other package functions
// to the package class.
func ownerOf(fn *types.Func) (owner index.ClassRef, constructor bool, ok bool) {
	fn = fn.Origin()
	if fn.Pkg() == nil {
		return index.ClassRef{}, false, false
	}

	sig := fn.Type().(*types.Signature)
	if recv := sig.Recv(); recv != nil {
		ref, ok := classRef(recv.Type())
		return ref, false, ok
	}

	if ref, ok := constructed(fn, sig); ok {
		return ref, true, true
	}
	return packageClass(fn.Pkg()), false, true
}

// constructed reports the type built by a NewT function: an exported
// package function named New... whose first result is a concrete type, or
// a pointer to one, declared in the same package.
func constructed(fn *types.Func, sig *types.Signature) (index.ClassRef, bool) {
	if !strings.HasPrefix(fn.Name(), "New") || sig.Results().Len() == 0 || sig.TypeParams().Len() > 0 {
		return index.ClassRef{}, false
	}
	named := namedOf(sig.Results().At(0).Type())
	if named == nil || named.Obj().Pkg() != fn.Pkg() || types.IsInterface(named) {
		return index.ClassRef{}, false
	}
	return classRef(named)
}

// packageClass is the class holding the plain functions of a package.
func packageClass(pkg *types.Package) index.ClassRef {
	return index.ClassRef{Path: pkg.Path(), Name: pkg.Name(), Kind: index.KindClass}
}
