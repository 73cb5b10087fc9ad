package goindex

import (
	"fmt"
	"go/ast"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/Benny93/reachgraph/internal/index"
)

// collector accumulates the classes of all visited packages.
type collector struct {
	root   string
	ignore func(string) bool

	classes map[index.ClassRef]*index.ClassInfo
	order   []index.ClassRef

	// Declarations of the packages loaded from source.
	docs     map[*types.Func]*ast.CommentGroup
	bodies   map[*types.Func]*ast.BlockStmt
	info     map[*types.Func]*types.Info
	typeDocs map[*types.TypeName]*ast.CommentGroup

	interfaces []*types.Named
	concretes  []*types.Named
	packages   int
}

func newCollector(root string, opts Options) *collector {
	return &collector{
		root:     root,
		ignore:   opts.Ignore,
		classes:  make(map[index.ClassRef]*index.ClassInfo),
		docs:     make(map[*types.Func]*ast.CommentGroup),
		bodies:   make(map[*types.Func]*ast.BlockStmt),
		info:     make(map[*types.Func]*types.Info),
		typeDocs: make(map[*types.TypeName]*ast.CommentGroup),
	}
}

func (c *collector) result() []index.ClassInfo {
	out := make([]index.ClassInfo, 0, len(c.order))
	for _, ref := range c.order {
		out = append(out, *c.classes[ref])
	}
	return out
}

// class returns the class for ref, creating it from the header if needed.
func (c *collector) class(h index.ClassHeader) *index.ClassInfo {
	ref := index.ClassRef{Path: h.Path, Name: h.Name}
	if existing, ok := c.classes[ref]; ok {
		return existing
	}
	info := &index.ClassInfo{ClassHeader: h}
	c.classes[ref] = info
	c.order = append(c.order, ref)
	return info
}

func (c *collector) relPath(filename string) string {
	rel, err := filepath.Rel(c.root, filename)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(filename)
	}
	return filepath.ToSlash(rel)
}

func (c *collector) collectPackage(pkg *packages.Package, external bool) {
	c.packages++
	c.indexDeclarations(pkg)

	scope := pkg.Types.Scope()
	enums := enumConstants(pkg.Types)

	for _, name := range scope.Names() {
		switch obj := scope.Lookup(name).(type) {
		case *types.TypeName:
			if obj.IsAlias() {
				continue
			}
			if named, ok := obj.Type().(*types.Named); ok {
				c.collectType(pkg, named, enums[obj], external)
			}
		case *types.Func:
			c.collectFunc(pkg, obj, external)
		}
	}
}

// indexDeclarations remembers the doc comments and bodies of the functions
// declared in the package syntax.
func (c *collector) indexDeclarations(pkg *packages.Package) {
	if pkg.TypesInfo == nil {
		return
	}
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				fn, ok := pkg.TypesInfo.Defs[d.Name].(*types.Func)
				if !ok {
					continue
				}
				c.docs[fn] = d.Doc
				c.bodies[fn] = d.Body
				c.info[fn] = pkg.TypesInfo
			case *ast.GenDecl:
				c.indexTypeSpecs(pkg.TypesInfo, d)
			}
		}
	}
}

func (c *collector) indexTypeSpecs(info *types.Info, d *ast.GenDecl) {
	for _, spec := range d.Specs {
		ts, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}
		if tn, ok := info.Defs[ts.Name].(*types.TypeName); ok {
			doc := ts.Doc
			if doc == nil && len(d.Specs) == 1 {
				doc = d.Doc
			}
			c.typeDocs[tn] = doc
		}

		it, ok := ts.Type.(*ast.InterfaceType)
		if !ok || it.Methods == nil {
			continue
		}
		for _, field := range it.Methods.List {
			for _, name := range field.Names {
				if fn, ok := info.Defs[name].(*types.Func); ok {
					c.docs[fn] = field.Doc
				}
			}
		}
	}
}

// enumConstants groups the package constants by their named type.
func enumConstants(pkg *types.Package) map[*types.TypeName][]*types.Const {
	out := make(map[*types.TypeName][]*types.Const)
	scope := pkg.Scope()
	for _, name := range scope.Names() {
		cst, ok := scope.Lookup(name).(*types.Const)
		if !ok {
			continue
		}
		named, ok := cst.Type().(*types.Named)
		if !ok || named.Obj().Pkg() != pkg {
			continue
		}
		out[named.Obj()] = append(out[named.Obj()], cst)
	}
	return out
}

func (c *collector) collectType(pkg *packages.Package, named *types.Named, consts []*types.Const, external bool) {
	obj := named.Obj()
	file := c.relPath(pkg.Fset.Position(obj.Pos()).Filename)
	if c.ignore(file) {
		return
	}

	q := types.RelativeTo(pkg.Types)
	kind := index.KindClass
	iface, isInterface := named.Underlying().(*types.Interface)
	switch {
	case isInterface:
		kind = index.KindInterface
	case len(consts) > 0:
		kind = index.KindEnum
	}

	h := index.ClassHeader{
		Path:        pkg.PkgPath,
		Name:        obj.Name(),
		DisplayName: displayName(named, q),
		Kind:        kind,
		FilePath:    file,
		External:    external,
	}
	// A constructor sorted before its type may have created the class.
	info := c.class(h)
	info.ClassHeader = h
	info.Annotations = append(info.Annotations, docAnnotations(c.typeDocs[obj])...)

	switch u := named.Underlying().(type) {
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			f := u.Field(i)
			if f.Embedded() {
				if ref, ok := classRef(f.Type()); ok {
					info.Supertypes = appendRef(info.Supertypes, ref)
				}
				continue
			}
			info.Fields = append(info.Fields, index.FieldInfo{
				Name:        f.Name(),
				Type:        typeExpr(f.Type(), q),
				Exported:    f.Exported(),
				Annotations: tagAnnotations(u.Tag(i)),
			})
		}
	case *types.Interface:
		for i := 0; i < u.NumEmbeddeds(); i++ {
			if ref, ok := classRef(u.EmbeddedType(i)); ok {
				info.Supertypes = appendRef(info.Supertypes, ref)
			}
		}
		for i := 0; i < u.NumExplicitMethods(); i++ {
			info.Methods = append(info.Methods, c.method(u.ExplicitMethod(i), q, false))
		}
	}

	for _, cst := range consts {
		info.Fields = append(info.Fields, index.FieldInfo{
			Name:         cst.Name(),
			Type:         typeExpr(cst.Type(), q),
			Exported:     cst.Exported(),
			EnumConstant: true,
		})
	}

	for i := 0; i < named.NumMethods(); i++ {
		info.Methods = append(info.Methods, c.method(named.Method(i), q, false))
	}

	if named.TypeParams().Len() > 0 {
		return
	}
	if isInterface {
		if iface.NumMethods() > 0 {
			c.interfaces = append(c.interfaces, named)
		}
		return
	}
	c.concretes = append(c.concretes, named)
}

func (c *collector) collectFunc(pkg *packages.Package, fn *types.Func, external bool) {
	file := c.relPath(pkg.Fset.Position(fn.Pos()).Filename)
	if c.ignore(file) {
		return
	}

	owner, constructor, ok := ownerOf(fn)
	if !ok {
		return
	}
	h := index.ClassHeader{
		Path:     owner.Path,
		Name:     owner.Name,
		Kind:     index.KindClass,
		FilePath: file,
		External: external,
	}
	info := c.class(h)
	info.Methods = append(info.Methods, c.method(fn, types.RelativeTo(pkg.Types), constructor))
}

func (c *collector) method(fn *types.Func, q types.Qualifier, constructor bool) index.MethodInfo {
	sig := fn.Type().(*types.Signature)
	mi := index.MethodInfo{
		Name:        fn.Name(),
		Signature:   signature(fn),
		Exported:    fn.Exported(),
		Constructor: constructor,
	}

	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		name := p.Name()
		if name == "" || name == "_" {
			name = fmt.Sprintf("arg%d", i)
		}
		mi.Params = append(mi.Params, index.ParamInfo{Name: name, Type: typeExpr(p.Type(), q)})
	}

	switch results := sig.Results(); results.Len() {
	case 0:
	case 1:
		ret := typeExpr(results.At(0).Type(), q)
		mi.Return = &ret
	default:
		ret := index.TypeExpr{Display: types.TypeString(results, q)}
		for i := 0; i < results.Len(); i++ {
			ret.Args = append(ret.Args, typeExpr(results.At(i).Type(), q))
		}
		mi.Return = &ret
	}

	if doc := c.docs[fn]; doc != nil {
		mi.Doc = strings.TrimSpace(doc.Text())
		mi.Annotations = docAnnotations(doc)
	}
	if body := c.bodies[fn]; body != nil {
		mi.Calls = calls(c.info[fn], body)
	}
	return mi
}

// calls lists the resolved calls of a body in source order.
func calls(info *types.Info, body *ast.BlockStmt) []index.CallInfo {
	var out []index.CallInfo
	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		fn := calledFunc(info, call.Fun)
		if fn == nil {
			return true
		}
		owner, _, ok := ownerOf(fn)
		if !ok {
			return true
		}
		out = append(out, index.CallInfo{
			Target:   index.MethodRef{Class: owner, Signature: signature(fn)},
			Sequence: len(out),
		})
		return true
	})
	return out
}

func calledFunc(info *types.Info, expr ast.Expr) *types.Func {
	for {
		switch e := expr.(type) {
		case *ast.ParenExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.Ident:
			fn, _ := info.Uses[e].(*types.Func)
			return fn
		case *ast.SelectorExpr:
			fn, _ := info.Uses[e.Sel].(*types.Func)
			return fn
		default:
			return nil
		}
	}
}

// resolveImplementations records every interface a concrete type satisfies,
// by value or by pointer, as a supertype, and marks the implementing methods
// as overrides of the interface methods.
func (c *collector) resolveImplementations() {
	for _, concrete := range c.concretes {
		cref, _ := classRef(concrete)
		info, ok := c.classes[index.ClassRef{Path: cref.Path, Name: cref.Name}]
		if !ok {
			continue
		}
		ptr := types.NewPointer(concrete)

		for _, named := range c.interfaces {
			iface := named.Underlying().(*types.Interface)
			if !types.Implements(concrete, iface) && !types.Implements(ptr, iface) {
				continue
			}
			iref, _ := classRef(named)
			info.Supertypes = appendRef(info.Supertypes, iref)

			for i := 0; i < iface.NumMethods(); i++ {
				c.recordOverride(info, cref, ptr, iface.Method(i))
			}
		}
	}
}

func (c *collector) recordOverride(info *index.ClassInfo, cref index.ClassRef, ptr types.Type, im *types.Func) {
	obj, _, _ := types.LookupFieldOrMethod(ptr, false, im.Pkg(), im.Name())
	impl, ok := obj.(*types.Func)
	if !ok {
		return
	}
	owner, _, ok := ownerOf(impl)
	if !ok || !owner.Same(cref) {
		return
	}
	declared, _, ok := ownerOf(im)
	if !ok {
		return
	}

	sig := signature(impl)
	target := index.MethodRef{Class: declared, Signature: signature(im)}
	for i := range info.Methods {
		m := &info.Methods[i]
		if m.Signature != sig {
			continue
		}
		for _, existing := range m.Overrides {
			if existing.Class.Same(target.Class) && existing.Signature == target.Signature {
				return
			}
		}
		m.Overrides = append(m.Overrides, target)
		return
	}
}

func appendRef(refs []index.ClassRef, ref index.ClassRef) []index.ClassRef {
	for _, r := range refs {
		if r.Same(ref) {
			return refs
		}
	}
	return append(refs, ref)
}
