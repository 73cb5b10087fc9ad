package graph

import (
	"github.com/Benny93/reachgraph/internal/index"
)

// headerReference builds a class reference from enumeration facts.
func headerReference(h index.ClassHeader) ClassReference {
	display := h.DisplayName
	if display == "" {
		display = h.Name
	}
	kind := ClassKind(h.Kind)
	if kind == "" {
		kind = KindClass
	}
	return ClassReference{
		ID:          ClassID{Path: h.Path, Name: h.Name},
		DisplayName: display,
		Kind:        kind,
		FilePath:    h.FilePath,
	}
}

// analyzeClass resolves the facts of one class. Supertypes and methods
// rejected by the filter are dropped here; dangling references are left for
// the optimize pass to discard.
func analyzeClass(info *index.ClassInfo, filter RestrictionFilter) *AnalyzedClass {
	ref := headerReference(info.ClassHeader)
	class := &AnalyzedClass{
		Reference:   ref,
		Annotations: convertAnnotations(info.Annotations),
	}

	for _, st := range info.Supertypes {
		super := NewClassReference(st)
		if filter.AcceptClass(super) {
			class.Supertypes = append(class.Supertypes, super)
		}
	}

	for _, fi := range info.Fields {
		visibility := VisibilityPackageLocal
		if fi.Exported {
			visibility = VisibilityPublic
		}
		class.Fields = append(class.Fields, &AnalyzedField{
			Variable:     newVariable(fi.Name, &fi.Type, fi.Annotations),
			Class:        ref,
			Visibility:   visibility,
			EnumConstant: fi.EnumConstant,
		})
	}

	seen := make(map[CallKey]bool)
	addCall := func(call AnalyzeCall) {
		if seen[call.Key()] {
			return
		}
		seen[call.Key()] = true
		class.Calls = append(class.Calls, call)
	}

	for i := range info.Methods {
		mi := &info.Methods[i]
		method := analyzeMethod(ref, mi)
		if !filter.AcceptMethod(method) {
			continue
		}
		class.addMethod(method)

		source := method.Reference()
		for _, call := range mi.Calls {
			addCall(AnalyzeCall{
				Source:   source,
				Target:   NewMethodReference(call.Target),
				Sequence: call.Sequence,
			})
		}
		for _, overridden := range mi.Overrides {
			addCall(AnalyzeCall{
				Source:   NewMethodReference(overridden),
				Target:   source,
				Sequence: SyntheticSequence,
			})
		}
	}

	return class
}

func analyzeMethod(owner ClassReference, mi *index.MethodInfo) *AnalyzedMethod {
	signature := mi.Signature
	if signature == "" {
		signature = mi.Name + "()"
	}

	visibility := VisibilityPackageLocal
	if mi.Exported {
		visibility = VisibilityPublic
	}

	m := &AnalyzedMethod{
		ID:          MethodID{Class: owner.ID, Signature: signature},
		Name:        mi.Name,
		Class:       owner,
		Visibility:  visibility,
		Doc:         mi.Doc,
		Constructor: mi.Constructor,
		Annotations: convertAnnotations(mi.Annotations),
	}

	for i := range mi.Params {
		p := &mi.Params[i]
		m.Parameters = append(m.Parameters, Parameter{Variable: newVariable(p.Name, &p.Type, p.Annotations)})
	}

	if mi.Return != nil {
		m.ReturnType = mi.Return.Display
		m.ReturnTypes = classReferences(index.StructuralTypes(mi.Return))
	}
	return m
}

func newVariable(name string, t *index.TypeExpr, annotations []index.Annotation) Variable {
	return Variable{
		Name:        name,
		TypeDisplay: t.Display,
		Types:       classReferences(index.StructuralTypes(t)),
		Collection:  t.Collection,
		Primitive:   t.Primitive,
		Annotations: convertAnnotations(annotations),
	}
}

func classReferences(refs []index.ClassRef) []ClassReference {
	if len(refs) == 0 {
		return nil
	}
	out := make([]ClassReference, len(refs))
	for i, r := range refs {
		out[i] = NewClassReference(r)
	}
	return out
}

func convertAnnotations(in []index.Annotation) Annotations {
	if len(in) == 0 {
		return nil
	}
	out := make(Annotations, len(in))
	for i, a := range in {
		out[i] = Annotation{Name: a.Name, Params: a.Params}
	}
	return out
}
