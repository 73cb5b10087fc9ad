// Package index defines the read-only source facts consumed by the graph cache.
//
// A Source enumerates the classes of a code base and exposes, per class, the
// structural facts needed to build the reachability graph: supertypes,
// fields, methods, annotations and resolved call sites. Implementations are
// snapshots; the graph never writes back into them.
package index

import (
	"context"
	"fmt"
	"strings"
)

// Scope selects which classes a Source enumerates.
type Scope int

const (
	// ScopeProject limits enumeration to the classes of the analyzed project.
	ScopeProject Scope = iota
	// ScopeAll additionally enumerates classes of dependencies.
	ScopeAll
)

// String returns the configuration name of the scope.
func (s Scope) String() string {
	if s == ScopeAll {
		return "all"
	}
	return "project"
}

// ParseScope converts a configuration value into a Scope.
func ParseScope(value string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "project", "openproject":
		return ScopeProject, nil
	case "all", "allprojects":
		return ScopeAll, nil
	default:
		return ScopeProject, fmt.Errorf("unknown search scope %q", value)
	}
}

// Kind is the declaration kind of a class.
type Kind string

const (
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
	KindEnum      Kind = "enum"
)

// ClassRef points at a class by package path and name.
// Kind is informational and does not take part in identity.
type ClassRef struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Kind Kind   `json:"kind,omitempty"`
}

// Same reports whether both references name the same class.
func (r ClassRef) Same(other ClassRef) bool {
	return r.Path == other.Path && r.Name == other.Name
}

// MethodRef points at a method by its class and signature.
type MethodRef struct {
	Class     ClassRef `json:"class"`
	Signature string   `json:"signature"`
}

// Annotation is a named marker with optional literal parameters.
type Annotation struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params,omitempty"`
}

// TypeExpr describes a declared type.
//
// Args holds element types of arrays, slices and maps as well as generic
// type arguments. Primitive marks value types that can never be absent.
type TypeExpr struct {
	Display    string     `json:"display"`
	Class      *ClassRef  `json:"class,omitempty"`
	Args       []TypeExpr `json:"args,omitempty"`
	Primitive  bool       `json:"primitive,omitempty"`
	Collection bool       `json:"collection,omitempty"`
}

// ClassHeader carries the identity facts of a class available at enumeration time.
type ClassHeader struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Kind        Kind   `json:"kind"`
	FilePath    string `json:"file_path,omitempty"`

	// External marks classes that belong to dependencies rather than the project.
	External bool `json:"external,omitempty"`
}

// Ref returns a reference to the class.
func (h ClassHeader) Ref() ClassRef {
	return ClassRef{Path: h.Path, Name: h.Name, Kind: h.Kind}
}

// FieldInfo is a declared field.
type FieldInfo struct {
	Name         string       `json:"name"`
	Type         TypeExpr     `json:"type"`
	Exported     bool         `json:"exported,omitempty"`
	EnumConstant bool         `json:"enum_constant,omitempty"`
	Annotations  []Annotation `json:"annotations,omitempty"`
}

// ParamInfo is a declared method parameter.
type ParamInfo struct {
	Name        string       `json:"name"`
	Type        TypeExpr     `json:"type"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// CallInfo is a resolved call site. Sequence is the body order of the call.
type CallInfo struct {
	Target   MethodRef `json:"target"`
	Sequence int       `json:"sequence"`
}

// MethodInfo is a declared method.
type MethodInfo struct {
	Name        string       `json:"name"`
	Signature   string       `json:"signature"`
	Exported    bool         `json:"exported,omitempty"`
	Params      []ParamInfo  `json:"params,omitempty"`
	Return      *TypeExpr    `json:"return,omitempty"`
	Doc         string       `json:"doc,omitempty"`
	Constructor bool         `json:"constructor,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
	Calls       []CallInfo   `json:"calls,omitempty"`

	// Overrides lists the supertype methods this method implements.
	Overrides []MethodRef `json:"overrides,omitempty"`
}

// ClassInfo is the full set of structural facts for one class.
type ClassInfo struct {
	ClassHeader

	Supertypes  []ClassRef   `json:"supertypes,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
	Fields      []FieldInfo  `json:"fields,omitempty"`
	Methods     []MethodInfo `json:"methods,omitempty"`
}

// Source is a read-only snapshot of a code base.
type Source interface {
	// Name identifies the snapshot, usually the module path.
	Name() string

	// List enumerates the class headers visible in scope.
	List(ctx context.Context, scope Scope) ([]ClassHeader, error)

	// Lookup returns the full facts of a class, or nil if the source does not know it.
	Lookup(ctx context.Context, ref ClassRef) (*ClassInfo, error)
}

// StructuralTypes returns every class embedded in a type: the type itself and,
// recursively, the element and generic argument types. Collection containers
// are unwrapped rather than reported.
func StructuralTypes(t *TypeExpr) []ClassRef {
	if t == nil {
		return nil
	}

	var refs []ClassRef
	seen := make(map[ClassRef]bool)
	stack := []*TypeExpr{t}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for i := len(current.Args) - 1; i >= 0; i-- {
			stack = append(stack, &current.Args[i])
		}

		if current.Class == nil || current.Collection {
			continue
		}
		key := ClassRef{Path: current.Class.Path, Name: current.Class.Name}
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, *current.Class)
	}

	return refs
}
