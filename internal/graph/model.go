// Package graph provides the reachability core of reachgraph.
//
// It defines the value identities for classes and methods, the analyzed
// entities built from a source index, the two filtering stages (restriction
// at build time, traversal at search time), the immutable graph cache with
// its derived indices, and the depth-bounded search that squashes hidden
// nodes into renderable edges.
package graph

import (
	"github.com/Benny93/reachgraph/internal/index"
)

// ClassKind is the declaration kind of a class.
type ClassKind string

const (
	KindClass     ClassKind = "class"
	KindInterface ClassKind = "interface"
	KindEnum      ClassKind = "enum"
)

// Visibility is the access level of a method or field.
type Visibility string

const (
	VisibilityPublic       Visibility = "public"
	VisibilityProtected    Visibility = "protected"
	VisibilityPrivate      Visibility = "private"
	VisibilityPackageLocal Visibility = "packageLocal"
)

// ClassID identifies a class by package path and name.
// It is comparable and used directly as a map key.
type ClassID struct {
	Path string
	Name string
}

// QualifiedName returns "path.Name".
func (id ClassID) QualifiedName() string {
	if id.Path == "" {
		return id.Name
	}
	return id.Path + "." + id.Name
}

// String implements fmt.Stringer.
func (id ClassID) String() string {
	return id.QualifiedName()
}

// ClassReference is the immutable reference to a class.
//
// Equality is defined on ID only; DisplayName, Kind and FilePath are derived
// facts carried along for filtering and rendering.
type ClassReference struct {
	ID          ClassID
	DisplayName string
	Kind        ClassKind
	FilePath    string
}

// NewClassReference creates a reference from an index class reference.
func NewClassReference(ref index.ClassRef) ClassReference {
	kind := ClassKind(ref.Kind)
	if kind == "" {
		kind = KindClass
	}
	return ClassReference{
		ID:          ClassID{Path: ref.Path, Name: ref.Name},
		DisplayName: ref.Name,
		Kind:        kind,
	}
}

// Name returns the simple class name.
func (r ClassReference) Name() string { return r.ID.Name }

// Path returns the package path.
func (r ClassReference) Path() string { return r.ID.Path }

// QualifiedName returns "path.Name".
func (r ClassReference) QualifiedName() string { return r.ID.QualifiedName() }

// Equal reports whether both references identify the same class.
func (r ClassReference) Equal(other ClassReference) bool { return r.ID == other.ID }

// IsInterface reports whether the class is an interface.
func (r ClassReference) IsInterface() bool { return r.Kind == KindInterface }

// IsEnum reports whether the class is an enum.
func (r ClassReference) IsEnum() bool { return r.Kind == KindEnum }

// String returns the simple class name.
func (r ClassReference) String() string { return r.ID.Name }

// MethodID identifies a method by its class and signature.
// The signature is the method name plus its parameter types, so overloads
// stay distinct.
type MethodID struct {
	Class     ClassID
	Signature string
}

// String returns "path.Name#signature".
func (id MethodID) String() string {
	return id.Class.QualifiedName() + "#" + id.Signature
}

// MethodReference is the immutable reference to a method.
type MethodReference struct {
	Class     ClassReference
	Signature string
}

// NewMethodReference creates a reference from an index method reference.
func NewMethodReference(ref index.MethodRef) MethodReference {
	return MethodReference{Class: NewClassReference(ref.Class), Signature: ref.Signature}
}

// ID returns the identity of the referenced method.
func (r MethodReference) ID() MethodID {
	return MethodID{Class: r.Class.ID, Signature: r.Signature}
}

// String returns the method identity.
func (r MethodReference) String() string { return r.ID().String() }

// FieldID identifies a field by its owning class and name.
type FieldID struct {
	Class ClassID
	Name  string
}

// String returns "path.Name.field".
func (id FieldID) String() string {
	return id.Class.QualifiedName() + "." + id.Name
}
