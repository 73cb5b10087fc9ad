package graph

import (
	"strings"
)

// Annotation is a marker attached to a class, method, field or parameter.
type Annotation struct {
	Name   string
	Params map[string]string
}

// Attribute returns the literal value of a parameter.
func (a Annotation) Attribute(name string) (string, bool) {
	v, ok := a.Params[name]
	return v, ok
}

// Annotations is an ordered list of annotations.
type Annotations []Annotation

// WithName returns the first annotation with the given name.
func (as Annotations) WithName(name string) (Annotation, bool) {
	for _, a := range as {
		if a.Name == name {
			return a, true
		}
	}
	return Annotation{}, false
}

// Variable holds the typing facts shared by fields and parameters.
type Variable struct {
	Name        string
	TypeDisplay string

	// Types are the classes structurally embedded in the declared type.
	Types []ClassReference

	Collection  bool
	Primitive   bool
	Annotations Annotations
}

// Cardinality renders multiplicity bounds, e.g. "[1]", "[0..1]" or "[0..*]".
type Cardinality struct {
	Lower      string
	Upper      string
	Collection bool
}

// String implements fmt.Stringer.
func (c Cardinality) String() string {
	if !c.Collection && c.Lower == c.Upper {
		return "[" + c.Lower + "]"
	}
	return "[" + c.Lower + ".." + c.Upper + "]"
}

// Unbounded reports whether there is no upper bound.
func (c Cardinality) Unbounded() bool {
	return c.Upper == "*"
}

// maxIntLiteral is the value validation annotations use for "no maximum".
const maxIntLiteral = "2147483647"

var mandatoryAnnotations = map[string]bool{
	"NotNull":  true,
	"NotBlank": true,
	"NotEmpty": true,
}

// Cardinality returns the multiplicity of the variable.
func (v Variable) Cardinality() Cardinality {
	return v.cardinality(false)
}

func (v Variable) cardinality(enumConstant bool) Cardinality {
	if v.Collection {
		lower := "0"
		if a, ok := v.Annotations.WithName("Min"); ok {
			if val, ok := a.Attribute("value"); ok {
				lower = val
			}
		} else if a, ok := v.Annotations.WithName("Size"); ok {
			if val, ok := a.Attribute("min"); ok {
				lower = val
			}
		}

		upper := "*"
		if a, ok := v.Annotations.WithName("Max"); ok {
			if val, ok := a.Attribute("value"); ok {
				upper = val
			}
		} else if a, ok := v.Annotations.WithName("Size"); ok {
			if val, ok := a.Attribute("max"); ok && val != maxIntLiteral {
				upper = val
			}
		}
		return Cardinality{Lower: lower, Upper: upper, Collection: true}
	}

	if v.Primitive || enumConstant || v.hasMandatoryAnnotation() {
		return Cardinality{Lower: "1", Upper: "1"}
	}
	return Cardinality{Lower: "0", Upper: "1"}
}

func (v Variable) hasMandatoryAnnotation() bool {
	for _, a := range v.Annotations {
		if mandatoryAnnotations[a.Name] {
			return true
		}
		required, _ := a.Attribute("required")
		if a.Name == "XmlElement" && required == "true" {
			return true
		}
		if a.Name == "Autowired" && required != "false" {
			return true
		}
	}
	return false
}

// AnalyzedField is a field of an analyzed class.
type AnalyzedField struct {
	Variable

	Class        ClassReference
	Visibility   Visibility
	EnumConstant bool
}

// ID returns the identity of the field.
func (f *AnalyzedField) ID() FieldID {
	return FieldID{Class: f.Class.ID, Name: f.Name}
}

// Cardinality returns the multiplicity of the field. Enum constants are mandatory.
func (f *AnalyzedField) Cardinality() Cardinality {
	return f.cardinality(f.EnumConstant)
}

// Parameter is a method parameter.
type Parameter struct {
	Variable
}

// AnalyzedMethod is a method node of the graph.
type AnalyzedMethod struct {
	ID         MethodID
	Name       string
	Class      ClassReference
	Visibility Visibility
	Parameters []Parameter

	// ReturnType is the display of the declared result, empty for void.
	ReturnType  string
	ReturnTypes []ClassReference

	Doc         string
	Constructor bool
	Annotations Annotations
}

// Reference returns a reference to the method.
func (m *AnalyzedMethod) Reference() MethodReference {
	return MethodReference{Class: m.Class, Signature: m.ID.Signature}
}

// IsVoid reports whether the method returns nothing.
func (m *AnalyzedMethod) IsVoid() bool {
	return m.ReturnType == "" || m.ReturnType == "void"
}

// InsideInterface reports whether the method is declared by an interface.
func (m *AnalyzedMethod) InsideInterface() bool {
	return m.Class.IsInterface()
}

// IsGetterOrSetter applies the accessor naming convention. The prefix match
// ignores the case of the first letter so exported names qualify.
func (m *AnalyzedMethod) IsGetterOrSetter() bool {
	name := m.Name
	if name != "" {
		name = strings.ToLower(name[:1]) + name[1:]
	}
	noParams := len(m.Parameters) == 0
	switch {
	case strings.HasPrefix(name, "get"), strings.HasPrefix(name, "is"), strings.HasPrefix(name, "has"):
		return noParams && !m.IsVoid()
	case strings.HasPrefix(name, "with"):
		return !noParams && !m.IsVoid()
	case strings.HasPrefix(name, "set"):
		return m.IsVoid()
	}
	return false
}

// objectMethods are protocol methods every type may carry; they never form
// meaningful graph edges.
var objectMethods = map[string]bool{
	"toString": true,
	"equals":   true,
	"hashCode": true,
	"getClass": true,
	"String":   true,
	"GoString": true,
	"Error":    true,
}

// IsObjectMethod reports whether the method is a protocol method such as String.
func (m *AnalyzedMethod) IsObjectMethod() bool {
	return objectMethods[m.Name]
}

// String returns the method identity.
func (m *AnalyzedMethod) String() string {
	return m.ID.String()
}

// AnalyzeCall is a call from one method to another.
//
// Sequence is the position of the call in the source method body, or -1 for
// calls introduced by override resolution. Two calls with the same source
// and target are equal regardless of sequence.
type AnalyzeCall struct {
	Source   MethodReference
	Target   MethodReference
	Sequence int
}

// SyntheticSequence marks calls introduced by interface or virtual dispatch.
const SyntheticSequence = -1

// CallKey is the identity of a call.
type CallKey struct {
	Source MethodID
	Target MethodID
}

// Key returns the identity of the call.
func (c AnalyzeCall) Key() CallKey {
	return CallKey{Source: c.Source.ID(), Target: c.Target.ID()}
}

// Equal compares source and target only.
func (c AnalyzeCall) Equal(other AnalyzeCall) bool {
	return c.Key() == other.Key()
}

// Synthetic reports whether the call was introduced by dispatch resolution.
func (c AnalyzeCall) Synthetic() bool {
	return c.Sequence == SyntheticSequence
}

// String returns "source->target".
func (c AnalyzeCall) String() string {
	return c.Source.Signature + "->" + c.Target.Signature
}

// AnalyzedClass is a class node of the graph.
// It is built once during cache construction and never mutated afterwards.
type AnalyzedClass struct {
	Reference   ClassReference
	Fields      []*AnalyzedField
	Supertypes  []ClassReference
	Annotations Annotations

	// Calls are ordered by declaring method, then body order. Synthetic
	// dispatch calls follow the direct calls of the overriding method.
	Calls []AnalyzeCall

	methods     map[MethodID]*AnalyzedMethod
	methodOrder []MethodID
}

// ID returns the class identity.
func (c *AnalyzedClass) ID() ClassID { return c.Reference.ID }

// Kind returns the declaration kind.
func (c *AnalyzedClass) Kind() ClassKind { return c.Reference.Kind }

// Method returns the method with the given identity.
func (c *AnalyzedClass) Method(id MethodID) (*AnalyzedMethod, bool) {
	m, ok := c.methods[id]
	return m, ok
}

// Methods returns the accepted methods in declaration order.
func (c *AnalyzedClass) Methods() []*AnalyzedMethod {
	out := make([]*AnalyzedMethod, 0, len(c.methodOrder))
	for _, id := range c.methodOrder {
		out = append(out, c.methods[id])
	}
	return out
}

// CallsBySource groups the calls of the class by calling method.
func (c *AnalyzedClass) CallsBySource() map[MethodID][]AnalyzeCall {
	grouped := make(map[MethodID][]AnalyzeCall)
	for _, call := range c.Calls {
		id := call.Source.ID()
		grouped[id] = append(grouped[id], call)
	}
	return grouped
}

// String returns the simple class name.
func (c *AnalyzedClass) String() string {
	return c.Reference.Name()
}

func (c *AnalyzedClass) addMethod(m *AnalyzedMethod) {
	if c.methods == nil {
		c.methods = make(map[MethodID]*AnalyzedMethod)
	}
	if _, exists := c.methods[m.ID]; !exists {
		c.methodOrder = append(c.methodOrder, m.ID)
	}
	c.methods[m.ID] = m
}
