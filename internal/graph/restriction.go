package graph

import (
	"fmt"
)

// RestrictionFilter decides which classes and methods enter the cache.
//
// AcceptClass and AcceptMethod run per class during construction using
// local facts only. RemoveClass runs once every class is loaded, so it can
// look at whole inheritance chains.
type RestrictionFilter interface {
	AcceptClass(ref ClassReference) bool
	AcceptMethod(m *AnalyzedMethod) bool
	RemoveClass(ref ClassReference, cache *Cache) bool
}

// RestrictionOptions configures a GraphRestrictionFilter. Pattern fields are
// ';'-separated lists.
type RestrictionOptions struct {
	ClassPackageExclude string `yaml:"class_package_exclude"`
	ClassPackageInclude string `yaml:"class_package_include"`
	ClassNameExclude    string `yaml:"class_name_exclude"`
	ClassNameInclude    string `yaml:"class_name_include"`
	MethodNameExclude   string `yaml:"method_name_exclude"`
	MethodNameInclude   string `yaml:"method_name_include"`

	// Applied after all classes are loaded.
	RemoveByInheritance  string `yaml:"remove_by_inheritance"`
	RemoveByAnnotation   string `yaml:"remove_by_annotation"`
	RemoveByClassPackage string `yaml:"remove_by_class_package"`
	RemoveByClassName    string `yaml:"remove_by_class_name"`

	CutMappings            bool `yaml:"cut_mappings"`
	CutEnum                bool `yaml:"cut_enum"`
	CutTests               bool `yaml:"cut_tests"`
	CutClient              bool `yaml:"cut_client"`
	CutDataAccess          bool `yaml:"cut_data_access"`
	CutInterfaceStructures bool `yaml:"cut_interface_structures"`
	CutDataStructures      bool `yaml:"cut_data_structures"`
	CutGetterAndSetter     bool `yaml:"cut_getter_and_setter"`
	CutConstructors        bool `yaml:"cut_constructors"`
}

// Root names the class, and optionally the method, a search starts from.
// A zero Method means the class itself is the root.
type Root struct {
	Class  ClassID
	Method MethodID
}

// IsMethod reports whether the root is a method.
func (r Root) IsMethod() bool { return r.Method.Signature != "" }

// String implements fmt.Stringer.
func (r Root) String() string {
	if r.IsMethod() {
		return r.Method.String()
	}
	return r.Class.String()
}

// GraphRestrictionFilter is the configurable RestrictionFilter.
type GraphRestrictionFilter struct {
	root           Root
	classification *Classification
	opts           RestrictionOptions

	className    IncludeExclude
	classPackage IncludeExclude
	methodName   IncludeExclude

	removeByInheritance  Patterns
	removeByAnnotation   Patterns
	removeByClassPackage Patterns
	removeByClassName    Patterns
}

// NewRestrictionFilter compiles the options. The root class and method are
// accepted whatever the options say.
func NewRestrictionFilter(root Root, classification *Classification, opts RestrictionOptions) (*GraphRestrictionFilter, error) {
	if classification == nil {
		classification = EmptyClassification()
	}
	f := &GraphRestrictionFilter{root: root, classification: classification, opts: opts}

	var err error
	if f.className, err = CompileIncludeExclude(opts.ClassNameInclude, opts.ClassNameExclude); err != nil {
		return nil, fmt.Errorf("restriction class name: %w", err)
	}
	if f.classPackage, err = CompileIncludeExclude(opts.ClassPackageInclude, opts.ClassPackageExclude); err != nil {
		return nil, fmt.Errorf("restriction class package: %w", err)
	}
	if f.methodName, err = CompileIncludeExclude(opts.MethodNameInclude, opts.MethodNameExclude); err != nil {
		return nil, fmt.Errorf("restriction method name: %w", err)
	}
	if f.removeByInheritance, err = CompilePatterns(opts.RemoveByInheritance); err != nil {
		return nil, fmt.Errorf("restriction remove by inheritance: %w", err)
	}
	if f.removeByAnnotation, err = CompilePatterns(opts.RemoveByAnnotation); err != nil {
		return nil, fmt.Errorf("restriction remove by annotation: %w", err)
	}
	if f.removeByClassPackage, err = CompilePatterns(opts.RemoveByClassPackage); err != nil {
		return nil, fmt.Errorf("restriction remove by class package: %w", err)
	}
	if f.removeByClassName, err = CompilePatterns(opts.RemoveByClassName); err != nil {
		return nil, fmt.Errorf("restriction remove by class name: %w", err)
	}
	return f, nil
}

// AcceptClass implements RestrictionFilter.
func (f *GraphRestrictionFilter) AcceptClass(ref ClassReference) bool {
	if ref.ID == f.root.Class {
		return true
	}

	c := f.classification
	cuts := []struct {
		enabled bool
		cat     Category
	}{
		{f.opts.CutTests, CategoryTest},
		{f.opts.CutClient, CategoryClient},
		{f.opts.CutMappings, CategoryMapping},
		{f.opts.CutDataAccess, CategoryDataAccess},
		{f.opts.CutDataStructures, CategoryDataStructure},
		{f.opts.CutInterfaceStructures, CategoryInterfaceStructure},
	}

	if !c.InIncludedProject(ref) ||
		!f.className.Admits(ref.Name()) ||
		!f.classPackage.Admits(ref.Path()) {
		return false
	}
	for _, cut := range cuts {
		if cut.enabled && c.Is(cut.cat, ref) {
			return false
		}
	}
	return !(f.opts.CutEnum && ref.IsEnum())
}

// AcceptMethod implements RestrictionFilter.
func (f *GraphRestrictionFilter) AcceptMethod(m *AnalyzedMethod) bool {
	if f.root.IsMethod() && m.ID == f.root.Method {
		return true
	}

	if !f.methodName.Admits(m.Name) || m.IsObjectMethod() {
		return false
	}
	if !m.InsideInterface() && f.opts.CutGetterAndSetter && m.IsGetterOrSetter() {
		return false
	}
	return !(f.opts.CutConstructors && m.Constructor)
}

// RemoveClass implements RestrictionFilter.
func (f *GraphRestrictionFilter) RemoveClass(ref ClassReference, cache *Cache) bool {
	if ref.ID == f.root.Class {
		return false
	}

	inherited := cache.AllInheritedClasses(ref.ID)

	if !f.removeByAnnotation.Empty() {
		var annotations Annotations
		if self, ok := cache.Class(ref.ID); ok {
			annotations = append(annotations, self.Annotations...)
		}
		for _, c := range inherited {
			annotations = append(annotations, c.Annotations...)
		}
		for _, a := range annotations {
			if f.removeByAnnotation.MatchAny(a.Name) {
				return true
			}
		}
	}

	if !f.removeByInheritance.Empty() {
		for _, c := range inherited {
			if f.removeByInheritance.MatchAny(c.Reference.Name()) {
				return true
			}
		}
	}

	return f.removeByClassPackage.MatchAny(ref.Path()) || f.removeByClassName.MatchAny(ref.Name())
}

// OpenRestriction accepts every class and method and removes nothing.
type OpenRestriction struct{}

// AcceptClass implements RestrictionFilter.
func (OpenRestriction) AcceptClass(ClassReference) bool { return true }

// AcceptMethod implements RestrictionFilter.
func (OpenRestriction) AcceptMethod(*AnalyzedMethod) bool { return true }

// RemoveClass implements RestrictionFilter.
func (OpenRestriction) RemoveClass(ClassReference, *Cache) bool { return false }
