package graph

import (
	"fmt"
)

// TraversalFilter decides whether a cached node is visible in one search.
// Implementations must be safe for concurrent use.
type TraversalFilter interface {
	Accept(n Node) bool
}

// TraversalFunc adapts a function to TraversalFilter.
type TraversalFunc func(n Node) bool

// Accept implements TraversalFilter.
func (f TraversalFunc) Accept(n Node) bool { return f(n) }

// AcceptAll makes every node visible.
var AcceptAll TraversalFilter = TraversalFunc(func(Node) bool { return true })

// TraversalOptions configures a GraphTraversalFilter and the search depths.
type TraversalOptions struct {
	ForwardDepth  int `yaml:"forward_depth"`
	BackwardDepth int `yaml:"backward_depth"`

	ClassPackageExclude string `yaml:"class_package_exclude"`
	ClassPackageInclude string `yaml:"class_package_include"`
	ClassNameExclude    string `yaml:"class_name_exclude"`
	ClassNameInclude    string `yaml:"class_name_include"`
	MethodNameExclude   string `yaml:"method_name_exclude"`
	MethodNameInclude   string `yaml:"method_name_include"`

	HideMappings       bool `yaml:"hide_mappings"`
	HideDataStructures bool `yaml:"hide_data_structures"`
	HidePrivateMethods bool `yaml:"hide_private_methods"`

	// HideInterfaceCalls hides interfaces and their methods, so that
	// implementation to implementation calls show through the indirection.
	HideInterfaceCalls bool `yaml:"hide_interface_calls"`

	// OnlyShowApplicationEntryPoints hides every class that is not an entry
	// point. Roots stay visible.
	OnlyShowApplicationEntryPoints bool `yaml:"only_show_application_entry_points"`
}

// GraphTraversalFilter is the configurable TraversalFilter.
type GraphTraversalFilter struct {
	roots          map[NodeKey]bool
	classification *Classification
	opts           TraversalOptions

	className    IncludeExclude
	classPackage IncludeExclude
	methodName   IncludeExclude
}

// NewTraversalFilter compiles the options. The given roots are always visible.
func NewTraversalFilter(classification *Classification, opts TraversalOptions, roots ...Node) (*GraphTraversalFilter, error) {
	if classification == nil {
		classification = EmptyClassification()
	}
	f := &GraphTraversalFilter{
		roots:          make(map[NodeKey]bool, len(roots)),
		classification: classification,
		opts:           opts,
	}
	for _, r := range roots {
		f.roots[r.Key()] = true
	}

	var err error
	if f.className, err = CompileIncludeExclude(opts.ClassNameInclude, opts.ClassNameExclude); err != nil {
		return nil, fmt.Errorf("traversal class name: %w", err)
	}
	if f.classPackage, err = CompileIncludeExclude(opts.ClassPackageInclude, opts.ClassPackageExclude); err != nil {
		return nil, fmt.Errorf("traversal class package: %w", err)
	}
	if f.methodName, err = CompileIncludeExclude(opts.MethodNameInclude, opts.MethodNameExclude); err != nil {
		return nil, fmt.Errorf("traversal method name: %w", err)
	}
	return f, nil
}

// Accept implements TraversalFilter.
func (f *GraphTraversalFilter) Accept(n Node) bool {
	if f.roots[n.Key()] {
		return true
	}

	switch n.Kind() {
	case NodeClass:
		return f.acceptClass(n.Class().Reference)
	case NodeMethod:
		return f.acceptMethod(n.Method()) && f.acceptClass(n.Method().Class)
	default:
		return false
	}
}

func (f *GraphTraversalFilter) acceptMethod(m *AnalyzedMethod) bool {
	if !f.methodName.Admits(m.Name) {
		return false
	}
	if f.opts.HidePrivateMethods && m.Visibility != VisibilityPublic {
		return false
	}
	return !(f.opts.HideInterfaceCalls && m.InsideInterface())
}

func (f *GraphTraversalFilter) acceptClass(ref ClassReference) bool {
	c := f.classification
	switch {
	case !f.className.Admits(ref.Name()), !f.classPackage.Admits(ref.Path()):
		return false
	case f.opts.HideDataStructures && c.Is(CategoryDataStructure, ref):
		return false
	case f.opts.HideMappings && c.Is(CategoryMapping, ref):
		return false
	case f.opts.HideInterfaceCalls && ref.IsInterface():
		return false
	case f.opts.OnlyShowApplicationEntryPoints && !c.Is(CategoryEntryPoint, ref):
		return false
	}
	return true
}
