package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Category is a semantic class category such as "test" or "data_structure".
type Category string

const (
	CategoryTest               Category = "test"
	CategoryClient             Category = "client"
	CategoryMapping            Category = "mapping"
	CategoryDataAccess         Category = "data_access"
	CategoryDataStructure      Category = "data_structure"
	CategoryInterfaceStructure Category = "interface_structure"
	CategoryEntryPoint         Category = "entry_point"
)

// CategoryPatterns holds the ';'-separated name and path patterns of a category.
type CategoryPatterns struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

type categoryMatcher struct {
	name Patterns
	path Patterns
}

// Classification answers category questions about classes. It is immutable
// after construction and safe for concurrent use.
type Classification struct {
	includedProjects []string
	categories       map[Category]categoryMatcher
}

// NewClassification compiles the category patterns. includedProjects is a
// ';'-separated list of path prefixes; empty admits every path.
func NewClassification(includedProjects string, categories map[Category]CategoryPatterns) (*Classification, error) {
	c := &Classification{categories: make(map[Category]categoryMatcher, len(categories))}

	for _, prefix := range strings.Split(includedProjects, ";") {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			c.includedProjects = append(c.includedProjects, prefix)
		}
	}

	names := make([]string, 0, len(categories))
	for cat := range categories {
		names = append(names, string(cat))
	}
	sort.Strings(names)

	for _, name := range names {
		cat := Category(name)
		raw := categories[cat]
		namePatterns, err := CompilePatterns(raw.Name)
		if err != nil {
			return nil, fmt.Errorf("category %s name: %w", cat, err)
		}
		pathPatterns, err := CompilePatterns(raw.Path)
		if err != nil {
			return nil, fmt.Errorf("category %s path: %w", cat, err)
		}
		c.categories[cat] = categoryMatcher{name: namePatterns, path: pathPatterns}
	}
	return c, nil
}

// EmptyClassification returns a classification with no categories.
func EmptyClassification() *Classification {
	return &Classification{categories: map[Category]categoryMatcher{}}
}

// Is reports whether the class falls into the category.
//
// Classes declared in test files are always in CategoryTest.
func (c *Classification) Is(cat Category, ref ClassReference) bool {
	if cat == CategoryTest && isTestFile(ref.FilePath) {
		return true
	}
	m, ok := c.categories[cat]
	if !ok {
		return false
	}
	return m.name.MatchAny(ref.Name()) || m.path.MatchAny(ref.Path())
}

// InIncludedProject reports whether the class path starts with one of the
// included project prefixes.
func (c *Classification) InIncludedProject(ref ClassReference) bool {
	if len(c.includedProjects) == 0 {
		return true
	}
	for _, prefix := range c.includedProjects {
		if strings.HasPrefix(ref.Path(), prefix) {
			return true
		}
	}
	return false
}

func isTestFile(path string) bool {
	if path == "" {
		return false
	}
	p := strings.ReplaceAll(path, "\\", "/")
	return strings.HasSuffix(p, "_test.go") ||
		strings.Contains(p, "/test/") ||
		strings.Contains(p, "/testdata/")
}
