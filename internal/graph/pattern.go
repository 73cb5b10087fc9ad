package graph

import (
	"fmt"
	"regexp"
	"strings"
)

// Patterns is a compiled ';'-separated pattern list.
//
// Each entry matches the whole value, case-insensitively, and '*' stands for
// any run of characters.
type Patterns struct {
	raw     string
	regexes []*regexp.Regexp
}

// CompilePatterns compiles a ';'-separated list. Empty entries are ignored.
func CompilePatterns(raw string) (Patterns, error) {
	p := Patterns{raw: raw}
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		expr := "(?i)^(?:" + strings.ReplaceAll(part, "*", ".*") + ")$"
		re, err := regexp.Compile(expr)
		if err != nil {
			return Patterns{}, fmt.Errorf("%w %q: %v", ErrInvalidPattern, part, err)
		}
		p.regexes = append(p.regexes, re)
	}
	return p, nil
}

// MustCompilePatterns is like CompilePatterns but panics on error.
func MustCompilePatterns(raw string) Patterns {
	p, err := CompilePatterns(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Empty reports whether the list has no entries.
func (p Patterns) Empty() bool { return len(p.regexes) == 0 }

// String returns the source text.
func (p Patterns) String() string { return p.raw }

// MatchAny reports whether any entry matches the value.
func (p Patterns) MatchAny(value string) bool {
	for _, re := range p.regexes {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// IncludeExclude pairs an include list with an exclude list.
// An empty include list admits everything.
type IncludeExclude struct {
	Include Patterns
	Exclude Patterns
}

// CompileIncludeExclude compiles both lists.
func CompileIncludeExclude(include, exclude string) (IncludeExclude, error) {
	in, err := CompilePatterns(include)
	if err != nil {
		return IncludeExclude{}, fmt.Errorf("include list: %w", err)
	}
	ex, err := CompilePatterns(exclude)
	if err != nil {
		return IncludeExclude{}, fmt.Errorf("exclude list: %w", err)
	}
	return IncludeExclude{Include: in, Exclude: ex}, nil
}

// Admits reports whether the value is included and not excluded.
func (ie IncludeExclude) Admits(value string) bool {
	if !ie.Include.Empty() && !ie.Include.MatchAny(value) {
		return false
	}
	return !ie.Exclude.MatchAny(value)
}
