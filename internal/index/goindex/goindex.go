// Package goindex builds an index.Source from Go packages.
//
// Go declarations are mapped onto the class model the graph understands:
// named types are classes (interfaces and enum-like constant sets keep their
// kind), methods and package functions are methods, struct fields are fields,
// embedded types and implemented interfaces are supertypes and struct tags
// are annotations. Package functions live on a class named after their
// package; NewT constructors are attached to T.
package goindex

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/tools/go/packages"

	"github.com/Benny93/reachgraph/internal/index"
)

// Options configures Load.
type Options struct {
	// Dir is the directory packages are loaded from. Defaults to ".".
	Dir string

	// Patterns are the package patterns to load. Defaults to "./...".
	Patterns []string

	// Scope selects whether dependency packages are indexed too. Dependency
	// classes are marked External.
	Scope index.Scope

	// Ignore reports whether a file, relative to Dir and slash separated,
	// is excluded from the index.
	Ignore func(relPath string) bool

	Logger *slog.Logger
}

// Load type-checks the packages and returns their classes.
func Load(ctx context.Context, opts Options) (*index.MemorySource, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = []string{"./..."}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Ignore == nil {
		opts.Ignore = func(string) bool { return false }
	}

	root, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", opts.Dir, err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	mode := packages.NeedName | packages.NeedFiles | packages.NeedImports |
		packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedModule
	if opts.Scope == index.ScopeAll {
		mode |= packages.NeedDeps
	}

	start := time.Now()
	cfg := &packages.Config{
		Mode:    mode,
		Context: ctx,
		Dir:     root,
	}
	pkgs, err := packages.Load(cfg, opts.Patterns...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	c := newCollector(root, opts)
	initial := make(map[string]bool, len(pkgs))
	for _, pkg := range pkgs {
		initial[pkg.ID] = true
	}

	var visitErr error
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		if visitErr != nil {
			return
		}
		if err := ctx.Err(); err != nil {
			visitErr = err
			return
		}
		if len(pkg.Errors) > 0 {
			opts.Logger.Warn("package has errors", "package", pkg.PkgPath, "errors", len(pkg.Errors), "first", pkg.Errors[0].Msg)
		}
		if pkg.Types == nil {
			return
		}

		project := initial[pkg.ID] || (pkg.Module != nil && pkg.Module.Main)
		if !project && opts.Scope != index.ScopeAll {
			return
		}
		c.collectPackage(pkg, !project)
	})
	if visitErr != nil {
		return nil, visitErr
	}

	c.resolveImplementations()

	name := moduleName(pkgs, root)
	src := index.NewMemorySource(name, c.result()...)
	opts.Logger.Info("go packages indexed",
		"module", name,
		"packages", c.packages,
		"classes", src.Len(),
		"duration", time.Since(start),
	)
	return src, nil
}

// moduleName returns the main module path, or the directory name when the
// packages were loaded outside a module.
func moduleName(pkgs []*packages.Package, root string) string {
	for _, pkg := range pkgs {
		if pkg.Module != nil && pkg.Module.Main {
			return pkg.Module.Path
		}
	}
	return filepath.Base(root)
}
