// Package loader wraps go/packages to load the packages of a module
// directory with full syntax and type information.
package loader

import (
	"fmt"
	"go/token"
	"os"
	"strings"

	"golang.org/x/tools/go/packages"
)

// LoadMode is the set of flags processors rely on: syntax trees,
// type information and the compiled file list.
const LoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo |
	packages.NeedTypesSizes |
	packages.NeedModule

// Config configures one load.
type Config struct {
	// Dir is the module root.
	Dir string

	// Tags are build tags passed with -tags.
	Tags []string

	// Env is appended to the process environment.
	Env []string
}

// Result holds the loaded packages along with the shared file set.
type Result struct {
	// Pkgs are the root packages, in go list order.
	Pkgs []*packages.Package

	// Fset is the shared file set for position information.
	Fset *token.FileSet
}

// Load loads every package below cfg.Dir. Package-level errors
// (syntax, type errors) do not fail the load; they stay attached to
// the packages so callers can report them.
func Load(cfg Config) (*Result, error) {
	fset := token.NewFileSet()
	pcfg := &packages.Config{
		Mode:  LoadMode,
		Dir:   cfg.Dir,
		Fset:  fset,
		Tests: false,
		Env:   append(os.Environ(), cfg.Env...),
	}
	if len(cfg.Tags) > 0 {
		pcfg.BuildFlags = []string{"-tags=" + strings.Join(cfg.Tags, ",")}
	}

	pkgs, err := packages.Load(pcfg, "./...")
	if err != nil {
		return nil, fmt.Errorf("loading packages in %s: %w", cfg.Dir, err)
	}

	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found in %s", cfg.Dir)
	}

	return &Result{
		Pkgs: pkgs,
		Fset: fset,
	}, nil
}

// Errors returns the errors of the root packages, in package order.
func (r *Result) Errors() []packages.Error {
	var errs []packages.Error
	for _, pkg := range r.Pkgs {
		errs = append(errs, pkg.Errors...)
	}
	return errs
}
