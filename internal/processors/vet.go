package processors

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/assign"
	"golang.org/x/tools/go/analysis/passes/bools"
	"golang.org/x/tools/go/analysis/passes/nilfunc"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"golang.org/x/tools/go/packages"

	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/failure"
	"github.com/unbound-force/gencheck/internal/processor"
)

// VetAnalyzersOption selects analyzers by comma-separated name.
const VetAnalyzersOption = "vet.analyzers"

var vetAnalyzers = map[string]*analysis.Analyzer{
	assign.Analyzer.Name:      assign.Analyzer,
	bools.Analyzer.Name:       bools.Analyzer,
	nilfunc.Analyzer.Name:     nilfunc.Analyzer,
	unreachable.Analyzer.Name: unreachable.Analyzer,
}

// VetAnalyzerNames returns the analyzers Vet can run, sorted.
func VetAnalyzerNames() []string {
	names := make([]string, 0, len(vetAnalyzers))
	for n := range vetAnalyzers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Vet runs go/analysis passes over every package with declarations
// in a round and reports their findings as warnings. Only analyzers
// without facts are supported.
type Vet struct {
	env       processor.Environment
	analyzers []*analysis.Analyzer
}

// Init selects the analyzers named by the vet.analyzers option.
func (v *Vet) Init(env processor.Environment) error {
	v.env = env
	names := VetAnalyzerNames()
	if sel := env.Options()[VetAnalyzersOption]; sel != "" {
		names = strings.Split(sel, ",")
	}
	v.analyzers = v.analyzers[:0]
	for _, n := range names {
		a, ok := vetAnalyzers[strings.TrimSpace(n)]
		if !ok {
			return failure.Configf("option %s: unknown analyzer %q", VetAnalyzersOption, n)
		}
		v.analyzers = append(v.analyzers, a)
	}
	return nil
}

// SupportedDirectives claims every element.
func (v *Vet) SupportedDirectives() []string { return []string{processor.AllDirectives} }

// Process analyzes each package with declarations in the round.
func (v *Vet) Process(_ context.Context, r processor.Round) (bool, error) {
	seen := make(map[*packages.Package]bool)
	for _, el := range r.Elements() {
		pkg := el.Package
		if pkg == nil || seen[pkg] {
			continue
		}
		seen[pkg] = true
		if pkg.IllTyped || len(pkg.Errors) > 0 {
			continue
		}
		if err := v.analyze(pkg); err != nil {
			return false, fmt.Errorf("analyzing %s: %w", pkg.PkgPath, err)
		}
	}
	return false, nil
}

// analyze runs the selected analyzers and their requirements once
// each on pkg.
func (v *Vet) analyze(pkg *packages.Package) error {
	results := make(map[*analysis.Analyzer]any)
	var module *analysis.Module
	if pkg.Module != nil {
		module = &analysis.Module{
			Path:      pkg.Module.Path,
			Version:   pkg.Module.Version,
			GoVersion: pkg.Module.GoVersion,
		}
	}

	var run func(a *analysis.Analyzer) (any, error)
	run = func(a *analysis.Analyzer) (any, error) {
		if res, ok := results[a]; ok {
			return res, nil
		}
		if len(a.FactTypes) > 0 {
			return nil, fmt.Errorf("analyzer %s uses facts", a.Name)
		}
		resultOf := make(map[*analysis.Analyzer]any, len(a.Requires))
		for _, req := range a.Requires {
			res, err := run(req)
			if err != nil {
				return nil, err
			}
			resultOf[req] = res
		}
		pass := &analysis.Pass{
			Analyzer:   a,
			Fset:       pkg.Fset,
			Files:      pkg.Syntax,
			OtherFiles: pkg.OtherFiles,
			Pkg:        pkg.Types,
			TypesInfo:  pkg.TypesInfo,
			TypesSizes: pkg.TypesSizes,
			Module:     module,
			ResultOf:   resultOf,
			ReadFile:   os.ReadFile,
			Report: func(d analysis.Diagnostic) {
				v.env.Messager().Printf(diagnostic.Warning, d.Pos, "%s: %s", a.Name, d.Message)
			},
		}
		res, err := a.Run(pass)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name, err)
		}
		results[a] = res
		return res, nil
	}

	for _, a := range v.analyzers {
		if _, err := run(a); err != nil {
			return err
		}
	}
	return nil
}
