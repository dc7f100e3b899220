package processors

import (
	"context"
	"go/ast"
	"math"
	"path/filepath"
	"strconv"

	"github.com/fzipp/gocyclo"
	"golang.org/x/tools/cover"

	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/failure"
	"github.com/unbound-force/gencheck/internal/processor"
)

// CRAP processor options.
const (
	// CRAPThresholdOption is the score at or above which a function
	// is reported. Default 15.
	CRAPThresholdOption = "crap.threshold"

	// CRAPProfileOption names a coverage profile. Without one every
	// function counts as uncovered.
	CRAPProfileOption = "crap.coverprofile"
)

// DefaultCRAPThreshold is used when crap.threshold is not set.
const DefaultCRAPThreshold = 15

// CRAPFormula computes comp^2 * (1 - cov/100)^3 + comp, where comp
// is the cyclomatic complexity and cov the line coverage percentage.
func CRAPFormula(complexity int, coveragePct float64) float64 {
	comp := float64(complexity)
	uncov := 1.0 - coveragePct/100.0
	return comp*comp*math.Pow(uncov, 3) + comp
}

// CRAP warns about every function of a round whose CRAP score
// reaches the threshold.
type CRAP struct {
	env       processor.Environment
	threshold float64
	profiles  map[string]*cover.Profile
}

// Init reads the threshold and coverage profile options.
func (c *CRAP) Init(env processor.Environment) error {
	c.env = env
	opts := env.Options()
	threshold := float64(DefaultCRAPThreshold)
	if v := opts[CRAPThresholdOption]; v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &failure.ConfigError{Message: "option " + CRAPThresholdOption, Cause: err}
		}
		threshold = f
	}
	c.threshold = threshold

	c.profiles = make(map[string]*cover.Profile)
	if path := opts[CRAPProfileOption]; path != "" {
		profiles, err := cover.ParseProfiles(path)
		if err != nil {
			return &failure.ConfigError{Message: "option " + CRAPProfileOption, Cause: err}
		}
		for _, p := range profiles {
			c.profiles[p.FileName] = p
		}
	}
	return nil
}

// SupportedDirectives claims every element.
func (c *CRAP) SupportedDirectives() []string { return []string{processor.AllDirectives} }

// Process scores the functions of the round.
func (c *CRAP) Process(_ context.Context, r processor.Round) (bool, error) {
	for _, el := range r.Elements() {
		fd, ok := el.Decl.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}
		comp := gocyclo.Complexity(fd)
		cov := c.coverage(el, fd)
		score := CRAPFormula(comp, cov)
		if score >= c.threshold {
			c.env.Messager().Printf(diagnostic.Warning, fd.Pos(),
				"%s: CRAP score %.1f (complexity %d, coverage %.1f%%) reaches threshold %.0f",
				el.Name, score, comp, cov, c.threshold)
		}
	}
	return false, nil
}

// coverage returns the statement coverage of fd in percent. Profiles
// name files by import path.
func (c *CRAP) coverage(el processor.Element, fd *ast.FuncDecl) float64 {
	if el.Package == nil {
		return 0
	}
	profile, ok := c.profiles[el.Package.PkgPath+"/"+filepath.Base(el.File)]
	if !ok {
		return 0
	}
	fset := el.Package.Fset
	start, end := fset.Position(fd.Pos()), fset.Position(fd.End())

	var covered, total int
	for _, b := range profile.Blocks {
		if b.StartLine > end.Line || (b.StartLine == end.Line && b.StartCol >= end.Column) {
			break
		}
		if b.EndLine < start.Line || (b.EndLine == start.Line && b.EndCol <= start.Column) {
			continue
		}
		total += b.NumStmt
		if b.Count > 0 {
			covered += b.NumStmt
		}
	}
	if total == 0 {
		return 0
	}
	return 100 * float64(covered) / float64(total)
}
