// Package processor defines the plugin interface of the compilation
// pass: code-generation processors that receive the declarations of
// the packages being compiled, may report diagnostics, and may
// generate new Go sources or resource files.
//
// A pass runs in rounds. The first round hands every processor the
// declarations of the input packages. Each Go file generated in a
// round is compiled and its declarations are handed out in the next
// round. A final round with ProcessingOver set to true runs once no
// new Go file was generated.
package processor

import (
	"context"
	"fmt"
	"go/token"
	"io"

	"golang.org/x/tools/go/packages"

	"github.com/unbound-force/gencheck/internal/artifact"
	"github.com/unbound-force/gencheck/internal/diagnostic"
)

// AllDirectives is the processing scope of a processor that wants to
// see every round regardless of directives.
const AllDirectives = "*"

// Processor is a code-generation plugin.
type Processor interface {
	// Init is called once per pass before the first round.
	Init(env Environment) error

	// SupportedDirectives returns the directive names the processor
	// watches for, or AllDirectives.
	SupportedDirectives() []string

	// Process handles one round. The claimed result tells the
	// service that the processor consumed the round's directives.
	Process(ctx context.Context, round Round) (claimed bool, err error)
}

// Environment is the view of the pass a processor receives in Init.
type Environment interface {
	Messager() Messager
	Filer() Filer

	// Options returns the processor options passed with -A.
	Options() map[string]string

	Fset() *token.FileSet

	// ModulePath is the module path of the sources under compilation.
	ModulePath() string
}

// Messager reports diagnostics.
type Messager interface {
	// Printf reports a diagnostic at pos, which may be token.NoPos.
	Printf(kind diagnostic.Kind, pos token.Pos, format string, args ...any)

	// Report forwards a fully built diagnostic.
	Report(d diagnostic.Diagnostic)
}

// Filer creates generated artifacts.
type Filer interface {
	// CreateSource creates a Go file in package pkgPath. The file is
	// compiled and processed in the next round.
	CreateSource(pkgPath, fileName string) (io.WriteCloser, error)

	// CreateResource creates a non-Go file under package pkgPath.
	CreateResource(pkgPath, relName string) (io.WriteCloser, error)

	// Resource opens an artifact generated earlier in the pass.
	Resource(loc artifact.Location, pkgPath, relName string) (io.ReadCloser, error)
}

// Round is one processing round.
type Round interface {
	// Number is the 1-based round number.
	Number() int

	// ProcessingOver is true for the final round.
	ProcessingOver() bool

	// Packages returns the packages loaded for this round.
	Packages() []*packages.Package

	// Elements returns the declarations handed out in this round.
	Elements() []Element

	// ElementsWithDirective returns the elements carrying directive
	// name.
	ElementsWithDirective(name string) []Element

	// ErrorRaised reports whether an error diagnostic was reported
	// in an earlier round.
	ErrorRaised() bool
}

// TypeName returns the dynamic type name of p, used to name
// processors in messages.
func TypeName(p Processor) string {
	return fmt.Sprintf("%T", p)
}

// Scope reports whether a processor with the given supported
// directives should run for elements.
func Scope(supported []string, elements []Element) bool {
	for _, s := range supported {
		if s == AllDirectives {
			return true
		}
		for _, el := range elements {
			if el.HasDirective(s) {
				return true
			}
		}
	}
	return false
}
