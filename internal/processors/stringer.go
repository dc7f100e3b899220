package processors

import (
	"bytes"
	"context"
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/imports"

	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/processor"
)

// StringerDirective marks an integer type for String generation.
const StringerDirective = "gen:stringer"

// Stringer generates <type>_string.go with a String method for every
// marked integer type, naming the values after the constants of the
// type declared in the same package.
type Stringer struct {
	env processor.Environment
}

// Init keeps env for writing sources.
func (s *Stringer) Init(env processor.Environment) error {
	s.env = env
	return nil
}

// SupportedDirectives returns the stringer directive.
func (s *Stringer) SupportedDirectives() []string { return []string{StringerDirective} }

// Process writes a String method for each marked type.
func (s *Stringer) Process(_ context.Context, r processor.Round) (bool, error) {
	marked := r.ElementsWithDirective(StringerDirective)
	for _, el := range marked {
		tn, ok := el.Object.(*types.TypeName)
		if !ok || el.Kind != processor.KindType {
			s.env.Messager().Printf(diagnostic.Error, el.Pos(), "//%s applies to type declarations only", StringerDirective)
			continue
		}
		basic, ok := tn.Type().Underlying().(*types.Basic)
		if !ok || basic.Info()&types.IsInteger == 0 {
			s.env.Messager().Printf(diagnostic.Error, el.Pos(), "%s: //%s needs an integer type", tn.Name(), StringerDirective)
			continue
		}

		consts := constantsOf(tn)
		if len(consts) == 0 {
			s.env.Messager().Printf(diagnostic.Warning, el.Pos(), "%s: no constants found", tn.Name())
		}

		src, err := stringerSource(tn, consts)
		if err != nil {
			return false, err
		}
		file := strings.ToLower(tn.Name()) + "_string.go"
		w, err := s.env.Filer().CreateSource(tn.Pkg().Path(), file)
		if err != nil {
			return false, err
		}
		if _, err := w.Write(src); err != nil {
			w.Close()
			return false, err
		}
		if err := w.Close(); err != nil {
			return false, err
		}
	}
	return len(marked) > 0, nil
}

// constantsOf returns the package-level constants of type tn,
// ordered by value.
func constantsOf(tn *types.TypeName) []*types.Const {
	scope := tn.Pkg().Scope()
	var out []*types.Const
	for _, name := range scope.Names() {
		c, ok := scope.Lookup(name).(*types.Const)
		if ok && types.Identical(c.Type(), tn.Type()) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Val(), out[j].Val()
		if constant.Compare(a, token.EQL, b) {
			return out[i].Pos() < out[j].Pos()
		}
		return constant.Compare(a, token.LSS, b)
	})
	return out
}

func stringerSource(tn *types.TypeName, consts []*types.Const) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "// Code generated by gencheck stringer. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", tn.Pkg().Name())
	fmt.Fprintf(&b, "func (v %s) String() string {\n\tswitch v {\n", tn.Name())
	seen := make(map[string]bool)
	for _, c := range consts {
		val := c.Val().ExactString()
		if seen[val] {
			continue
		}
		seen[val] = true
		fmt.Fprintf(&b, "\tcase %s:\n\t\treturn %q\n", c.Name(), c.Name())
	}
	fmt.Fprintf(&b, "\t}\n\treturn %q + strconv.FormatInt(int64(v), 10) + \")\"\n}\n", tn.Name()+"(")

	name := strings.ToLower(tn.Name()) + "_string.go"
	out, err := imports.Process(filepath.Join(tn.Pkg().Path(), name), b.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("formatting generated %s: %w", name, err)
	}
	return out, nil
}
