package processors

import (
	"context"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/processor"
)

// PureDirective marks a function that must not mutate package
// variables, its receiver or its arguments.
const PureDirective = "gen:pure"

// Purity builds SSA for the packages of marked functions and reports
// every store that escapes the function as an error.
type Purity struct {
	env processor.Environment
}

// Init keeps env for reporting.
func (p *Purity) Init(env processor.Environment) error {
	p.env = env
	return nil
}

// SupportedDirectives returns the pure directive.
func (p *Purity) SupportedDirectives() []string { return []string{PureDirective} }

// Process checks every function marked pure.
func (p *Purity) Process(_ context.Context, r processor.Round) (bool, error) {
	marked := r.ElementsWithDirective(PureDirective)
	built := make(map[*packages.Package]*ssa.Program)

	for _, el := range marked {
		fnObj, ok := el.Object.(*types.Func)
		if !ok {
			p.env.Messager().Printf(diagnostic.Error, el.Pos(), "//%s applies to functions only", PureDirective)
			continue
		}
		prog, ok := built[el.Package]
		if !ok {
			prog = buildSSA(el.Package)
			built[el.Package] = prog
		}
		fn := prog.FuncValue(fnObj)
		if fn == nil {
			continue
		}
		for _, m := range mutations(fn) {
			pos := m.pos
			if !pos.IsValid() {
				pos = el.Pos()
			}
			p.env.Messager().Printf(diagnostic.Error, pos, "%s is marked pure but %s", el.Name, m.what)
		}
	}
	return len(marked) > 0, nil
}

func buildSSA(pkg *packages.Package) *ssa.Program {
	prog, _ := ssautil.AllPackages([]*packages.Package{pkg}, ssa.InstantiateGenerics)
	prog.Build()
	return prog
}

type mutation struct {
	pos  token.Pos
	what string
}

// mutations walks fn and its closures for stores and map updates
// whose address is rooted in a package variable or a parameter.
func mutations(fn *ssa.Function) []mutation {
	var out []mutation
	var walk func(f *ssa.Function)
	walk = func(f *ssa.Function) {
		for _, b := range f.Blocks {
			for _, instr := range b.Instrs {
				var addr ssa.Value
				var verb string
				switch in := instr.(type) {
				case *ssa.Store:
					addr, verb = in.Addr, "writes"
				case *ssa.MapUpdate:
					addr, verb = in.Map, "updates map"
				default:
					continue
				}
				switch root := rootOf(addr).(type) {
				case *ssa.Global:
					out = append(out, mutation{instr.Pos(), verb + " package variable " + root.Name()})
				case *ssa.Parameter:
					if isPointerLike(root.Type()) {
						out = append(out, mutation{instr.Pos(), verb + " through parameter " + root.Name()})
					}
				}
			}
		}
		for _, anon := range f.AnonFuncs {
			walk(anon)
		}
	}
	walk(fn)
	return out
}

// rootOf follows field, element and pointer-conversion addressing
// back to the value the address was derived from.
func rootOf(v ssa.Value) ssa.Value {
	for {
		switch x := v.(type) {
		case *ssa.FieldAddr:
			v = x.X
		case *ssa.IndexAddr:
			v = x.X
		case *ssa.Slice:
			v = x.X
		case *ssa.ChangeType:
			v = x.X
		case *ssa.UnOp:
			if x.Op != token.MUL {
				return v
			}
			v = x.X
		default:
			return v
		}
	}
}

func isPointerLike(t types.Type) bool {
	switch t.Underlying().(type) {
	case *types.Pointer, *types.Map, *types.Slice:
		return true
	}
	return false
}
