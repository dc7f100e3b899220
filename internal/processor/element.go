package processor

import (
	"go/ast"
	"go/token"
	"go/types"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

// ElementKind classifies a declaration.
type ElementKind string

// Element kinds.
const (
	KindType   ElementKind = "type"
	KindFunc   ElementKind = "func"
	KindMethod ElementKind = "method"
	KindVar    ElementKind = "var"
	KindConst  ElementKind = "const"
)

// Directive is a machine-readable comment of the form
// "//name:sub args" attached to a declaration.
type Directive struct {
	Name string
	Args string
}

// Element is a package-level declaration handed to processors.
type Element struct {
	// Name is the declared name; methods use "Recv.Method".
	Name string
	Kind ElementKind

	// Object is the type-checked object, nil when type checking
	// failed for the declaration.
	Object types.Object

	// Decl is the *ast.FuncDecl, *ast.TypeSpec or *ast.ValueSpec.
	Decl ast.Node

	// File is the absolute path of the declaring file.
	File string

	Package    *packages.Package
	Directives []Directive
}

// Pos returns the position of the declaration.
func (e Element) Pos() token.Pos {
	if e.Decl == nil {
		return token.NoPos
	}
	return e.Decl.Pos()
}

// QualifiedName returns the package-qualified name.
func (e Element) QualifiedName() string {
	if e.Package == nil {
		return e.Name
	}
	return e.Package.PkgPath + "." + e.Name
}

// HasDirective reports whether the element carries directive name.
func (e Element) HasDirective(name string) bool {
	_, ok := e.Directive(name)
	return ok
}

// Directive returns the first directive called name.
func (e Element) Directive(name string) (Directive, bool) {
	for _, d := range e.Directives {
		if d.Name == name {
			return d, true
		}
	}
	return Directive{}, false
}

// ParseDirectives extracts directives from comment groups. Only
// comments with no space after "//" and a colon-separated name
// qualify, matching the //go: convention.
func ParseDirectives(groups ...*ast.CommentGroup) []Directive {
	var out []Directive
	for _, g := range groups {
		if g == nil {
			continue
		}
		for _, c := range g.List {
			if d, ok := parseDirective(c.Text); ok {
				out = append(out, d)
			}
		}
	}
	return out
}

func parseDirective(text string) (Directive, bool) {
	body, ok := strings.CutPrefix(text, "//")
	if !ok || body == "" || body[0] == ' ' || body[0] == '\t' {
		return Directive{}, false
	}
	name, args, _ := strings.Cut(body, " ")
	colon := strings.IndexByte(name, ':')
	if colon <= 0 || colon == len(name)-1 {
		return Directive{}, false
	}
	return Directive{Name: name, Args: strings.TrimSpace(args)}, true
}

// CollectElements returns the declarations of pkg. When files is
// non-nil only declarations of those absolute file paths are
// returned.
func CollectElements(pkg *packages.Package, files map[string]bool) []Element {
	var out []Element
	for i, f := range pkg.Syntax {
		filename := pkg.Fset.Position(f.Pos()).Filename
		if i < len(pkg.CompiledGoFiles) {
			filename = pkg.CompiledGoFiles[i]
		}
		if files != nil && !files[filename] {
			continue
		}
		out = append(out, fileElements(pkg, f, filename)...)
	}
	return out
}

func fileElements(pkg *packages.Package, f *ast.File, filename string) []Element {
	var out []Element
	lookup := func(id *ast.Ident) types.Object {
		if pkg.TypesInfo == nil {
			return nil
		}
		return pkg.TypesInfo.Defs[id]
	}

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			el := Element{
				Name:       d.Name.Name,
				Kind:       KindFunc,
				Object:     lookup(d.Name),
				Decl:       d,
				File:       filename,
				Package:    pkg,
				Directives: ParseDirectives(d.Doc),
			}
			if recv := receiverName(d); recv != "" {
				el.Name = recv + "." + d.Name.Name
				el.Kind = KindMethod
			}
			out = append(out, el)

		case *ast.GenDecl:
			var shared *ast.CommentGroup
			if !d.Lparen.IsValid() {
				shared = d.Doc
			}
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					out = append(out, Element{
						Name:       s.Name.Name,
						Kind:       KindType,
						Object:     lookup(s.Name),
						Decl:       s,
						File:       filename,
						Package:    pkg,
						Directives: ParseDirectives(shared, s.Doc),
					})
				case *ast.ValueSpec:
					kind := KindVar
					if d.Tok == token.CONST {
						kind = KindConst
					}
					for _, name := range s.Names {
						if name.Name == "_" {
							continue
						}
						out = append(out, Element{
							Name:       name.Name,
							Kind:       kind,
							Object:     lookup(name),
							Decl:       s,
							File:       filename,
							Package:    pkg,
							Directives: ParseDirectives(shared, s.Doc),
						})
					}
				}
			}
		}
	}
	return out
}

func receiverName(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return ""
	}
	expr := fd.Recv.List[0].Type
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.Ident:
			return e.Name
		default:
			return ""
		}
	}
}

// FilterDirective returns the elements carrying directive name.
func FilterDirective(elements []Element, name string) []Element {
	var out []Element
	for _, el := range elements {
		if el.HasDirective(name) {
			out = append(out, el)
		}
	}
	return out
}

// SortElements orders elements by file and position.
func SortElements(elements []Element) {
	sort.SliceStable(elements, func(i, j int) bool {
		if elements[i].File != elements[j].File {
			return elements[i].File < elements[j].File
		}
		return elements[i].Pos() < elements[j].Pos()
	})
}
