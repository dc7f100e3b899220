package compiler

import (
	"errors"
	"fmt"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/tools/go/packages"

	"github.com/unbound-force/gencheck/internal/artifact"
	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/processor"
)

// environment implements processor.Environment and Messager.
type environment struct {
	pass *pass
	fset *token.FileSet
}

func (e *environment) Messager() processor.Messager { return e }
func (e *environment) Filer() processor.Filer       { return e.pass.filer }
func (e *environment) ModulePath() string           { return e.pass.opts.ModulePath }

func (e *environment) Options() map[string]string {
	out := make(map[string]string, len(e.pass.opts.Processor))
	for k, v := range e.pass.opts.Processor {
		out[k] = v
	}
	return out
}

func (e *environment) Fset() *token.FileSet {
	if e.fset == nil {
		e.fset = token.NewFileSet()
	}
	return e.fset
}

func (e *environment) Printf(kind diagnostic.Kind, pos token.Pos, format string, args ...any) {
	d := diagnostic.Diagnostic{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Lang:    language.English,
	}
	if pos.IsValid() && e.fset != nil {
		position := e.fset.Position(pos)
		d.Source = e.pass.rel(position.Filename)
		d.Line = position.Line
		d.Column = position.Column
	}
	e.pass.sink.Report(d)
}

func (e *environment) Report(d diagnostic.Diagnostic) {
	e.pass.sink.Report(d)
}

// filer writes generated artifacts to the store. Go sources are also
// written into the work directory so the next round compiles them.
type filer struct {
	dir        string
	modulePath string
	store      *artifact.Store

	// generated lists the work-dir paths of Go files created in the
	// current round.
	generated []string
}

// pkgDir maps an import path inside the module to its directory.
func (f *filer) pkgDir(pkgPath string) (string, error) {
	if pkgPath == f.modulePath {
		return f.dir, nil
	}
	rel, ok := strings.CutPrefix(pkgPath, f.modulePath+"/")
	if !ok {
		return "", fmt.Errorf("package %s is outside module %s", pkgPath, f.modulePath)
	}
	return filepath.Join(f.dir, filepath.FromSlash(rel)), nil
}

func (f *filer) CreateSource(pkgPath, fileName string) (io.WriteCloser, error) {
	id := artifact.SourceID(pkgPath, fileName)
	if err := id.Validate(); err != nil {
		return nil, err
	}
	dir, err := f.pkgDir(pkgPath)
	if err != nil {
		return nil, err
	}
	target := filepath.Join(dir, fileName)
	if _, err := os.Stat(target); err == nil {
		return nil, fmt.Errorf("%s: %w", id, artifact.ErrExists)
	}

	// The work file comes first so a failure leaves nothing in the
	// store index.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", id, err)
	}
	src, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%s: %w", id, artifact.ErrExists)
		}
		return nil, fmt.Errorf("creating %s: %w", id, err)
	}
	w, err := f.store.Create(id)
	if err != nil {
		src.Close()
		os.Remove(target)
		return nil, err
	}
	f.generated = append(f.generated, target)
	return &teeFile{Writer: io.MultiWriter(w, src), closers: []io.Closer{w, src}}, nil
}

func (f *filer) CreateResource(pkgPath, relName string) (io.WriteCloser, error) {
	return f.store.Create(artifact.ResourceID(pkgPath, relName))
}

func (f *filer) Resource(loc artifact.Location, pkgPath, relName string) (io.ReadCloser, error) {
	kind := artifact.KindResource
	if loc == artifact.SourceOutput {
		kind = artifact.KindSource
	}
	return f.store.Open(artifact.ID{Location: loc, Package: pkgPath, Name: relName, Kind: kind})
}

type teeFile struct {
	io.Writer
	closers []io.Closer
}

func (t *teeFile) Close() error {
	var errs []error
	for _, c := range t.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// round implements processor.Round.
type round struct {
	number      int
	over        bool
	pkgs        []*packages.Package
	elements    []processor.Element
	errorRaised bool
}

func (r *round) Number() int                   { return r.number }
func (r *round) ProcessingOver() bool          { return r.over }
func (r *round) Packages() []*packages.Package { return r.pkgs }
func (r *round) Elements() []processor.Element { return r.elements }
func (r *round) ErrorRaised() bool             { return r.errorRaised }

func (r *round) ElementsWithDirective(name string) []processor.Element {
	return processor.FilterDirective(r.elements, name)
}
