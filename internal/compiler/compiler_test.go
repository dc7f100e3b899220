package compiler_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/unbound-force/gencheck/internal/artifact"
	"github.com/unbound-force/gencheck/internal/compiler"
	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/processor"
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

func TestNormalizeOptions(t *testing.T) {
	got := compiler.NormalizeOptions([]string{"-go 1.22", "  -tags", "a,b  ", ""})
	want := []string{"-go", "1.22", "-tags", "a,b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NormalizeOptions() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseOptions(t *testing.T) {
	opts, invalid := compiler.ParseOptions([]string{
		"-tags", "a, b", "-A", "k=v", "-Aflag", "-module", "example.com/x", "-go", "1.21",
	})
	if len(invalid) != 0 {
		t.Fatalf("unexpected invalid options: %v", invalid)
	}
	if diff := cmp.Diff([]string{"a", "b"}, opts.Tags); diff != "" {
		t.Errorf("Tags mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]string{"k": "v", "flag": ""}, opts.Processor); diff != "" {
		t.Errorf("Processor mismatch (-want +got):\n%s", diff)
	}
	if opts.ModulePath != "example.com/x" || opts.GoVersion != "1.21" {
		t.Errorf("ModulePath, GoVersion = %q, %q", opts.ModulePath, opts.GoVersion)
	}
}

func TestParseOptions_Invalid(t *testing.T) {
	_, invalid := compiler.ParseOptions([]string{"-bogus", "-go", "banana", "-tags"})
	want := []string{
		"invalid flag: -bogus",
		"invalid go version: banana",
		"flag needs an argument: -tags",
	}
	if diff := cmp.Diff(want, invalid); diff != "" {
		t.Errorf("invalid mismatch (-want +got):\n%s", diff)
	}
}

func TestGoMod_RequiresAndReplaces(t *testing.T) {
	opts, _ := compiler.ParseOptions([]string{"-module", "example.com/m", "-go", "1.22"})
	data, err := compiler.GoMod(opts, map[string]string{
		"example.com/lib/v2": "/tmp/lib",
		"example.com/other":  "/tmp/other",
	})
	if err != nil {
		t.Fatalf("goMod() failed: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"module example.com/m",
		"go 1.22",
		"example.com/lib/v2 v2.0.0-00010101000000-000000000000",
		"example.com/other v0.0.0-00010101000000-000000000000",
		"example.com/lib/v2 => /tmp/lib",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("go.mod should contain %q:\n%s", want, text)
		}
	}
}

// ---------------------------------------------------------------------------
// Passes
// ---------------------------------------------------------------------------

// genProcessor writes <Name>_gen.go for every element carrying
// //test:gen and records the element names it saw per round.
type genProcessor struct {
	env    processor.Environment
	seen   map[int][]string
	final  bool
	rounds int
}

func (p *genProcessor) Init(env processor.Environment) error {
	p.env = env
	p.seen = make(map[int][]string)
	return nil
}

func (p *genProcessor) SupportedDirectives() []string { return []string{"test:gen"} }

func (p *genProcessor) Process(_ context.Context, r processor.Round) (bool, error) {
	p.rounds++
	if r.ProcessingOver() {
		p.final = true
		return false, nil
	}
	for _, el := range r.Elements() {
		p.seen[r.Number()] = append(p.seen[r.Number()], el.Name)
	}
	for _, el := range r.ElementsWithDirective("test:gen") {
		w, err := p.env.Filer().CreateSource(el.Package.PkgPath, strings.ToLower(el.Name)+"_gen.go")
		if err != nil {
			return false, err
		}
		fmt.Fprintf(w, "package %s\n\nfunc %sGenerated() string { return %q }\n", el.Package.Name, el.Name, el.Name)
		if err := w.Close(); err != nil {
			return false, err
		}
	}
	return true, nil
}

func newTask(t *testing.T, sink diagnostic.Sink, procs ...processor.Processor) compiler.Task {
	t.Helper()
	store, err := artifact.NewStore()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return compiler.Task{
		Sources: []artifact.Source{{
			Name:    "a/a.go",
			Content: []byte("package a\n\n//test:gen\ntype Foo struct{}\n\nvar Plain = 1\n"),
		}},
		Processors: procs,
		Options:    []string{"-module", "example.com/m"},
		Sink:       sink,
		Store:      store,
	}
}

func TestCompile_MultiRound(t *testing.T) {
	var sink diagnostic.Collector
	p := &genProcessor{}
	task := newTask(t, &sink, p)

	ok, err := compiler.New().Compile(context.Background(), task)
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	if !ok {
		t.Fatalf("Compile() = false; diagnostics:\n%s", diagnostic.Format(sink.Diagnostics()))
	}

	if diff := cmp.Diff([]string{"Foo", "Plain"}, p.seen[1]); diff != "" {
		t.Errorf("round 1 elements mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"FooGenerated"}, p.seen[2]); diff != "" {
		t.Errorf("round 2 elements mismatch (-want +got):\n%s", diff)
	}
	if !p.final || p.rounds != 3 {
		t.Errorf("final = %v, rounds = %d; want a final third round", p.final, p.rounds)
	}

	id := artifact.SourceID("example.com/m/a", "foo_gen.go")
	a, ok := task.Store.Get(id)
	if !ok {
		t.Fatalf("%s not in store: %v", id, task.Store.List())
	}
	data, err := artifact.Bytes(a)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "func FooGenerated()") {
		t.Errorf("unexpected generated content:\n%s", data)
	}
}

func TestCompile_TypeErrorsBecomeDiagnostics(t *testing.T) {
	var sink diagnostic.Collector
	task := newTask(t, &sink)
	task.Sources = []artifact.Source{{Name: "a/a.go", Content: []byte("package a\n\nvar X int = \"s\"\n")}}

	ok, err := compiler.New().Compile(context.Background(), task)
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	if ok {
		t.Fatal("Compile() = true for a package with a type error")
	}
	errs := diagnostic.NewIndex(sink.Diagnostics()).Of(diagnostic.Error)
	if len(errs) == 0 {
		t.Fatal("expected an error diagnostic")
	}
	if errs[0].Source != "a/a.go" || errs[0].Line != 3 {
		t.Errorf("error at %s:%d, want a/a.go:3", errs[0].Source, errs[0].Line)
	}
}

func TestCompile_InvalidFlag(t *testing.T) {
	var sink diagnostic.Collector
	task := newTask(t, &sink)
	task.Options = []string{"-nope"}

	ok, err := compiler.New().Compile(context.Background(), task)
	if err != nil || ok {
		t.Fatalf("Compile() = %v, %v; want false, nil", ok, err)
	}
	if !diagnostic.NewIndex(sink.Diagnostics()).Contains(diagnostic.Error, "invalid flag: -nope") {
		t.Errorf("missing invalid flag diagnostic: %v", sink.Diagnostics())
	}
}

type failing struct{ err error }

func (f failing) Init(processor.Environment) error { return nil }
func (f failing) SupportedDirectives() []string    { return []string{processor.AllDirectives} }
func (f failing) Process(context.Context, processor.Round) (bool, error) {
	return false, f.err
}

func TestCompile_ProcessorErrorAborts(t *testing.T) {
	sentinel := errors.New("broken")
	var sink diagnostic.Collector
	task := newTask(t, &sink, failing{err: sentinel})

	_, err := compiler.New().Compile(context.Background(), task)
	if !errors.Is(err, sentinel) {
		t.Fatalf("Compile() error = %v, want it to wrap %v", err, sentinel)
	}
}

type resourceWriter struct {
	env processor.Environment
}

func (p *resourceWriter) Init(env processor.Environment) error { p.env = env; return nil }
func (p *resourceWriter) SupportedDirectives() []string       { return []string{processor.AllDirectives} }

func (p *resourceWriter) Process(_ context.Context, r processor.Round) (bool, error) {
	if r.Number() != 1 {
		return false, nil
	}
	w, err := p.env.Filer().CreateResource("root", "Jupp.txt")
	if err != nil {
		return false, err
	}
	if _, err := io.WriteString(w, "TATA!"); err != nil {
		return false, err
	}
	return false, w.Close()
}

func TestCompile_Resource(t *testing.T) {
	var sink diagnostic.Collector
	task := newTask(t, &sink, &resourceWriter{})

	ok, err := compiler.New().Compile(context.Background(), task)
	if err != nil || !ok {
		t.Fatalf("Compile() = %v, %v", ok, err)
	}
	a, found := task.Store.Get(artifact.ResourceID("root", "Jupp.txt"))
	if !found {
		t.Fatal("resource not stored")
	}
	data, _ := artifact.Bytes(a)
	if string(data) != "TATA!" {
		t.Errorf("resource content = %q", data)
	}
}

func TestCompile_CanceledContext(t *testing.T) {
	var sink diagnostic.Collector
	task := newTask(t, &sink)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := compiler.New().Compile(ctx, task); !errors.Is(err, context.Canceled) {
		t.Errorf("Compile() error = %v, want context.Canceled", err)
	}
}

// blockedWriter creates a source in a package whose directory path is
// taken by an existing file.
type blockedWriter struct {
	env processor.Environment
	err error
}

func (p *blockedWriter) Init(env processor.Environment) error { p.env = env; return nil }
func (p *blockedWriter) SupportedDirectives() []string       { return []string{processor.AllDirectives} }

func (p *blockedWriter) Process(_ context.Context, r processor.Round) (bool, error) {
	if r.Number() != 1 {
		return false, nil
	}
	w, err := p.env.Filer().CreateSource("example.com/m/a/a.go", "x_gen.go")
	if err == nil {
		w.Close()
	}
	p.err = err
	return false, nil
}

func TestCompile_FailedSourceLeavesNoArtifact(t *testing.T) {
	var sink diagnostic.Collector
	p := &blockedWriter{}
	task := newTask(t, &sink, p)

	if _, err := compiler.New().Compile(context.Background(), task); err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	if p.err == nil {
		t.Fatal("CreateSource() succeeded below a regular file")
	}
	id := artifact.SourceID("example.com/m/a/a.go", "x_gen.go")
	if task.Store.Exists(id) {
		t.Errorf("%s left in store after a failed create: %v", id, task.Store.List())
	}
}
