// Package harness runs compilation tests: it resolves the processors
// of a Request, instruments them, runs one compilation pass and
// verifies the outcome against the declared expectations.
package harness

import (
	"fmt"
	"path"
	"reflect"
	"strings"

	"golang.org/x/text/language"

	"github.com/unbound-force/gencheck/internal/artifact"
	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/failure"
	"github.com/unbound-force/gencheck/internal/matcher"
	"github.com/unbound-force/gencheck/internal/processor"
)

// Success is the expected outcome of the pass.
type Success int

// Success values.
const (
	Unchecked Success = iota
	MustSucceed
	MustFail
)

func (s Success) String() string {
	switch s {
	case MustSucceed:
		return "must succeed"
	case MustFail:
		return "must fail"
	default:
		return "unchecked"
	}
}

// Mode selects how a diagnostic message is compared.
type Mode int

// Comparison modes.
const (
	// Equals requires the message to equal Message exactly.
	Equals Mode = iota

	// ContainsAll requires the message to contain every token, in
	// any order.
	ContainsAll
)

// DiagnosticExpectation declares a diagnostic the pass must report.
// Zero-valued constraints are not checked.
type DiagnosticExpectation struct {
	Kind    diagnostic.Kind
	Mode    Mode
	Message string
	Tokens  []string

	Source string
	Line   int
	Column int
	Locale language.Tag
}

// DiagnosticEquals expects a diagnostic of kind with message msg.
func DiagnosticEquals(kind diagnostic.Kind, msg string) DiagnosticExpectation {
	return DiagnosticExpectation{Kind: kind, Mode: Equals, Message: msg}
}

// DiagnosticContains expects a diagnostic of kind whose message
// contains every token.
func DiagnosticContains(kind diagnostic.Kind, tokens ...string) DiagnosticExpectation {
	return DiagnosticExpectation{Kind: kind, Mode: ContainsAll, Tokens: tokens}
}

// At constrains the position of the diagnostic.
func (d DiagnosticExpectation) At(source string, line, column int) DiagnosticExpectation {
	d.Source, d.Line, d.Column = source, line, column
	return d
}

// In constrains the locale of the diagnostic.
func (d DiagnosticExpectation) In(tag language.Tag) DiagnosticExpectation {
	d.Locale = tag
	return d
}

// Describe renders the expected tokens for failure messages.
func (d DiagnosticExpectation) Describe() string {
	if d.Mode == Equals {
		return fmt.Sprintf("%q", d.Message)
	}
	quoted := make([]string, len(d.Tokens))
	for i, t := range d.Tokens {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return "containing [" + strings.Join(quoted, ", ") + "]"
}

// Matches reports whether diagnostic got satisfies the expectation.
func (d DiagnosticExpectation) Matches(got diagnostic.Diagnostic) bool {
	if got.Kind != d.Kind {
		return false
	}
	switch d.Mode {
	case Equals:
		if got.Message != d.Message {
			return false
		}
	case ContainsAll:
		for _, tok := range d.Tokens {
			if !strings.Contains(got.Message, tok) {
				return false
			}
		}
	}
	if d.Source != "" && got.Source != d.Source {
		return false
	}
	if d.Line != 0 && got.Line != d.Line {
		return false
	}
	if d.Column != 0 && got.Column != d.Column {
		return false
	}
	if d.Locale != language.Und && got.Language() != d.Locale {
		return false
	}
	return true
}

// ArtifactExpectation declares that an artifact must or must not be
// produced. Matchers run in order against an existing artifact.
type ArtifactExpectation struct {
	ID       artifact.ID
	Exists   bool
	Matchers []matcher.Matcher
}

// ExpectArtifact expects id to exist and match every matcher.
// Matchers with equal configuration are kept once.
func ExpectArtifact(id artifact.ID, ms ...matcher.Matcher) ArtifactExpectation {
	return ArtifactExpectation{ID: id, Exists: true, Matchers: matcher.Dedupe(ms)}
}

// ExpectNoArtifact expects id not to exist.
func ExpectNoArtifact(id artifact.ID) ArtifactExpectation {
	return ArtifactExpectation{ID: id}
}

// ProcessorSpec configures one processor. Exactly one of Instance,
// Type and Factory is set.
type ProcessorSpec struct {
	Instance processor.Processor

	// Type is instantiated with its zero value; pointer types get a
	// new zero element.
	Type reflect.Type

	Factory func() (processor.Processor, error)

	// Expected declares the error the processor must fail with.
	Expected *processor.ErrorKind
}

// Instance configures a processor instance.
func Instance(p processor.Processor) ProcessorSpec {
	return ProcessorSpec{Instance: p}
}

// TypeOf configures a processor by type.
func TypeOf[T processor.Processor]() ProcessorSpec {
	return ProcessorSpec{Type: reflect.TypeFor[T]()}
}

// Factory configures a processor built by fn.
func Factory(fn func() (processor.Processor, error)) ProcessorSpec {
	return ProcessorSpec{Factory: fn}
}

// Expecting declares the error kind the processor must fail with.
func (s ProcessorSpec) Expecting(k *processor.ErrorKind) ProcessorSpec {
	s.Expected = k
	return s
}

// Name describes the spec for messages.
func (s ProcessorSpec) Name() string {
	switch {
	case s.Instance != nil:
		return processor.TypeName(s.Instance)
	case s.Type != nil:
		return s.Type.String()
	case s.Factory != nil:
		return "factory"
	default:
		return "<none>"
	}
}

var processorType = reflect.TypeFor[processor.Processor]()

// Resolve returns a live processor instance. Failures are
// configuration errors.
func (s ProcessorSpec) Resolve() (processor.Processor, error) {
	switch {
	case s.Instance != nil:
		return s.Instance, nil

	case s.Factory != nil:
		var p processor.Processor
		err := processor.Call(func() error {
			var err error
			p, err = s.Factory()
			return err
		})
		if err != nil {
			return nil, &failure.ConfigError{Message: "processor factory failed", Cause: err}
		}
		if p == nil {
			return nil, failure.Configf("processor factory returned nil")
		}
		return p, nil

	case s.Type != nil:
		var v reflect.Value
		switch s.Type.Kind() {
		case reflect.Pointer:
			if s.Type.Elem().Kind() == reflect.Interface {
				return nil, failure.Configf("processor type %s cannot be instantiated", s.Type)
			}
			v = reflect.New(s.Type.Elem())
		case reflect.Interface, reflect.Func, reflect.Chan:
			return nil, failure.Configf("processor type %s cannot be instantiated", s.Type)
		default:
			v = reflect.New(s.Type).Elem()
		}
		if !v.Type().Implements(processorType) {
			return nil, failure.Configf("type %s does not implement processor.Processor", s.Type)
		}
		return v.Interface().(processor.Processor), nil
	}
	return nil, failure.Configf("processor spec without instance, type or factory")
}

// Request describes one compilation test. It is not modified by Run.
type Request struct {
	Sources    []artifact.Source
	Processors []ProcessorSpec

	// UnitTest synthesizes the only processor of the pass. It cannot
	// be combined with Processors.
	UnitTest UnitTest

	Options []string
	Modules []string
	Success Success

	Diagnostics []DiagnosticExpectation
	Artifacts   []ArtifactExpectation

	// ExpectedError applies to the unit-test processor and to every
	// processor spec without its own Expected.
	ExpectedError *processor.ErrorKind
}

// Validate checks the request for contradictions and structural
// problems. Every failure is a *failure.ConfigError.
func (r *Request) Validate() error {
	if r.Success == MustSucceed {
		for _, d := range r.Diagnostics {
			if d.Kind == diagnostic.Error {
				return failure.Configf("a compilation that must succeed cannot expect error diagnostics (expected error %s)", d.Describe())
			}
		}
	}

	if r.UnitTest != nil && len(r.Processors) > 0 {
		return failure.Configf("a unit test cannot be combined with explicit processors")
	}
	if r.UnitTest != nil {
		if err := r.UnitTest.validate(); err != nil {
			return err
		}
	}

	for i, p := range r.Processors {
		n := 0
		if p.Instance != nil {
			n++
		}
		if p.Type != nil {
			n++
		}
		if p.Factory != nil {
			n++
		}
		if n != 1 {
			return failure.Configf("processor %d: exactly one of instance, type or factory must be set", i)
		}
	}

	seen := make(map[string]bool, len(r.Sources))
	for _, s := range r.Sources {
		clean := path.Clean(s.Name)
		if s.Name == "" || clean != s.Name || path.IsAbs(clean) || strings.HasPrefix(clean, "../") {
			return failure.Configf("source %q: name must be a clean relative path", s.Name)
		}
		if clean == "go.mod" || clean == "go.work" {
			return failure.Configf("source %q: reserved file name", s.Name)
		}
		if seen[clean] {
			return failure.Configf("source %q given twice", s.Name)
		}
		seen[clean] = true
	}

	for _, d := range r.Diagnostics {
		if _, err := diagnostic.ParseKind(string(d.Kind)); err != nil {
			return &failure.ConfigError{Message: "diagnostic expectation", Cause: err}
		}
		if d.Mode == ContainsAll && len(d.Tokens) == 0 {
			return failure.Configf("%s diagnostic expectation without tokens", d.Kind)
		}
	}

	for _, a := range r.Artifacts {
		if err := a.ID.Validate(); err != nil {
			return &failure.ConfigError{Message: "artifact expectation", Cause: err}
		}
		if !a.Exists && len(a.Matchers) > 0 {
			return failure.Configf("artifact %s: matchers given for an artifact that must not exist", a.ID)
		}
	}
	return nil
}
