// Package instrument wraps processors so a compilation test can
// observe whether each one ran and whether it failed, without
// changing the artifacts or diagnostics it produces.
package instrument

import (
	"context"
	"fmt"
	"go/token"
	"strings"

	"github.com/google/uuid"

	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/failure"
	"github.com/unbound-force/gencheck/internal/processor"
	"github.com/unbound-force/gencheck/internal/reporter"
)

// OutcomeKind classifies one delegated round.
type OutcomeKind int

// Outcome kinds.
const (
	// Succeeded means the processor returned without error.
	Succeeded OutcomeKind = iota

	// ExpectedFailure means the processor failed with the declared
	// error kind; the error is swallowed.
	ExpectedFailure

	// UnexpectedFailure means the processor failed in a way the
	// test did not declare.
	UnexpectedFailure

	// PassThrough means the processor returned an assertion or
	// configuration failure that must escape unchanged.
	PassThrough
)

func (k OutcomeKind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case ExpectedFailure:
		return "expected failure"
	case UnexpectedFailure:
		return "unexpected failure"
	case PassThrough:
		return "pass-through"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of delegating one round.
type Outcome struct {
	Kind    OutcomeKind
	Claimed bool

	// Err is the processor's error for every kind but Succeeded.
	Err error
}

// Wrapped is a processor under observation for one pass.
type Wrapped struct {
	proc     processor.Processor
	expected *processor.ErrorKind
	rep      reporter.Reporter
	token    string

	messager processor.Messager
	invoked  bool
	observed bool

	// dump, when set, renders the pass state appended to every
	// assertion failure the wrapper raises.
	dump func() string
}

// Wrap instruments p. expected, when non-nil, declares the error kind
// p must fail with during the pass. Assertion failures raised by the
// wrapper go through rep.
func Wrap(p processor.Processor, expected *processor.ErrorKind, rep reporter.Reporter) *Wrapped {
	if rep == nil {
		rep = reporter.Default{}
	}
	return &Wrapped{
		proc:     p,
		expected: expected,
		rep:      rep,
		token:    uuid.NewString(),
	}
}

// SetDebugDump installs fn to render the pass state that is appended
// to the assertion failures raised by the wrapper. fn is called at
// raise time.
func (w *Wrapped) SetDebugDump(fn func() string) { w.dump = fn }

func (w *Wrapped) fail(msg string, cause error) error {
	if w.dump != nil {
		msg += "\n\n" + w.dump()
	}
	if cause == nil {
		return w.rep.Fail(msg)
	}
	return w.rep.FailWithCause(msg, cause)
}

// Unwrap returns the wrapped processor.
func (w *Wrapped) Unwrap() processor.Processor { return w.proc }

// Invoked reports whether the processor ran in this pass.
func (w *Wrapped) Invoked() bool { return w.invoked }

// ExpectedObserved reports whether the declared error was raised and
// swallowed.
func (w *Wrapped) ExpectedObserved() bool { return w.observed }

// Expected returns the declared error kind, or nil.
func (w *Wrapped) Expected() *processor.ErrorKind { return w.expected }

// TypeName returns the wrapped processor's type name.
func (w *Wrapped) TypeName() string { return processor.TypeName(w.proc) }

// SentinelMessage is the note reported on the first round the
// processor runs. The token tells apart two instances of one type.
func (w *Wrapped) SentinelMessage() string {
	return fmt.Sprintf("gencheck: processor %s [%s] was applied", w.TypeName(), w.token)
}

// Scope returns the processor's supported directives.
func (w *Wrapped) Scope() []string {
	return w.proc.SupportedDirectives()
}

// ScopeString renders Scope for messages.
func (w *Wrapped) ScopeString() string {
	scope := w.Scope()
	if len(scope) == 0 {
		return "[]"
	}
	return "[" + strings.Join(scope, ", ") + "]"
}

// Init keeps the messager for the sentinel and delegates.
func (w *Wrapped) Init(env processor.Environment) error {
	w.messager = env.Messager()
	return w.proc.Init(env)
}

// SupportedDirectives delegates to the wrapped processor.
func (w *Wrapped) SupportedDirectives() []string {
	return w.proc.SupportedDirectives()
}

// Process reports the sentinel on the first call, delegates, and
// maps the delegation outcome to the round result.
func (w *Wrapped) Process(ctx context.Context, round processor.Round) (bool, error) {
	if !w.invoked {
		w.invoked = true
		if w.messager != nil {
			w.messager.Printf(diagnostic.Note, token.NoPos, "%s", w.SentinelMessage())
		}
	}

	out := w.Delegate(ctx, round)
	switch out.Kind {
	case Succeeded:
		if round.ProcessingOver() && w.expected != nil && !w.observed {
			return false, w.fail(fmt.Sprintf(
				"expected error %s was not returned by processor %s", w.expected, w.TypeName()), nil)
		}
		return out.Claimed, nil
	case ExpectedFailure:
		w.observed = true
		return true, nil
	case PassThrough:
		return false, out.Err
	default:
		if w.expected != nil {
			return false, w.fail(fmt.Sprintf(
				"processor %s: got unexpected error %s instead of expected %s",
				w.TypeName(), processor.ErrorTypeName(out.Err), w.expected), out.Err)
		}
		return false, w.fail(fmt.Sprintf(
			"processor %s: got unexpected error %s",
			w.TypeName(), processor.ErrorTypeName(out.Err)), out.Err)
	}
}

// Delegate runs one round on the wrapped processor and classifies the
// result. Panics are recovered as *processor.PanicError.
func (w *Wrapped) Delegate(ctx context.Context, round processor.Round) Outcome {
	var claimed bool
	err := processor.Call(func() error {
		var err error
		claimed, err = w.proc.Process(ctx, round)
		return err
	})
	switch {
	case err == nil:
		return Outcome{Kind: Succeeded, Claimed: claimed}
	case failure.IsPassThrough(err):
		return Outcome{Kind: PassThrough, Err: err}
	case w.expected != nil && w.expected.Matches(err):
		return Outcome{Kind: ExpectedFailure, Claimed: true, Err: err}
	default:
		return Outcome{Kind: UnexpectedFailure, Err: err}
	}
}
