package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/unbound-force/gencheck/internal/diagnostic"
	"github.com/unbound-force/gencheck/internal/failure"
	"github.com/unbound-force/gencheck/internal/matcher"
)

// verify checks res against req. The first failing check raises one
// assertion failure through the reporter, with the debug dump
// appended.
func (e *Engine) verify(req *Request, res *Result) error {
	fail := func(msg string, cause error) error {
		msg = msg + "\n\n" + res.DebugDump()
		e.logger.Debug("verification failed", "message", msg)
		if cause != nil {
			return e.reporter.FailWithCause(msg, cause)
		}
		return e.reporter.Fail(msg)
	}

	idx := res.Index()

	// Every processor is checked before reporting, so the message
	// names each one that did not run.
	var notApplied []string
	for _, w := range res.Processors {
		if !idx.Contains(diagnostic.Note, w.SentinelMessage()) {
			notApplied = append(notApplied, fmt.Sprintf(
				"processor %s was not applied, check that its scope %s matches a directive in the sources",
				w.TypeName(), w.ScopeString()))
		}
	}
	if len(notApplied) > 0 {
		return fail(strings.Join(notApplied, "\n"), nil)
	}

	if req.Success == MustSucceed {
		for _, d := range req.Diagnostics {
			if d.Kind == diagnostic.Error {
				return failure.Configf("a compilation that must succeed cannot expect error diagnostics")
			}
		}
	}

	switch {
	case req.Success == MustSucceed && !res.Success:
		return fail("compilation should have succeeded but failed with:\n"+idx.ErrorText(), nil)
	case req.Success == MustFail && res.Success:
		return fail("compilation should have failed but succeeded", nil)
	}

	for _, want := range req.Diagnostics {
		if !hasDiagnostic(idx, want) {
			return fail(fmt.Sprintf("expected %s diagnostic %s%s not found; got:\n%s",
				want.Kind, want.Describe(), describeConstraints(want), formatKind(idx, want.Kind)), nil)
		}
	}

	for _, want := range req.Artifacts {
		a, found := res.Artifact(want.ID)
		if !want.Exists {
			if found {
				return fail(fmt.Sprintf("artifact %s exists but should be non-existent", want.ID), nil)
			}
			continue
		}
		if !found {
			return fail(fmt.Sprintf("artifact %s doesn't exist", want.ID), nil)
		}
		for _, m := range want.Matchers {
			err := m.Match(a)
			if err == nil {
				continue
			}
			var mismatch *matcher.MismatchError
			if errors.As(err, &mismatch) {
				return fail(fmt.Sprintf("artifact %s exists but doesn't match (%s)", want.ID, m), err)
			}
			return failure.Technical(fmt.Sprintf("reading artifact %s", want.ID), err)
		}
	}
	return nil
}

func hasDiagnostic(idx *diagnostic.Index, want DiagnosticExpectation) bool {
	for _, d := range idx.Of(want.Kind) {
		if want.Matches(d) {
			return true
		}
	}
	return false
}

func describeConstraints(d DiagnosticExpectation) string {
	var parts []string
	if d.Source != "" {
		parts = append(parts, "source "+d.Source)
	}
	if d.Line != 0 {
		parts = append(parts, fmt.Sprintf("line %d", d.Line))
	}
	if d.Column != 0 {
		parts = append(parts, fmt.Sprintf("column %d", d.Column))
	}
	if d.Locale.String() != "und" {
		parts = append(parts, "locale "+d.Locale.String())
	}
	if len(parts) == 0 {
		return ""
	}
	return " at " + strings.Join(parts, ", ")
}

func formatKind(idx *diagnostic.Index, k diagnostic.Kind) string {
	diags := idx.Of(k)
	if len(diags) == 0 {
		return fmt.Sprintf("(no %s diagnostics)", k)
	}
	return diagnostic.Format(diags)
}
