package reporter

import (
	"errors"
	"testing"

	"github.com/unbound-force/gencheck/internal/failure"
)

type named struct{ name string }

func (n named) Fail(msg string) error { return errors.New(n.name + ": " + msg) }

func (n named) FailWithCause(msg string, cause error) error {
	return errors.New(n.name + ": " + msg)
}

func TestPick_Default(t *testing.T) {
	if _, ok := pick(nil).(Default); !ok {
		t.Errorf("pick(nil) = %T, want Default", pick(nil))
	}
}

func TestPick_HighestPriority(t *testing.T) {
	got := pick([]registration{
		{r: named{"low"}, priority: 1, seq: 0},
		{r: named{"high"}, priority: 10, seq: 1},
		{r: named{"mid"}, priority: 5, seq: 2},
	})
	if got.(named).name != "high" {
		t.Errorf("pick() = %v, want high", got)
	}
}

func TestPick_TieGoesToFirst(t *testing.T) {
	got := pick([]registration{
		{r: named{"first"}, priority: 3, seq: 0},
		{r: named{"second"}, priority: 3, seq: 1},
	})
	if got.(named).name != "first" {
		t.Errorf("pick() = %v, want first", got)
	}
}

func TestDefault_ReturnsAssertionError(t *testing.T) {
	cause := errors.New("cause")
	err := Default{}.FailWithCause("expectation failed", cause)
	var ae *failure.AssertionError
	if !errors.As(err, &ae) {
		t.Fatalf("FailWithCause() = %T, want *failure.AssertionError", err)
	}
	if ae.Message != "expectation failed" || !errors.Is(err, cause) {
		t.Errorf("unexpected assertion error: %v", err)
	}
	if failure.ClassOf(Default{}.Fail("x")) != failure.ClassAssertion {
		t.Error("Fail() must produce an assertion-class error")
	}
}

type recordingTB struct {
	testing.TB
	errors []string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Error(args ...any) {
	for _, a := range args {
		r.errors = append(r.errors, a.(string))
	}
}

func TestTB_RecordsFailure(t *testing.T) {
	rec := &recordingTB{}
	err := ForTB(rec).Fail("boom")
	if len(rec.errors) != 1 || rec.errors[0] != "boom" {
		t.Errorf("recorded errors = %v", rec.errors)
	}
	if failure.ClassOf(err) != failure.ClassAssertion {
		t.Errorf("Fail() class = %q", failure.ClassOf(err))
	}
}
