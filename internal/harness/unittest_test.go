package harness_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/unbound-force/gencheck/internal/failure"
	"github.com/unbound-force/gencheck/internal/harness"
	"github.com/unbound-force/gencheck/internal/processor"
)

func TestUnitTest_BareCallbackRunsOnce(t *testing.T) {
	calls := 0
	svc := &fakeService{}
	_, _, err := run(t, svc, &harness.Request{
		UnitTest: harness.BareCallback{Fn: func(env processor.Environment, r processor.Round) error {
			calls++
			if r.Number() != 1 {
				t.Errorf("callback ran in round %d", r.Number())
			}
			return nil
		}},
		Success: harness.MustSucceed,
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
	if len(svc.task.Sources) != 1 || svc.task.Sources[0].Name != "gencheck/passin.go" {
		t.Errorf("unit test without sources should compile the default source, got %v", svc.task.Sources)
	}
	if !strings.Contains(string(svc.task.Sources[0].Content), "//gencheck:passin") {
		t.Errorf("default source lacks the marker:\n%s", svc.task.Sources[0].Content)
	}
}

func TestUnitTest_ElementCallbackGetsDesignatedElement(t *testing.T) {
	svc := &fakeService{elements: []processor.Element{
		element("Other", "/w/gencheck/passin.go"),
		element("PassIn", "/w/gencheck/passin.go", harness.DefaultMarker),
	}}
	var got string
	_, _, err := run(t, svc, &harness.Request{
		UnitTest: harness.ElementCallback{Fn: func(_ processor.Environment, el processor.Element) error {
			got = el.Name
			return nil
		}},
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if got != "PassIn" {
		t.Errorf("callback got element %q, want PassIn", got)
	}
}

func TestUnitTest_ElementLookupFailures(t *testing.T) {
	tests := []struct {
		name     string
		elements []processor.Element
		source   string
		message  string
	}{
		{
			name:     "none",
			elements: []processor.Element{element("A", "/w/a.go")},
			message:  "no element carrying //gencheck:passin found",
		},
		{
			name: "several",
			elements: []processor.Element{
				element("A", "/w/a.go", harness.DefaultMarker),
				element("B", "/w/b.go", harness.DefaultMarker),
			},
			message: "2 elements carry //gencheck:passin",
		},
		{
			name:     "other source",
			elements: []processor.Element{element("A", "/w/a.go", harness.DefaultMarker)},
			source:   "b.go",
			message:  "found in b.go",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rep, err := run(t, &fakeService{elements: tt.elements}, &harness.Request{
				UnitTest: harness.ElementCallback{Source: tt.source, Fn: func(processor.Environment, processor.Element) error {
					t.Error("callback must not run")
					return nil
				}},
			})
			wantClass(t, err, failure.ClassConfig)
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("message %q should contain %q", err.Error(), tt.message)
			}
			if rep.fails != 0 {
				t.Error("configuration errors must not go through the reporter")
			}
		})
	}
}

func TestUnitTest_SourceRestriction(t *testing.T) {
	svc := &fakeService{elements: []processor.Element{
		element("A", "/w/a/a.go", harness.DefaultMarker),
		element("B", "/w/b/b.go", harness.DefaultMarker),
	}}
	var got string
	_, _, err := run(t, svc, &harness.Request{
		UnitTest: harness.ElementCallback{Source: "b/b.go", Fn: func(_ processor.Environment, el processor.Element) error {
			got = el.Name
			return nil
		}},
	})
	if err != nil || got != "B" {
		t.Errorf("Run() = %v, element %q; want nil, B", err, got)
	}
}

func TestUnitTest_NestedAssertionPassesThrough(t *testing.T) {
	nested := &failure.AssertionError{Message: "value should be 42"}
	_, rep, err := run(t, &fakeService{}, &harness.Request{
		UnitTest: harness.BareCallback{Fn: func(processor.Environment, processor.Round) error {
			return nested
		}},
	})
	if err != nested {
		t.Fatalf("Run() error = %v, want the nested assertion unchanged", err)
	}
	if rep.fails != 0 {
		t.Error("the nested assertion must not be re-reported")
	}
}

func TestUnitTest_ExpectedError(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := run(t, &fakeService{}, &harness.Request{
		UnitTest: harness.BareCallback{Fn: func(processor.Environment, processor.Round) error {
			return boom
		}},
		ExpectedError: processor.ErrorIs(boom),
	})
	if err != nil {
		t.Errorf("Run() failed: %v", err)
	}
}

func TestUnitTest_UnexpectedError(t *testing.T) {
	_, _, err := run(t, &fakeService{}, &harness.Request{
		UnitTest: harness.BareCallback{Fn: func(processor.Environment, processor.Round) error {
			return errors.New("boom")
		}},
	})
	wantClass(t, err, failure.ClassAssertion)
	if !strings.Contains(err.Error(), "got unexpected error") {
		t.Errorf("unexpected message: %v", err)
	}
}

// initCounter records Init calls.
type initCounter struct {
	everything
	inits int
}

func (c *initCounter) Init(processor.Environment) error {
	c.inits++
	return nil
}

func TestUnitTest_ProcessorUnderTest(t *testing.T) {
	svc := &fakeService{elements: []processor.Element{element("PassIn", "/w/p.go", "test:mark")}}
	under := &initCounter{}
	var got processor.Processor
	_, _, err := run(t, svc, &harness.Request{
		UnitTest: harness.ProcessorUnderTest{
			Processor: harness.Instance(under),
			Marker:    "//test:mark",
			Fn: func(_ processor.Environment, p processor.Processor, el processor.Element) error {
				got = p
				return nil
			},
		},
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if got != under {
		t.Error("callback should receive the processor under test")
	}
	if under.inits != 1 {
		t.Errorf("processor under test initialized %d times, want 1", under.inits)
	}
}

func TestUnitTest_MissingCallbackRejected(t *testing.T) {
	for _, ut := range []harness.UnitTest{
		harness.BareCallback{},
		harness.ElementCallback{},
		harness.ProcessorUnderTest{Processor: harness.Instance(everything{})},
	} {
		_, _, err := run(t, &fakeService{}, &harness.Request{UnitTest: ut})
		wantClass(t, err, failure.ClassConfig)
	}
}
