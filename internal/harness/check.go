package harness

import (
	"context"
	"testing"

	"github.com/unbound-force/gencheck/internal/failure"
	"github.com/unbound-force/gencheck/internal/reporter"
)

// Check runs req inside a Go test. Assertion failures mark tb failed
// through reporter.ForTB; configuration and technical errors stop the
// test. The result is closed when the test ends.
func Check(tb testing.TB, req *Request, opts ...Option) *Result {
	tb.Helper()
	opts = append([]Option{WithReporter(reporter.ForTB(tb))}, opts...)
	res, err := New(opts...).Run(context.Background(), req)
	switch failure.ClassOf(err) {
	case failure.ClassNone:
		tb.Cleanup(func() { res.Close() })
		return res
	case failure.ClassAssertion:
		tb.FailNow()
	default:
		tb.Fatalf("%s error: %v", failure.ClassOf(err), err)
	}
	return nil
}
