// Package reporter is the pluggable sink assertion failures are
// raised through. Host test frameworks register a reporter with a
// priority; the highest priority wins. Without any registration the
// Default reporter is used.
package reporter

import (
	"sort"
	"sync"
	"testing"

	"github.com/unbound-force/gencheck/internal/failure"
)

// Reporter raises assertion failures. Both methods return the error
// the caller must propagate.
type Reporter interface {
	Fail(msg string) error
	FailWithCause(msg string, cause error) error
}

// Default raises plain *failure.AssertionError values.
type Default struct{}

// Fail returns an assertion error carrying msg.
func (Default) Fail(msg string) error {
	return &failure.AssertionError{Message: msg}
}

// FailWithCause returns an assertion error carrying msg and cause.
func (Default) FailWithCause(msg string, cause error) error {
	return &failure.AssertionError{Message: msg, Cause: cause}
}

type registration struct {
	r        Reporter
	priority int
	seq      int
}

var (
	mu       sync.Mutex
	regs     []registration
	once     sync.Once
	resolved Reporter
)

// Register adds a reporter candidate. It must be called before the
// first Locate, typically from an init function.
func Register(r Reporter, priority int) {
	mu.Lock()
	defer mu.Unlock()
	regs = append(regs, registration{r: r, priority: priority, seq: len(regs)})
}

// Locate returns the registered reporter with the highest priority,
// resolved once per process. Ties go to the earliest registration.
func Locate() Reporter {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		resolved = pick(regs)
	})
	return resolved
}

func pick(candidates []registration) Reporter {
	if len(candidates) == 0 {
		return Default{}
	}
	sorted := make([]registration, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].priority != sorted[j].priority {
			return sorted[i].priority > sorted[j].priority
		}
		return sorted[i].seq < sorted[j].seq
	})
	return sorted[0].r
}

// TB marks a host test as failed in addition to returning the
// assertion error.
type TB struct {
	tb testing.TB
}

// ForTB returns a reporter that records failures on tb.
func ForTB(tb testing.TB) *TB {
	return &TB{tb: tb}
}

// Fail records msg on the test and returns the assertion error.
func (r *TB) Fail(msg string) error {
	r.tb.Helper()
	r.tb.Error(msg)
	return Default{}.Fail(msg)
}

// FailWithCause records msg and cause on the test and returns the
// assertion error.
func (r *TB) FailWithCause(msg string, cause error) error {
	r.tb.Helper()
	err := Default{}.FailWithCause(msg, cause)
	r.tb.Error(err.Error())
	return err
}
