// Package failure defines the three disjoint failure classes a
// compilation test can end in: a declared expectation that did not
// hold, an invalid test configuration, and a fault in the harness or
// its environment.
package failure

import (
	"errors"
	"fmt"
)

// Class identifies which of the failure classes an error belongs to.
type Class string

// Failure class constants.
const (
	ClassNone      Class = ""
	ClassAssertion Class = "assertion"
	ClassConfig    Class = "configuration"
	ClassTechnical Class = "technical"
)

// AssertionError reports that a declared expectation was not met.
type AssertionError struct {
	// Message is the complete failure text, debug dump included.
	Message string

	// Cause is the nested failure, if any.
	Cause error
}

func (e *AssertionError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *AssertionError) Unwrap() error { return e.Cause }

// ConfigError reports an invalid test configuration: a contradictory
// request, a processor type that cannot be instantiated, a designated
// element that is missing or ambiguous.
type ConfigError struct {
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause == nil {
		return "invalid configuration: " + e.Message
	}
	return fmt.Sprintf("invalid configuration: %s: %v", e.Message, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// TechnicalError reports that the harness or its environment broke,
// as opposed to the test asserting something false.
type TechnicalError struct {
	Op    string
	Cause error
}

func (e *TechnicalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *TechnicalError) Unwrap() error { return e.Cause }

// Configf builds a ConfigError from a format string.
func Configf(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// Technical wraps err as a TechnicalError for operation op. A nil err
// yields nil.
func Technical(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TechnicalError{Op: op, Cause: err}
}

// ClassOf returns the class of the outermost typed failure in err's
// chain. Assertion failures win over the other classes because they
// pass through processors unchanged.
func ClassOf(err error) Class {
	if err == nil {
		return ClassNone
	}
	var ae *AssertionError
	if errors.As(err, &ae) {
		return ClassAssertion
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ClassConfig
	}
	return ClassTechnical
}

// IsPassThrough reports whether err must escape a processor wrapper
// untouched instead of being treated as a processor crash.
func IsPassThrough(err error) bool {
	switch ClassOf(err) {
	case ClassAssertion, ClassConfig:
		return true
	default:
		return false
	}
}
