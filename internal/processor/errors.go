package processor

import (
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
)

// PanicError is a panic recovered from a processor.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panicked error value so errors.Is and errors.As
// see through the panic.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Call runs fn and converts a panic into a *PanicError.
func Call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// ErrorKind describes a class of errors a processor is expected to
// fail with.
type ErrorKind struct {
	name  string
	match func(error) bool
}

// ErrorIs matches errors for which errors.Is(err, target) holds. A nil
// target matches no error.
func ErrorIs(target error) *ErrorKind {
	if target == nil {
		return &ErrorKind{name: "<nil>", match: func(error) bool { return false }}
	}
	return &ErrorKind{
		name:  fmt.Sprintf("%T(%q)", target, target.Error()),
		match: func(err error) bool { return errors.Is(err, target) },
	}
}

// ErrorAs matches errors for which errors.As finds a T in the chain.
func ErrorAs[T error]() *ErrorKind {
	return &ErrorKind{
		name: reflect.TypeFor[T]().String(),
		match: func(err error) bool {
			var target T
			return errors.As(err, &target)
		},
	}
}

// Panics matches any panic recovered from the processor.
func Panics() *ErrorKind {
	return ErrorAs[*PanicError]()
}

// NewErrorKind builds an ErrorKind from a custom predicate.
func NewErrorKind(name string, match func(error) bool) *ErrorKind {
	return &ErrorKind{name: name, match: match}
}

// Matches reports whether err belongs to the kind.
func (k *ErrorKind) Matches(err error) bool {
	return err != nil && k.match(err)
}

func (k *ErrorKind) String() string {
	return k.name
}

// ErrorTypeName renders the dynamic type of err, looking through a
// recovered panic to the panicked value.
func ErrorTypeName(err error) string {
	var pe *PanicError
	if errors.As(err, &pe) {
		return fmt.Sprintf("panic(%T)", pe.Value)
	}
	return fmt.Sprintf("%T", err)
}
