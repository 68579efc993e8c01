// Package errors defines the structured error kinds the matching engine
// reports to its callers.
package errors

import (
	"fmt"
	"runtime"
	"time"
)

// Code identifies the category of a matching-engine error.
type Code string

const (
	// InvalidInput marks a malformed or inconsistent quote: duplicate id,
	// unknown id, non-positive price/quantity, cancel/fill exceeding
	// remaining quantity.
	InvalidInput Code = "INVALID_INPUT"
	// InvalidStatus marks an operation attempted in a trading phase that
	// does not allow it (e.g. a MarketOrder outside ContinuousTrading).
	InvalidStatus Code = "INVALID_STATUS"
	// IoError marks a failure in an external collaborator (CSV loader,
	// replay source).
	IoError Code = "IO_ERROR"
	// InvariantViolation marks a broken structural invariant. It is a bug,
	// not a caller mistake, and callers should treat it as fatal.
	InvariantViolation Code = "INVARIANT_VIOLATION"
)

// Error is the structured error type returned by the matching engine and
// its external collaborators.
type Error struct {
	Code      Code
	Message   string
	Cause     error
	Timestamp time.Time
	File      string
	Line      int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Timestamp: time.Now()}
}

// Newf creates an Error of the given code with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Code == code
}

// Invariant records the call site and panics. Structural invariants are
// assertion-level per spec: a violation is a bug and must abort rather
// than return a recoverable error.
func Invariant(format string, args ...interface{}) {
	pc, file, line, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	err := &Error{
		Code:      InvariantViolation,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
		File:      file,
		Line:      line,
	}
	panic(fmt.Sprintf("%s (in %s)", err.Error(), name))
}
