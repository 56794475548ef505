// Package errors provides structured error handling for Lumen.
//
// Every failure that can reach a caller of the engine is an *Error carrying a
// classified ErrorType and a human-readable message. The rendered text of an
// Error depends only on its type, its message and the text of its cause, so a
// Payload built from it can be carried across a process or sandbox boundary
// and turned back into an Error whose Error() output is byte-for-byte the same.
//
// # Basic Usage
//
//	// Create a new error
//	err := errors.New(errors.ErrorTypeSchema, "column lengths differ")
//
//	// Add context
//	err = err.WithDetail("column", "animals").
//	         WithDetail("length", 6)
//
//	// Wrap existing errors
//	if err := reader.Read(); err != nil {
//	    return errors.Wrap(err, errors.ErrorTypeParse, "CSV parse error")
//	}
//
// # Thread Safety
//
// Error instances are not thread-safe for modification. Use WithDetail before
// sharing an error across goroutines.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error. Callers classify failures by
// type; the message carries the adapter-specific phrase.
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents invalid requests (bad names, unknown sources)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeParse represents malformed source input
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeSchema represents inconsistent column lengths, names or declared types
	ErrorTypeSchema ErrorType = "schema"
	// ErrorTypeTypeMismatch represents a value that cannot be cast to its column type
	ErrorTypeTypeMismatch ErrorType = "type_mismatch"
	// ErrorTypeNameInUse represents a table registry collision
	ErrorTypeNameInUse ErrorType = "name_in_use"
	// ErrorTypeNotFound represents a missing table
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeUnavailable represents a server that has been closed
	ErrorTypeUnavailable ErrorType = "unavailable"
	// ErrorTypeTransport represents a failure to reach the server
	ErrorTypeTransport ErrorType = "transport"
)

// Error represents a structured error with context.
//
// Fields:
//   - Type: Categorizes the error
//   - Message: Human-readable error description
//   - Cause: The underlying error that caused this error
//   - Details: Key-value pairs providing additional context
//   - Stack: Call stack at the point of error creation (never transported)
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. It can be chained.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context. If the error is
// already an *Error its stack is preserved. Returns nil if err is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, errType, fmt.Sprintf(format, args...))
	var existingErr *Error
	if !errors.As(err, &existingErr) {
		wrapped.Stack = captureStack(2)
	}
	return wrapped
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the type of the outermost *Error in err's chain, or
// ErrorTypeInternal when err carries no classification.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// As is errors.As re-exported so callers need a single errors import.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
