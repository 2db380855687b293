// Package errors provides the structured error type shared by the live
// session packages.
//
// ContextualError captures the component, operation and optional kind, status
// code and details of a failure. It implements the error and Unwrap interfaces
// so callers can use errors.Is and errors.As on both the cause and the kind.
//
// Usage:
//
//	err := errors.New("live", "Start", someErr)
//	err = err.WithKind(ErrConnection).WithDetails(map[string]any{"model": m})
package errors

import (
	"errors"
	"fmt"
)

// ContextualError is a structured error type that provides consistent context
// about where and why an error occurred.
type ContextualError struct {
	// Component identifies the package that produced the error (e.g. "live", "capture").
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// Kind is an optional sentinel classifying the error (connection, permission, ...).
	Kind error

	// StatusCode is an optional transport or application-level status code,
	// such as a websocket close code.
	StatusCode int

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a ContextualError with the given component, operation, and cause.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Error returns a human-readable representation of the error.
func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)

	if e.Kind != nil {
		base += " " + e.Kind.Error()
	}

	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}

	return base
}

// Unwrap returns the underlying cause, enabling use with errors.Is and errors.As.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches the error's kind.
func (e *ContextualError) Is(target error) bool {
	return e.Kind != nil && errors.Is(e.Kind, target)
}

// WithKind sets the classifying sentinel and returns the same error for chaining.
func (e *ContextualError) WithKind(kind error) *ContextualError {
	e.Kind = kind
	return e
}

// WithStatusCode sets the status code and returns the same error for chaining.
func (e *ContextualError) WithStatusCode(code int) *ContextualError {
	e.StatusCode = code
	return e
}

// WithDetails sets the details map and returns the same error for chaining.
func (e *ContextualError) WithDetails(details map[string]any) *ContextualError {
	e.Details = details
	return e
}
