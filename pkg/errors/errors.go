// Package errors defines error types and utilities for tablequery
package errors

import (
	"errors"
	"fmt"
)

// Common errors that can occur while building or executing a query
var (
	// ErrInvalidArgument is returned when a constructor or builder method receives malformed input
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState is returned when a builder method is called in a state that forbids it
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidCursor is returned when a pagination cursor cannot be decoded
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrExecutionFailed is returned when the store rejects a compiled request
	ErrExecutionFailed = errors.New("execution failed")
)

// BuilderError describes a contract violation detected by a descriptor or query builder.
// Op names the offending method (for example "Query.using()") and Reason the constraint.
type BuilderError struct {
	Err    error
	Op     string
	Reason string
}

// Error implements the error interface
func (e *BuilderError) Error() string {
	if e == nil {
		return "tablequery: builder error"
	}
	if e.Op == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Unwrap returns the underlying sentinel error
func (e *BuilderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InvalidArgument creates a BuilderError wrapping ErrInvalidArgument
func InvalidArgument(op, reason string) *BuilderError {
	return &BuilderError{Op: op, Reason: reason, Err: ErrInvalidArgument}
}

// InvalidState creates a BuilderError wrapping ErrInvalidState
func InvalidState(op, reason string) *BuilderError {
	return &BuilderError{Op: op, Reason: reason, Err: ErrInvalidState}
}

// QueryError represents a failed store call with context
type QueryError struct {
	Err       error
	Op        string
	Table     string
	RequestID string
}

// Error implements the error interface
func (e *QueryError) Error() string {
	if e == nil {
		return "tablequery: query failed"
	}
	return fmt.Sprintf("tablequery: %s on %s failed: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the underlying error
func (e *QueryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports ErrExecutionFailed for every QueryError so callers can match the category
func (e *QueryError) Is(target error) bool {
	return target == ErrExecutionFailed
}

// NewQueryError creates a new QueryError
func NewQueryError(op, table string, err error) *QueryError {
	return &QueryError{
		Op:    op,
		Table: table,
		Err:   err,
	}
}

// IsInvalidArgument checks if an error is an argument violation
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsInvalidState checks if an error is a state violation
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
