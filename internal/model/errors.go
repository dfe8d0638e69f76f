package model

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError carries itemized field-level problems. It is always
// raised before any state is persisted.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// CodeMismatchError reports a wrong verification code while attempts
// are still left. Remaining counts the tries left before the record
// fails permanently.
type CodeMismatchError struct {
	Remaining int
}

func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("incorrect verification code, %d attempts remaining", e.Remaining)
}

// NotFoundError covers user-correctable lookup misses: no provider for a
// destination, no approved sender identity, no active OTP.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// RateLimitError reports a cooldown that has not elapsed yet.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", int(e.RetryAfter.Seconds()))
}

// StateConflictError describes an operation that is illegal in the
// record's current state (cancel after queueing, verify after expiry).
type StateConflictError struct {
	Current string
	Reason  string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s (current state: %s)", e.Reason, e.Current)
}

// DependencyError wraps a failure of an external collaborator. The core
// never retries these internally; retry policy belongs to the caller.
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return e.Dependency + " unavailable: " + e.Err.Error()
}

func (e *DependencyError) Unwrap() error { return e.Err }
