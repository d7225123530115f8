package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinels that adapters and services wrap. Transport maps them to
// status codes.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConflict      = errors.New("conflict")
	ErrRateLimited   = errors.New("rate limited")
)

// FieldError is one rejected input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects every rejected field of one request so clients
// can fix them all at once.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError rejects a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// NewValidationErrors rejects several fields at once.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}

// ConflictCode identifies why an operation conflicts with the current state.
type ConflictCode string

const (
	ConflictAlreadyVoted     ConflictCode = "already_voted"
	ConflictOwnSignal        ConflictCode = "own_signal"
	ConflictNotOwner         ConflictCode = "not_owner"
	ConflictSignalClosed     ConflictCode = "signal_closed"
	ConflictVoteWindowClosed ConflictCode = "vote_window_closed"
	ConflictProtectedSignal  ConflictCode = "protected_signal"
)

// ConflictError is returned when a request is well-formed but not allowed
// in the signal's current state.
type ConflictError struct {
	Code    ConflictCode
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s: %s", e.Code, e.Message)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NewConflictError creates a ConflictError.
func NewConflictError(code ConflictCode, message string) *ConflictError {
	return &ConflictError{Code: code, Message: message}
}

// AbuseRejection is returned when an identity exceeds a submission, vote
// or deletion budget. RetryAfter is the earliest moment a retry can succeed.
type AbuseRejection struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *AbuseRejection) Error() string {
	return fmt.Sprintf("rejected: %s (retry after %s)", e.Reason, e.RetryAfter.Round(time.Second))
}

func (e *AbuseRejection) Unwrap() error { return ErrRateLimited }
