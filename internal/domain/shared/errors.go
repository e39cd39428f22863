// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Event store errors
	ErrStreamNotFound      = errors.New("stream not found")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrCorruptStream       = errors.New("corrupt event stream")
	ErrUnknownEventType    = errors.New("unknown event type")

	// Domain rule errors
	ErrOwnershipViolation = errors.New("ownership violation")
	ErrInvalidOperation   = errors.New("invalid operation")
	ErrUniquenessConflict = errors.New("uniqueness conflict")

	// Validation errors
	ErrValidation    = errors.New("validation error")
	ErrInvalidID     = errors.New("invalid ID")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrNegativeValue = errors.New("value cannot be negative")

	// Encryption errors
	ErrKeyNotFound = errors.New("encryption key not found")
	ErrSealFailed  = errors.New("sealing failed")
	ErrOpenFailed  = errors.New("opening failed")

	// Read model errors
	ErrViewNotFound = errors.New("view not found")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "envelope", "account", "registry", "eventstore"
	Op      string // Operation that failed, e.g., "Credit", "Append"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// IsStreamNotFound checks if the error means a required stream does not exist.
// Command handlers use this to distinguish "new aggregate" from "must exist".
func IsStreamNotFound(err error) bool {
	return errors.Is(err, ErrStreamNotFound)
}

// IsConcurrencyConflict checks if the error is a version mismatch on append.
// This is the only retryable store error; the store itself never retries.
func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsOwnershipViolation checks if the acting user is not the aggregate owner.
func IsOwnershipViolation(err error) bool {
	return errors.Is(err, ErrOwnershipViolation)
}

// IsInvalidOperation checks if a domain rule rejected the operation.
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsUniquenessConflict checks if a registry rejected a duplicate key.
func IsUniquenessConflict(err error) bool {
	return errors.Is(err, ErrUniquenessConflict)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue)
}
