// Package shared contains common domain types, errors and events used across
// all domain packages.
package shared

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error leaving the domain or application layer matches
// exactly one of these with errors.Is().
var (
	// ErrNotFound - a referenced student, level, lesson or placement does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict - the write would violate a uniqueness rule (e.g. a second
	// active placement for the same student and subject).
	ErrConflict = errors.New("conflict")

	// ErrForbidden - tenant mismatch, or the actor lacks the role or ownership
	// required for the mutation.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation - malformed or out-of-range input, or an operation that is
	// not valid for the entity's current state.
	ErrValidation = errors.New("validation error")

	// ErrInternal - persistence or infrastructure failure unrelated to input.
	ErrInternal = errors.New("internal error")
)

// FieldError describes a problem with one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string       // e.g. "placement", "level", "completion"
	Op      string       // operation that failed, e.g. "Create", "Override"
	Kind    error        // one of the Err* kinds above
	Message string       // human-readable message
	Fields  []FieldError // optional per-field details for validation errors
	Err     error        // underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(parts, "; "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, msg)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching against the kind and the wrapped error.
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

// NotFound builds an ErrNotFound-kind error.
func NotFound(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrNotFound, message)
}

// Conflict builds an ErrConflict-kind error.
func Conflict(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrConflict, message)
}

// Forbidden builds an ErrForbidden-kind error.
func Forbidden(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrForbidden, message)
}

// Invalid builds an ErrValidation-kind error with optional field details.
func Invalid(domain, op, message string, fields ...FieldError) *DomainError {
	e := NewDomainError(domain, op, ErrValidation, message)
	e.Fields = fields
	return e
}

// Internal wraps an infrastructure failure as an ErrInternal-kind error.
func Internal(domain, op, message string, err error) *DomainError {
	return WrapError(domain, op, ErrInternal, message, err)
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is a uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsForbidden checks if the error is an authorization failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// FieldsOf returns the field details carried by err, if any.
func FieldsOf(err error) []FieldError {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}
