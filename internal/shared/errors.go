// Package shared holds cross-cutting helpers used by every document module.
package shared

import (
	"errors"
	"fmt"
)

// Error taxonomy for document operations. Every failure in the engine wraps
// one of these sentinels so the HTTP layer can map it to a response class.
var (
	// ErrValidation indicates missing or invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrState indicates an operation attempted against a document in an illegal state.
	ErrState = errors.New("illegal state")
	// ErrConflict indicates a duplicate-creation rule was violated.
	ErrConflict = errors.New("conflict")
	// ErrLimit indicates the tenant's plan ceiling was reached.
	ErrLimit = errors.New("plan limit reached")
	// ErrNotFound indicates a referenced record does not resolve.
	ErrNotFound = errors.New("not found")
)

// Validationf wraps ErrValidation with a human-readable message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Statef wraps ErrState with a human-readable message.
func Statef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrState, fmt.Sprintf(format, args...))
}

// Conflictf wraps ErrConflict with a human-readable message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Limitf wraps ErrLimit with a human-readable message.
func Limitf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrLimit, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a human-readable message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
