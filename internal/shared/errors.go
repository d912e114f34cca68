package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the request conflicts with current state.
	ErrConflict = errors.New("conflict")
	// ErrRejected indicates a well-formed request refused by a business rule.
	ErrRejected = errors.New("rejected")
	// ErrConcurrentModification indicates a competing write won the row lock; the caller may retry.
	ErrConcurrentModification = fmt.Errorf("concurrent modification, retry the request: %w", ErrConflict)
)

// ValidationError wraps a field-level message as ErrValidation.
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
