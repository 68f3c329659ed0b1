package memory

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates that a requested memory item was not found.
	ErrNotFound = errors.New("memory item not found")

	// ErrEmbeddingFailed indicates that embedding generation failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrStorageOperation indicates that a storage operation failed.
	ErrStorageOperation = errors.New("storage operation failed")
)

// Error wraps errors with operation context.
//
// Example:
//
//	err := &Error{Op: "Store", Err: ErrEmbeddingFailed}
//	// Error() returns: "crewmind: Store: embedding generation failed"
type Error struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
func (e *Error) Error() string {
	return fmt.Sprintf("crewmind: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError creates a new Error wrapping the given error.
// Returns nil if err is nil, allowing safe error wrapping.
func newError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
