package ledger

import "fmt"

// StorageError represents a failure in a ledger storage backend.
type StorageError struct {
	// Backend is the backend name ("sqlite", "memory").
	Backend string

	// Op is the operation that failed ("record", "last_change", ...).
	Op string

	// Cause is the underlying error.
	Cause error
}

// NewStorageError creates a StorageError.
func NewStorageError(backend, op string, cause error) *StorageError {
	return &StorageError{Backend: backend, Op: op, Cause: cause}
}

// Error returns the error message.
func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger %s: %s: %v", e.Backend, e.Op, e.Cause)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}
