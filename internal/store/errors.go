package store

import (
	"errors"
	"fmt"
)

// Store errors shared by the memory, sqlite and postgres implementations.
// Driver errors are translated into these before they leave a store.
var (
	// ErrNotFound is the root of every not-found error.
	ErrNotFound = errors.New("entity not found")

	// ErrTaskNotFound is returned when no task has the requested id.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrImageNotFound is returned when an image variant update targets a
	// missing id, or no variant has the requested hash.
	ErrImageNotFound = fmt.Errorf("%w: image", ErrNotFound)

	// ErrDuplicate is returned on a unique constraint violation.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation or a
	// database constraint (foreign key, check, not null).
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a transaction cannot begin or
	// commit, or is aborted by a serialization conflict.
	ErrTransactionFailed = errors.New("transaction failed")
)

// IsNotFoundError reports whether err is any kind of not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError adds the entity and operation to a store failure.
type StoreError struct {
	Entity    string // "task" or "image"
	Operation string // e.g. "create", "update"
	Message   string
	Err       error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Entity, e.Operation, e.Message)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Entity, e.Operation, e.Message, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
