package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations and job
// handlers. Handlers classify failures against this taxonomy before
// persisting them as record error messages.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. Entity-specific variants below wrap it so callers can match
	// either the generic or the specific error with errors.Is.
	ErrNotFound = errors.New("entity not found")

	// ErrSourceNotFound indicates the uploaded source artifact referenced by
	// a screening task is missing from the source store.
	ErrSourceNotFound = fmt.Errorf("%w: source", ErrNotFound)

	// ErrTaskNotFound indicates that the requested screening task does not exist.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrSearchNotFound indicates that the requested search does not exist.
	ErrSearchNotFound = fmt.Errorf("%w: search", ErrNotFound)

	// ErrNotificationNotFound indicates that the requested notification does not exist.
	ErrNotificationNotFound = fmt.Errorf("%w: notification", ErrNotFound)

	// ErrDuplicate is returned when saving an entity whose id already exists.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when the database rejects an entity for
	// violating a constraint.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrParseFailure indicates the source bytes could not be parsed as
	// delimited text with any candidate delimiter.
	ErrParseFailure = errors.New("source parse failure")

	// ErrStorageFailure indicates a dataset insert or query failed, or that
	// a task has no ingested rows to search.
	ErrStorageFailure = errors.New("dataset storage failure")

	// ErrDeliveryFailure indicates the notification transport rejected or
	// failed to send a message.
	ErrDeliveryFailure = errors.New("notification delivery failure")

	// ErrRetryExhausted indicates a notification used up its retry budget
	// without a successful delivery.
	ErrRetryExhausted = errors.New("notification retries exhausted")
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "task", "notification")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation,
// message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
