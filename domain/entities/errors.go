package entities

import (
	"errors"
	"fmt"
)

// ErrInvalidInput reports a malformed record from the caller (missing
// payload or text). Never retried.
var ErrInvalidInput = errors.New("invalid input")

// ErrNotFound reports a record ID that does not exist. A normal
// outcome for get and update, not an exception path.
var ErrNotFound = errors.New("record not found")

// StoreError wraps a failure of the underlying database after the
// lifecycle layer has exhausted its retries.
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError attaches the last underlying cause to an operation name.
func NewStoreError(op string, cause error) *StoreError {
	return &StoreError{Op: op, Cause: cause}
}
