package types

import (
	"errors"
	"fmt"
)

// Validation and pipeline errors
var (
	ErrEmptyUserID = errors.New("user_id cannot be empty")
	ErrEmptyText   = errors.New("text cannot be empty")
	ErrEmptyLabel  = errors.New("label cannot be empty")
	ErrEmptyID     = errors.New("id cannot be empty")

	// ErrExtractionMalformed is returned by strict decoding when the payload
	// is not a JSON object.
	ErrExtractionMalformed = errors.New("extraction payload is malformed")

	// ErrStoreUnavailable indicates the graph store could not be read or written.
	ErrStoreUnavailable = errors.New("graph store unavailable")

	// ErrNodeNotFound is returned when a node id is unknown for the user.
	ErrNodeNotFound = errors.New("node not found")

	// ErrPromptInjection is returned when note text is rejected by the injection filter.
	ErrPromptInjection = errors.New("text rejected by prompt injection filter")
)

// StoreError wraps a failure of a single graph store operation.
type StoreError struct {
	Op     string
	UserID string
	Err    error
}

// NewStoreError creates a StoreError for op.
func NewStoreError(op, userID string, err error) *StoreError {
	return &StoreError{Op: op, UserID: userID, Err: err}
}

func (e *StoreError) Error() string {
	if e.UserID == "" {
		return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s failed for user %s: %v", e.Op, e.UserID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports StoreError as ErrStoreUnavailable so callers can check the
// category without caring about the operation.
func (e *StoreError) Is(target error) bool {
	if target == ErrStoreUnavailable {
		return true
	}
	_, ok := target.(*StoreError)
	return ok
}
