package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports an unknown task id.
	ErrNotFound = errors.New("task not found")
	// ErrNoEligibleUser reports a smart-assign attempt with zero known users.
	ErrNoEligibleUser = errors.New("no eligible user")
)

// ValidationError rejects malformed input: empty or reserved titles,
// duplicate titles, invalid enum values.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(msg string) error { return &ValidationError{Msg: msg} }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// VersionConflictError is not a failure but a distinct commit outcome: the
// client's version lost the optimistic-lock race and a decision is needed.
// It carries the server's winning state for the conflict descriptor.
type VersionConflictError struct {
	ServerVersion int64
	ServerTask    Task
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: server is at %d", e.ServerVersion)
}

// StoreError wraps an underlying persistence failure. The core never
// retries; retry policy belongs to the store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }
