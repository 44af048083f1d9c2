package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateEdge is returned by CreateEdge when the id is already taken.
// Existing edges must be changed through EditEdge.
var ErrDuplicateEdge = errors.New("edge already exists")

// ErrUnknownCommand is returned when a query type has no registered implementation.
var ErrUnknownCommand = errors.New("unknown command")

// ErrNodeNotFound is returned when an operation targets a node missing from the store.
var ErrNodeNotFound = errors.New("node not found")

// ErrWorkflowNotFound is returned when a snapshot store has no entry for the workflow id.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrNoGenerator is returned when no provider is registered for a query type.
var ErrNoGenerator = errors.New("no generator registered")

// ValidationError reports malformed input to a store mutation.
// It is a programmer error and aborts the whole request.
type ValidationError struct {
	Op     string
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: invalid input: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: invalid input for '%s': %s", e.Op, e.ID, e.Reason)
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
