package task

import (
	"errors"
	"fmt"
)

// Domain errors for the task package.
var (
	// ErrNotFound is returned when no task matches, including when the task
	// belongs to another owner or action.
	ErrNotFound = errors.New("task: not found")

	// ErrNotCancellable is returned when the task is past the point where
	// a user may cancel it.
	ErrNotCancellable = errors.New("task: not in a cancellable status")

	// ErrNotDeletable is returned for a task that has not finished.
	ErrNotDeletable = errors.New("task: not in a deletable status")

	// ErrInvalidStatus is returned for status values outside the lifecycle
	// or not accepted by the operation.
	ErrInvalidStatus = errors.New("task: invalid status")

	// ErrInvalidTransition is wrapped by every TransitionError.
	ErrInvalidTransition = errors.New("task: invalid status transition")

	// ErrRejected is wrapped by every Rejection.
	ErrRejected = errors.New("task: submission rejected")
)

// Rejection is a submission refused by Validate.
type Rejection struct {
	Field  string
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

// Unwrap lets callers match with errors.Is(err, ErrRejected).
func (r *Rejection) Unwrap() error { return ErrRejected }

func reject(field, format string, args ...any) *Rejection {
	return &Rejection{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransitionError is a status change the lifecycle does not allow.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidTransition).
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
