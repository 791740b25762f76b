// Package result stores the outcome a provider attaches to a task.
//
// A task has at most one result. Create enforces that under a transaction
// and reports ErrConflict for a second attempt.
package result

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome recorded by the provider.
type Status string

// Result statuses.
const (
	StatusSuccess   Status = "SUCCESS"
	StatusFailure   Status = "FAILURE"
	StatusCancelled Status = "CANCELLED"
)

// Result is the outcome of one task.
type Result struct {
	TaskID uuid.UUID
	Status Status

	// Result is the JSON payload; set only for StatusSuccess.
	Result *string

	// Reason explains a non-successful outcome.
	Reason *string

	TranspiledCode  *string
	QubitAllocation map[string]int
	CreatedAt       time.Time
}

// Domain errors.
var (
	ErrNotFound     = errors.New("result: not found")
	ErrConflict     = errors.New("result: already exists")
	ErrTaskNotFound = errors.New("result: task not found")
	ErrInvalid      = errors.New("result: invalid")
)

// ValidationError rejects a result body. Detail is the client-facing message.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string { return e.Detail }

// Unwrap lets callers match with errors.Is(err, ErrInvalid).
func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Validate checks the status and the payload it requires.
func Validate(r *Result) error {
	switch r.Status {
	case StatusSuccess:
		if r.Result == nil {
			return &ValidationError{Detail: "result is required for status SUCCESS"}
		}
	case StatusFailure, StatusCancelled:
		if r.Reason == nil {
			return &ValidationError{Detail: "reason is required for status " + string(r.Status)}
		}
	default:
		return &ValidationError{Detail: "status should be one of 'SUCCESS', 'FAILURE' or 'CANCELLED'"}
	}
	return nil
}

// Visible returns the payload a user may see: the result for SUCCESS,
// the reason otherwise.
func (r *Result) Visible() (result, reason *string) {
	if r.Status == StatusSuccess {
		return r.Result, nil
	}
	return nil, r.Reason
}
