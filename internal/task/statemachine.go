package task

// Status is a task's position in its lifecycle.
type Status string

// Lifecycle statuses. The _FETCHED variants mark tasks claimed by a
// provider poll.
const (
	StatusQueued            Status = "QUEUED"
	StatusQueuedFetched     Status = "QUEUED_FETCHED"
	StatusRunning           Status = "RUNNING"
	StatusCompleted         Status = "COMPLETED"
	StatusFailed            Status = "FAILED"
	StatusCancelling        Status = "CANCELLING"
	StatusCancellingFetched Status = "CANCELLING_FETCHED"
	StatusCancelled         Status = "CANCELLED"
)

// transitions lists every allowed status change.
var transitions = map[Status][]Status{
	StatusQueued:            {StatusQueuedFetched, StatusCancelled},
	StatusQueuedFetched:     {StatusRunning, StatusCompleted, StatusFailed, StatusCancelling},
	StatusRunning:           {StatusCompleted, StatusFailed, StatusCancelling},
	StatusCancelling:        {StatusCancellingFetched},
	StatusCancellingFetched: {StatusCancelled},
}

// ParseStatus returns the status named s.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	switch st {
	case StatusQueued, StatusQueuedFetched, StatusRunning, StatusCompleted,
		StatusFailed, StatusCancelling, StatusCancellingFetched, StatusCancelled:
		return st, true
	}
	return "", false
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is COMPLETED, FAILED or CANCELLED.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// UserFacing hides the provider claim markers from users.
func (s Status) UserFacing() Status {
	switch s {
	case StatusQueuedFetched:
		return StatusQueued
	case StatusCancellingFetched:
		return StatusCancelling
	}
	return s
}

// Cancellable reports whether a user may cancel a task in status s.
func (s Status) Cancellable() bool {
	return s == StatusQueued || s == StatusQueuedFetched || s == StatusRunning
}

// ProviderUpdatable reports whether a provider may push a status onto a
// task currently in s.
func (s Status) ProviderUpdatable() bool {
	return s == StatusQueuedFetched || s == StatusRunning || s == StatusCancellingFetched
}
