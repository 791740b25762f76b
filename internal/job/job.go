package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/quantum-task-core/internal/task"
)

// Status is a legacy job status.
type Status string

// Legacy statuses.
const (
	StatusSubmitted Status = "submitted"
	StatusReady     Status = "ready"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Type is the legacy name for a task action.
type Type string

// Job types. TypeSSE is recognised but never accepted.
const (
	TypeSampling   Type = "sampling"
	TypeEstimation Type = "estimation"
	TypeSSE        Type = "sse"
)

// ErrUnsupportedType is returned for job types with no task action.
var ErrUnsupportedType = errors.New("job: unsupported job type")

// FromTaskStatus maps a lifecycle status onto its legacy name.
func FromTaskStatus(s task.Status) Status {
	switch s {
	case task.StatusQueued:
		return StatusSubmitted
	case task.StatusQueuedFetched:
		return StatusReady
	case task.StatusRunning:
		return StatusRunning
	case task.StatusCompleted:
		return StatusSuccess
	case task.StatusFailed:
		return StatusFailed
	default:
		return StatusCancelled
	}
}

// Job is the legacy wire form of a task.
type Job struct {
	ID          uuid.UUID `json:"id"`
	Owner       string    `json:"owner"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	DeviceID    string    `json:"device_id"`
	JobInfo     string    `json:"job_info"`
	JobType     Type      `json:"job_type"`
	Shots       *int      `json:"shots"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FromTask renders t as a job.
func FromTask(t *task.Task) Job {
	j := Job{
		ID:        t.ID,
		Owner:     t.Owner,
		DeviceID:  t.Device,
		JobInfo:   t.Code,
		JobType:   Type(t.Action),
		Shots:     t.Shots,
		Status:    FromTaskStatus(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.Name != nil {
		j.Name = *t.Name
	}
	if t.Note != nil {
		j.Description = *t.Note
	}
	return j
}

// FromTasks renders every task, keeping order.
func FromTasks(tasks []task.Task) []Job {
	jobs := make([]Job, 0, len(tasks))
	for i := range tasks {
		jobs = append(jobs, FromTask(&tasks[i]))
	}
	return jobs
}

// Submission is the body of POST /jobs. Method and Operator are only read
// for estimation jobs; Method defaults to sampling.
type Submission struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	DeviceID    string  `json:"device_id"`
	JobInfo     string  `json:"job_info"`
	JobType     Type    `json:"job_type"`
	Shots       *int    `json:"shots"`

	Method   *string         `json:"method,omitempty"`
	Operator json.RawMessage `json:"operator,omitempty"`
}

// ToTask translates s into a task submission for owner.
func (s *Submission) ToTask(owner string) (*task.Submission, error) {
	action, ok := task.ParseAction(string(s.JobType))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, s.JobType)
	}

	sub := &task.Submission{
		Owner:  owner,
		Action: action,
		Name:   s.Name,
		Device: s.DeviceID,
		Code:   s.JobInfo,
		Shots:  s.Shots,
		Note:   s.Description,
	}
	if action == task.ActionEstimation {
		method := string(task.MethodSampling)
		if s.Method != nil {
			method = *s.Method
		}
		sub.Method = &method
		sub.Operator = s.Operator
	}
	return sub, nil
}

// UnsupportedTypeDetail is the client message for a rejected job type.
func UnsupportedTypeDetail(t Type) string {
	return fmt.Sprintf("job_type should be either 'sampling' or 'estimation' (got '%s')", t)
}

// NotCancellableDetail is the client message for a job past cancellation.
func NotCancellableDetail(id string) string {
	return fmt.Sprintf("%s job is not in valid status for cancellation (valid statuses for cancellation: 'ready', 'submitted' and 'running')", id)
}

// NotDeletableDetail is the client message for an unfinished job.
func NotDeletableDetail(id string) string {
	return fmt.Sprintf("%s job is not in valid status for deletion (valid statuses for deletion: 'success', 'failed' and 'cancelled')", id)
}
