package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/quantum-task-core/internal/device"
	"github.com/nerrad567/quantum-task-core/internal/task"
)

// Kind identifies what an Event describes.
type Kind string

// Event kinds.
const (
	KindTaskStatus   Kind = "task.status"
	KindTaskResult   Kind = "task.result"
	KindDeviceUpdate Kind = "device.update"
)

// Event is one observable change.
type Event struct {
	Kind     Kind
	TaskID   uuid.UUID
	Owner    string
	DeviceID string
	Action   task.Action

	// From is empty for a newly submitted task.
	From task.Status
	To   task.Status

	// ResultStatus is set for KindTaskResult.
	ResultStatus string

	// Device fields are set for KindDeviceUpdate.
	DeviceStatus device.Status
	PendingTasks int

	At time.Time
}

// Submitted builds the event for a newly stored task.
func Submitted(t *task.Task) Event {
	return Event{
		Kind:     KindTaskStatus,
		TaskID:   t.ID,
		Owner:    t.Owner,
		DeviceID: t.Device,
		Action:   t.Action,
		To:       t.Status,
		At:       t.CreatedAt,
	}
}

// FromTransition builds the event for an accepted status change.
func FromTransition(tr task.Transition) Event {
	return Event{
		Kind:     KindTaskStatus,
		TaskID:   tr.Task.ID,
		Owner:    tr.Task.Owner,
		DeviceID: tr.Task.Device,
		Action:   tr.Task.Action,
		From:     tr.From,
		To:       tr.To,
		At:       tr.Task.UpdatedAt,
	}
}

// ResultAttached builds the event for a result stored against t.
func ResultAttached(t *task.Task, status string, at time.Time) Event {
	return Event{
		Kind:         KindTaskResult,
		TaskID:       t.ID,
		Owner:        t.Owner,
		DeviceID:     t.Device,
		Action:       t.Action,
		To:           t.Status,
		ResultStatus: status,
		At:           at,
	}
}

// DeviceUpdated builds the event for a provider device update.
func DeviceUpdated(d *device.Device) Event {
	return Event{
		Kind:         KindDeviceUpdate,
		DeviceID:     d.ID,
		DeviceStatus: d.Status,
		PendingTasks: d.PendingTasks,
		At:           d.UpdatedAt,
	}
}

// Sink receives dispatched events.
type Sink interface {
	Name() string
	Publish(ctx context.Context, e Event) error
}
