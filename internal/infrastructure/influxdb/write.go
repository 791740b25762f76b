package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementTaskEvent     = "task_event"
	MeasurementDevicePending = "device_pending_tasks"
)

// TaskEvent is one status change of a task.
type TaskEvent struct {
	TaskID     string
	DeviceID   string
	Action     string
	Owner      string
	FromStatus string
	ToStatus   string
	At         time.Time
}

// taskEventPoint keeps low-cardinality values (device, action, status) as
// tags and the task id and owner as fields.
func taskEventPoint(e TaskEvent) *write.Point {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	fields := map[string]interface{}{
		"task_id": e.TaskID,
		"owner":   e.Owner,
		"count":   int64(1),
	}
	if e.FromStatus != "" {
		fields["from_status"] = e.FromStatus
	}
	return write.NewPoint(
		MeasurementTaskEvent,
		map[string]string{
			"device_id": e.DeviceID,
			"action":    e.Action,
			"status":    e.ToStatus,
		},
		fields,
		at,
	)
}

// WriteTaskEvent records a task status change. Non-blocking.
func (c *Client) WriteTaskEvent(e TaskEvent) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(taskEventPoint(e))
}

// WriteDevicePendingTasks records a device's reported queue depth.
func (c *Client) WriteDevicePendingTasks(deviceID string, pending int, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementDevicePending,
		map[string]string{"device_id": deviceID},
		map[string]interface{}{"value": int64(pending)},
		at,
	))
}
