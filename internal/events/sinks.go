package events

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nerrad567/quantum-task-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/telemetry"
	"github.com/nerrad567/quantum-task-core/internal/task"
)

// Publisher is the subset of the MQTT client used by MQTTSink.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// TaskStatusMessage is the MQTT payload for a task status change.
type TaskStatusMessage struct {
	TaskID         string `json:"taskId"`
	DeviceID       string `json:"deviceId"`
	Action         string `json:"action"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previousStatus,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// TaskResultMessage is the MQTT payload for an attached result.
type TaskResultMessage struct {
	TaskID    string `json:"taskId"`
	DeviceID  string `json:"deviceId"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// DeviceMessage is the retained MQTT payload for a device update.
type DeviceMessage struct {
	DeviceID      string `json:"deviceId"`
	Status        string `json:"status"`
	NPendingTasks int    `json:"nPendingTasks"`
	Timestamp     string `json:"timestamp"`
}

// MQTTSink publishes events to the broker.
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
}

// NewMQTTSink creates a sink over pub.
func NewMQTTSink(pub Publisher) *MQTTSink {
	return &MQTTSink{pub: pub}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Publish implements Sink. Device updates are retained so late subscribers
// see the current state.
func (s *MQTTSink) Publish(_ context.Context, e Event) error {
	ts := e.At.UTC().Format(time.RFC3339Nano)
	switch e.Kind {
	case KindTaskStatus:
		return s.pub.PublishJSON(s.topics.TaskStatus(e.DeviceID, e.TaskID.String()), TaskStatusMessage{
			TaskID:         e.TaskID.String(),
			DeviceID:       e.DeviceID,
			Action:         string(e.Action),
			Status:         string(e.To),
			PreviousStatus: string(e.From),
			Timestamp:      ts,
		}, false)
	case KindTaskResult:
		return s.pub.PublishJSON(s.topics.TaskResult(e.DeviceID, e.TaskID.String()), TaskResultMessage{
			TaskID:    e.TaskID.String(),
			DeviceID:  e.DeviceID,
			Status:    e.ResultStatus,
			Timestamp: ts,
		}, false)
	case KindDeviceUpdate:
		return s.pub.PublishJSON(s.topics.DeviceStatus(e.DeviceID), DeviceMessage{
			DeviceID:      e.DeviceID,
			Status:        string(e.DeviceStatus),
			NPendingTasks: e.PendingTasks,
			Timestamp:     ts,
		}, true)
	}
	return nil
}

// PointWriter is the subset of the InfluxDB client used by InfluxSink.
type PointWriter interface {
	WriteTaskEvent(e influxdb.TaskEvent)
	WriteDevicePendingTasks(deviceID string, pending int, at time.Time)
}

// InfluxSink records events as time-series points.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates a sink over w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Name implements Sink.
func (s *InfluxSink) Name() string { return "influxdb" }

// Publish implements Sink. Writes are batched by the client and never fail
// synchronously.
func (s *InfluxSink) Publish(_ context.Context, e Event) error {
	switch e.Kind {
	case KindTaskStatus:
		s.w.WriteTaskEvent(influxdb.TaskEvent{
			TaskID:     e.TaskID.String(),
			DeviceID:   e.DeviceID,
			Action:     string(e.Action),
			Owner:      e.Owner,
			FromStatus: string(e.From),
			ToStatus:   string(e.To),
			At:         e.At,
		})
	case KindDeviceUpdate:
		s.w.WriteDevicePendingTasks(e.DeviceID, e.PendingTasks, e.At)
	}
	return nil
}

// MetricsSink counts lifecycle events on the OpenTelemetry instruments.
type MetricsSink struct {
	in *telemetry.Instruments
}

// NewMetricsSink creates a sink over in.
func NewMetricsSink(in *telemetry.Instruments) *MetricsSink {
	return &MetricsSink{in: in}
}

// Name implements Sink.
func (s *MetricsSink) Name() string { return "metrics" }

// Publish implements Sink.
func (s *MetricsSink) Publish(ctx context.Context, e Event) error {
	switch e.Kind {
	case KindTaskStatus:
		deviceAttr := attribute.String("device_id", e.DeviceID)
		action := attribute.String("action", string(e.Action))
		if e.From == "" {
			s.in.TasksSubmitted.Add(ctx, 1, metric.WithAttributes(deviceAttr, action))
			return nil
		}
		s.in.Transitions.Add(ctx, 1, metric.WithAttributes(deviceAttr,
			attribute.String("from", string(e.From)),
			attribute.String("to", string(e.To)),
		))
		if e.To == task.StatusQueuedFetched || e.To == task.StatusCancellingFetched {
			s.in.TasksClaimed.Add(ctx, 1, metric.WithAttributes(deviceAttr, attribute.String("status", string(e.To))))
		}
	case KindTaskResult:
		s.in.ResultsAttached.Add(ctx, 1, metric.WithAttributes(
			attribute.String("device_id", e.DeviceID),
			attribute.String("status", e.ResultStatus),
		))
	}
	return nil
}
