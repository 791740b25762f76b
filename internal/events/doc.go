// Package events fans task lifecycle changes out to observers.
//
// Handlers build an Event for every accepted transition, device update or
// attached result and hand it to a Dispatcher. Publish only queues the
// event; a worker goroutine calls each registered Sink in turn. A failing
// sink is logged and skipped, and a full queue drops the event, so an
// unreachable broker never fails or stalls a request.
//
// Sinks shipped here:
//
//   - MQTTSink publishes JSON payloads under qtask/v1/...
//   - InfluxSink writes task_event and device_pending_tasks points
//   - MetricsSink increments the OpenTelemetry lifecycle counters
//
// The API WebSocket hub implements Sink as well.
package events
