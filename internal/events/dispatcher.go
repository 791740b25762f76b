package events

import (
	"context"
	"sync"

	"github.com/nerrad567/quantum-task-core/internal/infrastructure/logging"
)

// QueueSize is the number of events a Dispatcher buffers before dropping.
const QueueSize = 256

// queued is one pending delivery. A non-nil flushed marks a Flush barrier.
type queued struct {
	ctx     context.Context
	event   Event
	flushed chan struct{}
}

// Dispatcher delivers events to every registered sink from a single worker
// goroutine, so a slow sink never holds up the publisher.
type Dispatcher struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger *logging.Logger

	queue chan queued
	wg    sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given sinks. Events are
// buffered until Start is called.
func NewDispatcher(logger *logging.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Dispatcher{
		sinks:  sinks,
		logger: logger,
		queue:  make(chan queued, QueueSize),
	}
}

// Register adds a sink. Safe to call while events are being dispatched.
func (d *Dispatcher) Register(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// Sinks returns the names of the registered sinks.
func (d *Dispatcher) Sinks() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Start runs the delivery worker until ctx is cancelled. Events still
// queued at that point are delivered before the worker exits.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx)
	}()
}

// Wait blocks until the worker started by Start has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Publish queues e for delivery and returns immediately. When the queue is
// full the event is dropped with a warning. A nil dispatcher discards the
// event.
func (d *Dispatcher) Publish(ctx context.Context, e Event) {
	if d == nil {
		return
	}

	select {
	case d.queue <- queued{ctx: context.WithoutCancel(ctx), event: e}:
	default:
		d.logger.Warn("event queue full, dropping event",
			"kind", string(e.Kind),
			"task_id", e.TaskID.String(),
			"device_id", e.DeviceID,
		)
	}
}

// Flush waits until every event published before the call has been handed
// to the sinks. It requires a running worker.
func (d *Dispatcher) Flush(ctx context.Context) error {
	barrier := queued{flushed: make(chan struct{})}
	select {
	case d.queue <- barrier:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-barrier.flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	for {
		select {
		case q := <-d.queue:
			d.deliver(q)
		case <-ctx.Done():
			for {
				select {
				case q := <-d.queue:
					d.deliver(q)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(q queued) {
	if q.flushed != nil {
		close(q.flushed)
		return
	}

	d.mu.RLock()
	sinks := d.sinks
	d.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Publish(q.ctx, q.event); err != nil {
			d.logger.Warn("event sink failed",
				"sink", s.Name(),
				"kind", string(q.event.Kind),
				"task_id", q.event.TaskID.String(),
				"device_id", q.event.DeviceID,
				"error", err,
			)
		}
	}
}
