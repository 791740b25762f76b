package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/nerrad567/quantum-task-core/internal/infrastructure/config"
)

// instrumentationName scopes every tracer, meter and logger we create.
const instrumentationName = "github.com/nerrad567/quantum-task-core"

// defaultExportInterval applies when the config leaves it unset.
const defaultExportInterval = 60 * time.Second

// Telemetry bundles the tracer, meter and instruments shared by the service.
type Telemetry struct {
	Tracer      trace.Tracer
	Meter       metric.Meter
	Instruments *Instruments

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	loggerProvider *sdklog.LoggerProvider
	logs           bool
	shutdown       []func(context.Context) error
}

// Instruments are the task lifecycle counters.
type Instruments struct {
	TasksSubmitted  metric.Int64Counter
	TasksRejected   metric.Int64Counter
	TasksClaimed    metric.Int64Counter
	Transitions     metric.Int64Counter
	ResultsAttached metric.Int64Counter
}

// Setup builds the SDK providers with stdout exporters writing to w and
// installs them as the global providers and propagator (otelhttp reads the
// propagator from there). A disabled config yields Noop().
//
// Parameters:
//   - ctx: Context for exporter construction
//   - cfg: Telemetry configuration
//   - version: Service version recorded on the resource
//   - w: Destination for exported spans, metrics and logs
//
// Returns:
//   - *Telemetry: Ready-to-use telemetry; call Shutdown on exit
//   - error: If an exporter or instrument cannot be created
func Setup(ctx context.Context, cfg config.TelemetryConfig, version string, w io.Writer) (*Telemetry, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", version),
	)

	t := &Telemetry{logs: cfg.Logs}

	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	t.shutdown = append(t.shutdown, tp.Shutdown)
	t.tracerProvider = tp

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating metric exporter: %w", err), t.Shutdown(ctx))
	}
	interval := time.Duration(cfg.ExportInterval) * time.Second
	if interval <= 0 {
		interval = defaultExportInterval
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)
	t.shutdown = append(t.shutdown, mp.Shutdown)
	t.meterProvider = mp

	if cfg.Logs {
		logExporter, err := stdoutlog.New(stdoutlog.WithWriter(w))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("creating log exporter: %w", err), t.Shutdown(ctx))
		}
		lp := sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
		t.shutdown = append(t.shutdown, lp.Shutdown)
		t.loggerProvider = lp
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if err := t.init(); err != nil {
		return nil, errors.Join(err, t.Shutdown(ctx))
	}
	return t, nil
}

// Noop returns telemetry whose providers record nothing.
func Noop() *Telemetry {
	t := &Telemetry{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	// Instrument creation on no-op meters cannot fail.
	_ = t.init() //nolint:errcheck // no-op meter
	return t
}

func (t *Telemetry) init() error {
	t.Tracer = t.tracerProvider.Tracer(instrumentationName)
	t.Meter = t.meterProvider.Meter(instrumentationName)

	in, err := NewInstruments(t.Meter)
	if err != nil {
		return err
	}
	t.Instruments = in
	return nil
}

// NewInstruments creates the lifecycle counters on m.
func NewInstruments(m metric.Meter) (*Instruments, error) {
	var err error
	in := &Instruments{}
	if in.TasksSubmitted, err = m.Int64Counter("qtask.tasks.submitted",
		metric.WithDescription("Tasks accepted by the validation engine"), metric.WithUnit("{task}")); err != nil {
		return nil, fmt.Errorf("creating counter: %w", err)
	}
	if in.TasksRejected, err = m.Int64Counter("qtask.tasks.rejected",
		metric.WithDescription("Submissions rejected by the validation engine"), metric.WithUnit("{task}")); err != nil {
		return nil, fmt.Errorf("creating counter: %w", err)
	}
	if in.TasksClaimed, err = m.Int64Counter("qtask.tasks.claimed",
		metric.WithDescription("Tasks claimed by provider fetches"), metric.WithUnit("{task}")); err != nil {
		return nil, fmt.Errorf("creating counter: %w", err)
	}
	if in.Transitions, err = m.Int64Counter("qtask.tasks.transitions",
		metric.WithDescription("Task status transitions"), metric.WithUnit("{transition}")); err != nil {
		return nil, fmt.Errorf("creating counter: %w", err)
	}
	if in.ResultsAttached, err = m.Int64Counter("qtask.results.attached",
		metric.WithDescription("Results recorded by providers"), metric.WithUnit("{result}")); err != nil {
		return nil, fmt.Errorf("creating counter: %w", err)
	}
	return in, nil
}

// LogHandler returns the otelslog bridge handler, or nil when log export is off.
func (t *Telemetry) LogHandler() slog.Handler {
	if t.loggerProvider == nil || !t.logs {
		return nil
	}
	return otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(t.loggerProvider))
}

// HTTPMiddleware wraps next with otelhttp server instrumentation.
func (t *Telemetry) HTTPMiddleware(operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, operation,
			otelhttp.WithTracerProvider(t.tracerProvider),
			otelhttp.WithMeterProvider(t.meterProvider),
		)
	}
}

// StartSpan starts a child span named name with the given attributes.
func (t *Telemetry) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Shutdown flushes and stops every provider, newest first.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(t.shutdown) - 1; i >= 0; i-- {
		if err := t.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdown = nil
	return errors.Join(errs...)
}
