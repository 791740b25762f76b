// Package telemetry owns the process-wide OpenTelemetry providers.
//
// A single Telemetry value is built at startup and passed explicitly to the
// components that trace, count or log; nothing reaches for a global. When
// telemetry is disabled the same value carries no-op providers, so callers
// never branch on it.
//
// Exporters write to a configurable writer (stdout in production) using the
// stdout trace, metric and log exporters.
//
// Instruments:
//   - qtask.tasks.submitted   tasks accepted by the validation engine
//   - qtask.tasks.rejected    submissions rejected by the validation engine
//   - qtask.tasks.claimed     tasks claimed by provider fetches
//   - qtask.tasks.transitions status transitions, by from/to
//   - qtask.results.attached  results recorded by providers
package telemetry
