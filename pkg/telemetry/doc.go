// Package telemetry wires nclav's structured logging (zerolog), metrics
// (Prometheus), and tracing (OpenTelemetry) into one configuration and a
// set of context helpers scoped to reconcile runs and individual
// resources. Audit history itself is not telemetry's concern — that is
// the append-only event log in pkg/store; telemetry only instruments the
// process that drives it.
package telemetry
