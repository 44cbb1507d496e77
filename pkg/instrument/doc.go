// Package instrument exports pulse runtime activity to Prometheus and
// OpenTelemetry. Both exporters implement pulse.Observer and attach with
// pulse.AddObserver, so the core runtime carries no metrics or tracing
// dependency of its own.
package instrument
