// Package progress provides the event primitives, non-blocking hub, and
// publisher adapter that running jobs use to report their lifecycle. It
// batches events on a background goroutine and fans them out to pluggable
// sinks such as structured logs, Prometheus metrics, or websocket streams.
package progress
