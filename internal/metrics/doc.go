// Package metrics provides an observability framework for packwatch
// reconciliation metrics.
//
// The package implements the Null Object pattern to enable metrics
// collection without explicit nil checks: components receive a Recorder
// through dependency injection and default to NoopRecorder (zero
// overhead). Enabling metrics is a matter of injecting
// NewPrometheusRecorder and serving HTTPHandler on the daemon's HTTP
// surface.
package metrics
