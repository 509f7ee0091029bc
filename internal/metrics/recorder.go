package metrics

import "time"

// Recorder defines observability hooks for reconciliation and snapshot
// metrics. Implementations may forward to Prometheus, OpenTelemetry, etc.
// All methods must be safe for nil receivers when using the NoopRecorder
// (allowing optional injection).
type Recorder interface {
	IncHashMismatch(artifact string)
	IncClientRefresh()
	ObserveSnapshotDuration(d time.Duration, success bool)
	IncSnapshotResult(success bool)
	IncSnapshotCoalesced()
	IncSnapshotDuplicate()
	SetSnapshotRunning(running bool)
	IncActionCompleted(action string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncHashMismatch(string)                      {}
func (NoopRecorder) IncClientRefresh()                           {}
func (NoopRecorder) ObserveSnapshotDuration(time.Duration, bool) {}
func (NoopRecorder) IncSnapshotResult(bool)                      {}
func (NoopRecorder) IncSnapshotCoalesced()                       {}
func (NoopRecorder) IncSnapshotDuplicate()                       {}
func (NoopRecorder) SetSnapshotRunning(bool)                     {}
func (NoopRecorder) IncActionCompleted(string)                   {}
