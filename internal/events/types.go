package events

import "time"

// FileChanged is emitted by the watcher for every relevant filesystem event
// on the lockfile or within the library tree, and for explicit editor
// file-save notifications.
//
// This is an orchestration event used by the daemon's in-process control flow.
// It is not durable.
type FileChanged struct {
	Path       string
	Op         string
	DetectedAt time.Time
}

// ActionNotice reports that the external dependency tool started or stopped
// an action (snapshot, restore or clean) for a project.
type ActionNotice struct {
	Project string
	Action  string
	Running bool
	At      time.Time
}

// SnapshotJobDone is published when an auto-snapshot subprocess exits.
// It is consumed on the daemon loop so all scheduler state mutates there.
type SnapshotJobDone struct {
	JobID      string
	TargetHash string
	Success    bool
	FinishedAt time.Time
}

// PackagesChanged tells the client to refresh its dependency view.
// Fire-and-forget; carries no payload beyond the event kind.
type PackagesChanged struct {
	At time.Time
}

// SweepTick asks the daemon loop to re-check both artifacts. Emitted by the
// periodic scheduler as a safety net for missed file events.
type SweepTick struct {
	At time.Time
}
