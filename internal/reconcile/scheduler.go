package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/packwatch/internal/events"
	"git.home.luguber.info/inful/packwatch/internal/interp"
	"git.home.luguber.info/inful/packwatch/internal/logfields"
	"git.home.luguber.info/inful/packwatch/internal/metrics"
)

// AutoSnapshotScheduler runs snapshot captures against a single job slot.
//
// It implements the coalescing behavior the daemon loop relies on:
//   - one capture subprocess at a time
//   - a duplicate request for the hash already being captured is dropped
//   - requests for a different hash while a job runs are counted, and a
//     successful job with a non-zero count spawns exactly one follow-up
//     at the freshly recomputed hash
//
// Request and Finish must be called from the daemon loop; only the capture
// subprocess runs off-loop, and it reports back by publishing
// SnapshotJobDone on the bus.
type AutoSnapshotScheduler struct {
	project  string
	runner   interp.Runner
	bus      *events.Bus
	recorder metrics.Recorder
	logger   *slog.Logger

	running    bool
	jobID      string
	targetHash string
	pending    int
}

func NewAutoSnapshotScheduler(project string, runner interp.Runner, bus *events.Bus, recorder metrics.Recorder, logger *slog.Logger) *AutoSnapshotScheduler {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoSnapshotScheduler{
		project:  project,
		runner:   runner,
		bus:      bus,
		recorder: recorder,
		logger:   logger,
	}
}

// Running reports whether a capture subprocess is in flight.
func (s *AutoSnapshotScheduler) Running() bool {
	return s.running
}

// PendingCount returns the number of coalesced requests behind the
// running job. Intended for diagnostics and tests.
func (s *AutoSnapshotScheduler) PendingCount() int {
	return s.pending
}

// Request asks for a snapshot capturing the library state identified by
// targetHash. With no job running it starts one; with a job running it
// either drops the request (same target) or counts it for a follow-up.
func (s *AutoSnapshotScheduler) Request(ctx context.Context, targetHash string) {
	if s.running {
		if targetHash == s.targetHash {
			s.logger.Debug("dropping duplicate snapshot request",
				logfields.JobID(s.jobID),
				logfields.Target(targetHash))
			s.recorder.IncSnapshotDuplicate()
			return
		}
		s.pending++
		s.recorder.IncSnapshotCoalesced()
		s.logger.Debug("coalescing snapshot request behind running job",
			logfields.JobID(s.jobID),
			logfields.Target(targetHash),
			logfields.Pending(s.pending))
		return
	}

	s.running = true
	s.jobID = uuid.NewString()
	s.targetHash = targetHash
	s.recorder.SetSnapshotRunning(true)
	s.logger.Info("starting auto-snapshot",
		logfields.JobID(s.jobID),
		logfields.Target(targetHash))

	go s.capture(ctx, s.jobID, targetHash)
}

// capture runs off-loop. It must not touch scheduler state; the result
// travels back to the loop as a SnapshotJobDone event.
func (s *AutoSnapshotScheduler) capture(ctx context.Context, jobID, targetHash string) {
	start := time.Now()
	err := s.runner.RunCapture(ctx, s.project)
	duration := time.Since(start)
	success := err == nil

	s.recorder.ObserveSnapshotDuration(duration, success)
	if err != nil {
		s.logger.Warn("auto-snapshot failed",
			logfields.JobID(jobID),
			logfields.DurationMS(float64(duration.Milliseconds())),
			logfields.Error(err))
	} else {
		s.logger.Info("auto-snapshot finished",
			logfields.JobID(jobID),
			logfields.DurationMS(float64(duration.Milliseconds())))
	}

	evt := events.SnapshotJobDone{
		JobID:      jobID,
		TargetHash: targetHash,
		Success:    success,
		FinishedAt: time.Now(),
	}
	if pubErr := s.bus.Publish(ctx, evt); pubErr != nil {
		s.logger.Warn("failed to publish snapshot completion",
			logfields.JobID(jobID),
			logfields.Error(pubErr))
	}
}

// Finish clears the job slot after a completion event and reports whether
// a follow-up capture is owed. Failed jobs discard their coalesced count:
// retrying immediately would likely fail the same way, and the next file
// event re-requests naturally.
func (s *AutoSnapshotScheduler) Finish(success bool) bool {
	s.running = false
	s.jobID = ""
	s.targetHash = ""
	s.recorder.SetSnapshotRunning(false)
	s.recorder.IncSnapshotResult(success)

	followUp := success && s.pending > 0
	s.pending = 0
	return followUp
}
