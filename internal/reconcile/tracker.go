package reconcile

import (
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/packwatch/internal/logfields"
	"git.home.luguber.info/inful/packwatch/internal/metrics"
)

// ActionTracker follows the external manager's long-running actions for
// one project. While an action runs, filesystem events are expected and
// must not trigger reconciliation; when it stops, the completed action
// determines which artifact gets reconciled.
//
// There is a single running-action slot. The manager cannot run two
// actions at once, so a second start notice means the stop notice for
// the previous action was lost; the tracker warns and overwrites.
type ActionTracker struct {
	project  string
	running  Action
	recorder metrics.Recorder
	logger   *slog.Logger
}

func NewActionTracker(project string, recorder metrics.Recorder, logger *slog.Logger) *ActionTracker {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ActionTracker{project: project, recorder: recorder, logger: logger}
}

// Running returns the action currently in flight, or ActionNone.
func (t *ActionTracker) Running() Action {
	return t.running
}

// OnNotice processes a start/stop notice from the manager. Notices for
// other projects are ignored. The return value is the action that just
// completed, or ActionNone for starts and ignored notices.
func (t *ActionTracker) OnNotice(project, actionName string, running bool) Action {
	if !samePath(project, t.project) {
		t.logger.Debug("ignoring action notice for other project",
			logfields.Project(project),
			logfields.Action(actionName))
		return ActionNone
	}

	action := ParseAction(actionName)

	if running {
		if t.running != ActionNone {
			t.logger.Warn("action started while another was still tracked, overwriting",
				logfields.Action(actionName),
				slog.String("previous", string(t.running)))
		}
		t.running = action
		return ActionNone
	}

	completed := t.running
	t.running = ActionNone
	if completed == ActionNone {
		// Stop without a matching start; trust the notice's own name.
		completed = action
	}
	t.recorder.IncActionCompleted(string(completed))
	t.logger.Info("action completed",
		logfields.Project(t.project),
		logfields.Action(string(completed)))
	return completed
}

// samePath compares two project paths, resolving symlinks when possible
// so that notices referring to the same directory through different
// links still match.
func samePath(a, b string) bool {
	if a == b {
		return true
	}
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return ra == rb
}
