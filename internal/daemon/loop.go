package daemon

import (
	"context"
	"os"

	"git.home.luguber.info/inful/packwatch/internal/events"
	"git.home.luguber.info/inful/packwatch/internal/logfields"
	"git.home.luguber.info/inful/packwatch/internal/reconcile"
)

// runLoop is the daemon's heart: one goroutine consuming every bus event
// that may mutate reconciliation state. Snapshot subprocesses run
// elsewhere and report back here as SnapshotJobDone, so from the state
// machine's point of view a capture's exit is the only suspension point.
func (s *Service) runLoop(ctx context.Context) {
	fileCh, unsubFile := events.Subscribe[events.FileChanged](s.bus, 64)
	defer unsubFile()
	noticeCh, unsubNotice := events.Subscribe[events.ActionNotice](s.bus, 16)
	defer unsubNotice()
	doneCh, unsubDone := events.Subscribe[events.SnapshotJobDone](s.bus, 16)
	defer unsubDone()
	sweepCh, unsubSweep := events.Subscribe[events.SweepTick](s.bus, 4)
	defer unsubSweep()

	s.readyOnce.Do(func() { close(s.ready) })

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-fileCh:
			if !ok {
				return
			}
			s.onFileChanged(ctx, evt)
		case evt, ok := <-noticeCh:
			if !ok {
				return
			}
			s.onActionNotice(ctx, evt)
		case evt, ok := <-doneCh:
			if !ok {
				return
			}
			s.withCore(func() {
				s.engine.OnSnapshotJobDone(ctx, evt.Success)
			})
		case _, ok := <-sweepCh:
			if !ok {
				return
			}
			s.onSweep(ctx)
		}
	}
}

// onFileChanged routes a filesystem event to the artifact it belongs to.
// While a manager action runs, its own file churn is expected and ignored;
// the post-action resolution settles the state instead.
func (s *Service) onFileChanged(ctx context.Context, evt events.FileChanged) {
	s.withCore(func() {
		if running := s.tracker.Running(); running != reconcile.ActionNone {
			s.logger.Debug("ignoring file change during action",
				logfields.Path(evt.Path),
				logfields.Action(string(running)))
			return
		}

		info, err := os.Stat(evt.Path)
		isDir := err == nil && info.IsDir()

		artifact, ok := s.watch.Rules().Classify(evt.Path, isDir)
		if !ok {
			return
		}
		switch artifact {
		case reconcile.ArtifactLockfile:
			s.engine.OnLockfileChanged(ctx)
		case reconcile.ArtifactLibrary:
			s.engine.OnLibraryChanged(ctx)
		}
	})
}

func (s *Service) onActionNotice(ctx context.Context, evt events.ActionNotice) {
	s.withCore(func() {
		project := evt.Project
		if project == "" {
			project = s.cfg.Project.Dir
		}
		completed := s.tracker.OnNotice(project, evt.Action, evt.Running)
		switch completed {
		case reconcile.ActionRestore:
			s.engine.ResolveStateAfterAction(ctx, reconcile.ActionRestore, reconcile.ArtifactLockfile)
		case reconcile.ActionSnapshot:
			s.engine.ResolveStateAfterAction(ctx, reconcile.ActionSnapshot, reconcile.ArtifactLibrary)
		default:
			// Clean and unknown actions settle nothing on their own.
		}
	})
}

// onSweep re-checks both artifacts. Monitoring stays quiet while an
// action runs, same as for file events.
func (s *Service) onSweep(ctx context.Context) {
	s.withCore(func() {
		if s.tracker.Running() != reconcile.ActionNone {
			return
		}
		s.engine.OnLockfileChanged(ctx)
		s.engine.OnLibraryChanged(ctx)
	})
}
