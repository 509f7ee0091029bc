package daemon

import (
	"context"
	"time"

	"git.home.luguber.info/inful/packwatch/internal/api"
	"git.home.luguber.info/inful/packwatch/internal/events"
	"git.home.luguber.info/inful/packwatch/internal/interp"
	"git.home.luguber.info/inful/packwatch/internal/logfields"
	"git.home.luguber.info/inful/packwatch/internal/reconcile"
)

// Service implements api.Service. Read-style queries take the core mutex
// directly; notifications go through the bus so they are processed in
// event order on the loop.
var _ api.Service = (*Service)(nil)

func (s *Service) ProjectContext(ctx context.Context) reconcile.Context {
	var result reconcile.Context
	s.withCore(func() {
		result = s.engine.ProjectContext(ctx)
	})
	return result
}

func (s *Service) Prerequisites(ctx context.Context) reconcile.Prerequisites {
	var result reconcile.Prerequisites
	s.withCore(func() {
		result = s.engine.Prerequisites(ctx)
	})
	return result
}

func (s *Service) PendingActions(ctx context.Context) reconcile.PendingActions {
	var result reconcile.PendingActions
	s.withCore(func() {
		result = s.engine.AnnotatePendingActions(ctx)
	})
	return result
}

func (s *Service) Options(ctx context.Context) interp.Options {
	var result interp.Options
	s.withCore(func() {
		result = s.engine.ProjectOptions(ctx)
	})
	return result
}

func (s *Service) Status(ctx context.Context) api.Status {
	var result api.Status
	s.withCore(func() {
		result = api.Status{
			Project:         s.cfg.Project.Dir,
			MonitoringArmed: s.watch.Armed(),
			SnapshotRunning: s.snapshots.Running(),
			PendingCount:    s.snapshots.PendingCount(),
			RunningAction:   string(s.tracker.Running()),
		}
	})
	return result
}

func (s *Service) NotifySaved(ctx context.Context, path string) bool {
	return s.watch.NotifySaved(ctx, path)
}

func (s *Service) ActionNotice(ctx context.Context, project, action string, running bool) {
	evt := events.ActionNotice{
		Project: project,
		Action:  action,
		Running: running,
		At:      time.Now(),
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish action notice",
			logfields.Action(action),
			logfields.Error(err))
	}
}

func (s *Service) Bootstrap(ctx context.Context, enter bool) error {
	return s.runner.Bootstrap(ctx, s.cfg.Project.Dir, enter)
}

func (s *Service) InstallManager(ctx context.Context) error {
	return s.runner.InstallManager(ctx)
}
