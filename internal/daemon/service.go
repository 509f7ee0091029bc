// Package daemon assembles the packwatch components and runs the event
// loop that drives reconciliation.
package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/packwatch/internal/api"
	"git.home.luguber.info/inful/packwatch/internal/config"
	"git.home.luguber.info/inful/packwatch/internal/events"
	ferrors "git.home.luguber.info/inful/packwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/packwatch/internal/hashing"
	"git.home.luguber.info/inful/packwatch/internal/interp"
	"git.home.luguber.info/inful/packwatch/internal/metrics"
	"git.home.luguber.info/inful/packwatch/internal/notify"
	"git.home.luguber.info/inful/packwatch/internal/reconcile"
	"git.home.luguber.info/inful/packwatch/internal/statestore"
	"git.home.luguber.info/inful/packwatch/internal/watcher"
)

// Service owns every long-lived component of the daemon: state store,
// watcher, reconciliation engine, scheduler, tracker, HTTP API and the
// optional NATS forwarder.
//
// The reconciliation core is not concurrency-safe. Both the event loop
// and the HTTP handlers take s.mu before touching it, which gives the
// same effect as the single-threaded model the state machine assumes.
type Service struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder metrics.Recorder
	registry *prom.Registry

	bus       *events.Bus
	store     statestore.Store
	runner    interp.Runner
	engine    *reconcile.Engine
	snapshots *reconcile.AutoSnapshotScheduler
	tracker   *reconcile.ActionTracker
	watch     *watcher.Watcher
	forwarder *notify.NATSForwarder
	server    *api.Server
	sweeper   gocron.Scheduler

	mu        sync.Mutex
	ready     chan struct{}
	readyOnce sync.Once
}

// New wires a Service from configuration. Nothing is started yet; Run
// does that.
func New(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:      cfg,
		logger:   logger,
		recorder: metrics.NoopRecorder{},
		ready:    make(chan struct{}),
	}

	if cfg.Metrics.Enabled {
		s.registry = prom.NewRegistry()
		s.recorder = metrics.NewPrometheusRecorder(s.registry)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Daemon.StateDB), 0o755); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create state directory").
			WithContext("path", filepath.Dir(cfg.Daemon.StateDB)).
			Build()
	}
	store, err := statestore.NewSQLiteStore(cfg.Daemon.StateDB)
	if err != nil {
		return nil, err
	}
	s.store = store

	s.bus = events.NewBus()
	s.runner = interp.NewExecRunner(interp.ExecRunnerConfig{
		Binary:       cfg.Interp.Binary,
		QueryTimeout: cfg.QueryTimeoutDuration(),
	})

	hashes := reconcile.NewHashStore(store, logger)
	computer := hashing.NewCRC32Computer(cfg.LockfilePath(), cfg.LibraryPath())
	s.snapshots = reconcile.NewAutoSnapshotScheduler(cfg.Project.Dir, s.runner, s.bus, s.recorder, logger)
	s.tracker = reconcile.NewActionTracker(cfg.Project.Dir, s.recorder, logger)
	s.engine = reconcile.NewEngine(reconcile.EngineConfig{
		Project:   cfg.Project.Dir,
		Hashes:    hashes,
		Computer:  computer,
		Runner:    s.runner,
		Notifier:  notify.NewBusNotifier(s.bus, logger),
		Snapshots: s.snapshots,
		Recorder:  s.recorder,
		Logger:    logger,
	})

	s.watch, err = watcher.New(watcher.Rules{
		LockfilePath: cfg.LockfilePath(),
		LibraryDir:   cfg.LibraryPath(),
		IgnoreDirs:   cfg.Project.IgnoreDirs,
	}, s.bus, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	s.server = api.NewServer(s, logger)
	if s.registry != nil {
		s.server.MetricsHandler = metrics.HTTPHandler(s.registry)
	}

	if cfg.Notify.NATSURL != "" {
		s.forwarder, err = notify.NewNATSForwarder(cfg.Notify.NATSURL, cfg.Notify.Subject, cfg.Project.Dir, logger)
		if err != nil {
			_ = s.watch.Close()
			_ = store.Close()
			return nil, err
		}
	}

	return s, nil
}

// Ready is closed once the event loop is subscribed and processing.
// Primarily for tests and deterministic startup sequencing.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Run starts every component and blocks until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting daemon",
		"project", s.cfg.Project.Dir,
		"lockfile", s.cfg.LockfilePath(),
		"library", s.cfg.LibraryPath())

	if err := s.watch.Start(); err != nil {
		return err
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.watch.Run(ctx)
	}()

	if s.forwarder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.forwarder.Run(ctx, s.bus)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.server.ListenAndServe(ctx, s.cfg.Daemon.ListenAddr); err != nil {
			s.logger.Error("API server exited", "error", err)
		}
	}()

	if err := s.startSweeper(ctx); err != nil {
		return err
	}

	// Catch up on anything that changed while the daemon was down.
	s.withCore(func() {
		s.engine.OnLockfileChanged(ctx)
		s.engine.OnLibraryChanged(ctx)
	})

	s.runLoop(ctx)

	wg.Wait()
	s.shutdown()
	return nil
}

// startSweeper schedules the periodic full re-check. The sweep is a
// safety net for file events the watcher missed (network filesystems,
// overflowed kernel queues).
func (s *Service) startSweeper(ctx context.Context) error {
	interval := s.cfg.SweepIntervalDuration()
	if interval <= 0 {
		s.logger.Info("periodic sweep disabled")
		return nil
	}

	sweeper, err := gocron.NewScheduler()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to create sweep scheduler").Build()
	}
	_, err = sweeper.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			_ = s.bus.Publish(ctx, events.SweepTick{At: time.Now()})
		}),
		gocron.WithName("state-sweep"),
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to schedule sweep").Build()
	}
	sweeper.Start()
	s.sweeper = sweeper
	s.logger.Info("periodic sweep scheduled", "interval", interval.String())
	return nil
}

func (s *Service) shutdown() {
	if s.sweeper != nil {
		_ = s.sweeper.Shutdown()
	}
	if s.forwarder != nil {
		s.forwarder.Close()
	}
	_ = s.watch.Close()
	s.bus.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Warn("failed to close state store", "error", err)
	}
	s.logger.Info("daemon stopped")
}

// withCore runs fn with exclusive access to the reconciliation core.
func (s *Service) withCore(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}
