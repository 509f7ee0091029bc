package daemon

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/packwatch/internal/config"
	"git.home.luguber.info/inful/packwatch/internal/events"
	"git.home.luguber.info/inful/packwatch/internal/hashing"
	"git.home.luguber.info/inful/packwatch/internal/interp"
	"git.home.luguber.info/inful/packwatch/internal/metrics"
	"git.home.luguber.info/inful/packwatch/internal/notify"
	"git.home.luguber.info/inful/packwatch/internal/reconcile"
	"git.home.luguber.info/inful/packwatch/internal/statestore"
	"git.home.luguber.info/inful/packwatch/internal/watcher"
)

type loopFixture struct {
	svc      *Service
	cfg      *config.Config
	bus      *events.Bus
	store    *statestore.MockStore
	hashes   *reconcile.HashStore
	computer *hashing.FakeComputer
	runner   *interp.ScriptedRunner
}

func newLoopFixture(t *testing.T) *loopFixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	cfg := config.Default(t.TempDir())
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	store := statestore.NewMockStore()
	hashes := reconcile.NewHashStore(store, logger)
	computer := hashing.NewFakeComputer()
	runner := interp.NewScriptedRunner()
	snapshots := reconcile.NewAutoSnapshotScheduler(cfg.Project.Dir, runner, bus, nil, logger)
	engine := reconcile.NewEngine(reconcile.EngineConfig{
		Project:   cfg.Project.Dir,
		Hashes:    hashes,
		Computer:  computer,
		Runner:    runner,
		Notifier:  notify.NewBusNotifier(bus, logger),
		Snapshots: snapshots,
		Logger:    logger,
	})

	w, err := watcher.New(watcher.Rules{
		LockfilePath: cfg.LockfilePath(),
		LibraryDir:   cfg.LibraryPath(),
		IgnoreDirs:   cfg.Project.IgnoreDirs,
	}, bus, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	svc := &Service{
		cfg:       cfg,
		logger:    logger,
		recorder:  metrics.NoopRecorder{},
		bus:       bus,
		store:     store,
		runner:    runner,
		engine:    engine,
		snapshots: snapshots,
		tracker:   reconcile.NewActionTracker(cfg.Project.Dir, nil, logger),
		watch:     w,
		ready:     make(chan struct{}),
	}

	return &loopFixture{
		svc:      svc,
		cfg:      cfg,
		bus:      bus,
		store:    store,
		hashes:   hashes,
		computer: computer,
		runner:   runner,
	}
}

func (f *loopFixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.svc.runLoop(ctx)

	select {
	case <-f.svc.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not become ready")
	}
}

func expectRefresh(t *testing.T, ch <-chan events.PackagesChanged) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a client refresh")
	}
}

func expectNoRefresh(t *testing.T, ch <-chan events.PackagesChanged) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected client refresh")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestLoop_LockfileChangeRefreshesClient(t *testing.T) {
	f := newLoopFixture(t)
	f.computer.Lockfile = "ab12cd34"

	refreshCh, unsubscribe := events.Subscribe[events.PackagesChanged](f.bus, 8)
	defer unsubscribe()

	f.start(t)

	ctx := context.Background()
	require.NoError(t, f.bus.Publish(ctx, events.FileChanged{
		Path: f.cfg.LockfilePath(), Op: "WRITE", DetectedAt: time.Now(),
	}))

	expectRefresh(t, refreshCh)
}

func TestLoop_FileChangesIgnoredWhileActionRuns(t *testing.T) {
	f := newLoopFixture(t)
	f.computer.Lockfile = "ab12cd34"

	refreshCh, unsubscribe := events.Subscribe[events.PackagesChanged](f.bus, 8)
	defer unsubscribe()

	f.start(t)
	ctx := context.Background()

	require.NoError(t, f.bus.Publish(ctx, events.ActionNotice{
		Project: f.cfg.Project.Dir, Action: "restore", Running: true, At: time.Now(),
	}))

	// The loop consumes notices and file events from separate channels, so
	// wait until the start notice has landed before emitting churn.
	require.Eventually(t, func() bool {
		var running reconcile.Action
		f.svc.withCore(func() { running = f.svc.tracker.Running() })
		return running == reconcile.ActionRestore
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.bus.Publish(ctx, events.FileChanged{
		Path: f.cfg.LockfilePath(), Op: "WRITE", DetectedAt: time.Now(),
	}))
	expectNoRefresh(t, refreshCh)

	// Action stops: the restore resolves the lockfile and the client is
	// told about the resulting state change.
	require.NoError(t, f.bus.Publish(ctx, events.ActionNotice{
		Project: f.cfg.Project.Dir, Action: "restore", Running: false, At: time.Now(),
	}))
	expectRefresh(t, refreshCh)

	require.Eventually(t, func() bool {
		var resolved string
		f.svc.withCore(func() {
			resolved = f.hashes.Get(ctx, reconcile.ArtifactLockfile, reconcile.TierResolved)
		})
		return resolved == "ab12cd34"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestLoop_SweepChecksBothArtifacts(t *testing.T) {
	f := newLoopFixture(t)
	f.computer.Lockfile = "ab12cd34"

	refreshCh, unsubscribe := events.Subscribe[events.PackagesChanged](f.bus, 8)
	defer unsubscribe()

	f.start(t)

	require.NoError(t, f.bus.Publish(context.Background(), events.SweepTick{At: time.Now()}))
	expectRefresh(t, refreshCh)
}

func TestLoop_SnapshotCompletionResolvesLibrary(t *testing.T) {
	f := newLoopFixture(t)
	f.computer.Library = "55aa55aa"

	f.start(t)
	ctx := context.Background()

	// A library change with a resolved lockfile requests an auto-snapshot;
	// the scripted capture succeeds immediately and its completion event
	// resolves the library on the loop.
	require.NoError(t, f.bus.Publish(ctx, events.FileChanged{
		Path: f.cfg.LibraryPath(), Op: "CREATE", DetectedAt: time.Now(),
	}))

	require.Eventually(t, func() bool {
		var resolved string
		f.svc.withCore(func() {
			resolved = f.hashes.Get(ctx, reconcile.ArtifactLibrary, reconcile.TierResolved)
		})
		return resolved == "55aa55aa"
	}, 2*time.Second, 20*time.Millisecond)
	require.Equal(t, 1, f.runner.CaptureCalls())
}
