package reconcile

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/packwatch/internal/hashing"
	"git.home.luguber.info/inful/packwatch/internal/interp"
	"git.home.luguber.info/inful/packwatch/internal/logfields"
	"git.home.luguber.info/inful/packwatch/internal/metrics"
	"git.home.luguber.info/inful/packwatch/internal/notify"
)

// Engine owns the three-tier hash-state model and the decisions made when
// tiers disagree. The engine carries no locks of its own; callers must
// serialize access. The daemon does so by funneling loop events and API
// requests through one mutex.
type Engine struct {
	project   string
	hashes    *HashStore
	computer  hashing.Computer
	runner    interp.Runner
	notifier  notify.Notifier
	snapshots *AutoSnapshotScheduler
	recorder  metrics.Recorder
	logger    *slog.Logger

	// re-entrancy guard, per artifact
	checking map[Artifact]bool
}

type EngineConfig struct {
	Project   string
	Hashes    *HashStore
	Computer  hashing.Computer
	Runner    interp.Runner
	Notifier  notify.Notifier
	Snapshots *AutoSnapshotScheduler
	Recorder  metrics.Recorder
	Logger    *slog.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		project:   cfg.Project,
		hashes:    cfg.Hashes,
		computer:  cfg.Computer,
		runner:    cfg.Runner,
		notifier:  cfg.Notifier,
		snapshots: cfg.Snapshots,
		recorder:  recorder,
		logger:    logger,
		checking:  make(map[Artifact]bool),
	}
}

func (e *Engine) computeHash(artifact Artifact) (string, error) {
	if artifact == ArtifactLockfile {
		return e.computer.LockfileHash()
	}
	return e.computer.LibraryHash()
}

// CheckHashes compares the stored hash at tier against the freshly
// computed hash for artifact and invokes onMismatch when they differ.
// Re-entrant checks for the same artifact are dropped: a mismatch handler
// that triggers further filesystem activity must not recurse into its
// own reconciliation.
func (e *Engine) CheckHashes(ctx context.Context, artifact Artifact, tier Tier, onMismatch func(old, new string)) {
	if e.checking[artifact] {
		e.logger.Debug("dropping re-entrant hash check",
			logfields.Artifact(string(artifact)),
			logfields.Tier(string(tier)))
		return
	}
	e.checking[artifact] = true
	defer func() { e.checking[artifact] = false }()

	old := e.hashes.Get(ctx, artifact, tier)
	current, err := e.computeHash(artifact)
	if err != nil {
		e.logger.Warn("failed to compute hash, abandoning check",
			logfields.Artifact(string(artifact)),
			logfields.Tier(string(tier)),
			logfields.Error(err))
		return
	}
	if old == current {
		return
	}
	e.recorder.IncHashMismatch(string(artifact))
	onMismatch(old, current)
}

// UpdateHash recomputes the artifact's hash and persists it at the given
// stored tier, returning the new value. On a compute failure the stored
// value is left untouched and returned unchanged.
func (e *Engine) UpdateHash(ctx context.Context, artifact Artifact, tier Tier) string {
	current, err := e.computeHash(artifact)
	if err != nil {
		e.logger.Warn("failed to compute hash, keeping stored value",
			logfields.Artifact(string(artifact)),
			logfields.Tier(string(tier)),
			logfields.Error(err))
		return e.hashes.Get(ctx, artifact, tier)
	}
	e.hashes.Put(ctx, artifact, tier, current)
	return current
}

// IsUnresolved reports whether a corrective action is owed for the
// artifact: the client has observed a state that differs from the last
// resolved one. An empty tier means "no claim", not a mismatch, so a
// project that has never been snapshot or restored reads as resolved.
func (e *Engine) IsUnresolved(ctx context.Context, artifact Artifact) bool {
	observed := e.hashes.Get(ctx, artifact, TierObserved)
	resolved := e.hashes.Get(ctx, artifact, TierResolved)
	if observed == "" || resolved == "" {
		return false
	}
	return observed != resolved
}

// OnLockfileChanged reconciles the lockfile after a filesystem event. A
// divergence from the client's observed state only triggers a client
// refresh; the observed tier itself advances when the client next asks
// for pending actions.
func (e *Engine) OnLockfileChanged(ctx context.Context) {
	e.CheckHashes(ctx, ArtifactLockfile, TierObserved, func(old, current string) {
		e.logger.Debug("lockfile diverged from observed state",
			logfields.OldHash(old),
			logfields.NewHash(current))
		e.notifyClient(ctx)
	})
}

// OnLibraryChanged reconciles the library after a filesystem event. When
// the lockfile is already resolved, the library change is the sole source
// of drift and an auto-snapshot is requested to capture it. When the
// lockfile itself is unresolved a snapshot would bake in an inconsistent
// lockfile, so the restore takes precedence and the client is only
// notified.
func (e *Engine) OnLibraryChanged(ctx context.Context) {
	e.CheckHashes(ctx, ArtifactLibrary, TierObserved, func(old, current string) {
		if e.IsUnresolved(ctx, ArtifactLockfile) {
			e.logger.Debug("library changed but lockfile is unresolved, deferring to restore",
				logfields.NewHash(current))
			e.notifyClient(ctx)
			return
		}
		e.snapshots.Request(ctx, current)
	})
}

// OnSnapshotJobDone settles scheduler state after a snapshot subprocess
// exits. A successful job with coalesced requests behind it spawns one
// follow-up at the freshly recomputed library hash; a successful job with
// none resolves both artifacts.
func (e *Engine) OnSnapshotJobDone(ctx context.Context, success bool) {
	followUp := e.snapshots.Finish(success)
	if !success {
		return
	}
	if followUp {
		current, err := e.computeHash(ArtifactLibrary)
		if err != nil {
			e.logger.Warn("failed to compute library hash for follow-up snapshot",
				logfields.Error(err))
			return
		}
		e.snapshots.Request(ctx, current)
		return
	}
	e.ResolveStateAfterAction(ctx, ActionSnapshot, ArtifactLibrary)
}

// ResolveStateAfterAction runs after a manager action completes. The
// changed artifact's observed tier is refreshed, the client is notified
// if the action altered on-disk state, and both artifacts are marked
// resolved when the manager reports nothing left to do.
func (e *Engine) ResolveStateAfterAction(ctx context.Context, action Action, artifact Artifact) {
	before := e.hashes.Get(ctx, artifact, TierObserved)
	after := e.UpdateHash(ctx, artifact, TierObserved)
	if before != after {
		e.notifyClient(ctx)
	}

	pending, err := e.runner.PendingActions(ctx, string(action), e.project)
	if err != nil {
		e.logger.Warn("failed to query pending actions",
			logfields.Action(string(action)),
			logfields.Error(err))
	}
	if len(pending) == 0 {
		e.UpdateHash(ctx, ArtifactLibrary, TierResolved)
		e.UpdateHash(ctx, ArtifactLockfile, TierResolved)
		e.logger.Info("project state resolved",
			logfields.Project(e.project),
			logfields.Action(string(action)))
	}
}

// PendingActions describes the manager operations required to bring the
// project back to a consistent state, grouped by remedial action.
type PendingActions struct {
	RestoreActions  []interp.Action `json:"restore_actions"`
	SnapshotActions []interp.Action `json:"snapshot_actions"`
	CleanActions    []interp.Action `json:"clean_actions"`
}

// AnnotatePendingActions refreshes both observed tiers (the client is
// about to see the current state) and queries the manager for remedial
// actions. Queries are gated on dirtiness: a clean artifact never incurs
// a manager round trip.
func (e *Engine) AnnotatePendingActions(ctx context.Context) PendingActions {
	var result PendingActions

	libraryHash := e.UpdateHash(ctx, ArtifactLibrary, TierObserved)
	lockfileHash := e.UpdateHash(ctx, ArtifactLockfile, TierObserved)

	libraryDirty := libraryHash != e.hashes.Get(ctx, ArtifactLibrary, TierResolved)
	lockfileDirty := lockfileHash != e.hashes.Get(ctx, ArtifactLockfile, TierResolved)

	if libraryDirty {
		result.SnapshotActions = e.queryActions(ctx, ActionSnapshot)
	}
	if lockfileDirty {
		result.RestoreActions = e.queryActions(ctx, ActionRestore)
	}
	result.CleanActions = e.queryActions(ctx, ActionClean)

	return result
}

func (e *Engine) queryActions(ctx context.Context, action Action) []interp.Action {
	actions, err := e.runner.PendingActions(ctx, string(action), e.project)
	if err != nil {
		e.logger.Warn("failed to query pending actions",
			logfields.Action(string(action)),
			logfields.Error(err))
		return nil
	}
	return actions
}

func (e *Engine) notifyClient(ctx context.Context) {
	e.recorder.IncClientRefresh()
	e.notifier.PackagesChanged(ctx)
}

// Context describes whether dependency management is possible and active.
// Each field implies the ones before it.
type Context struct {
	Available  bool `json:"available"`
	Applicable bool `json:"applicable"`
	Packified  bool `json:"packified"`
	ModeOn     bool `json:"mode_on"`
}

// ProjectContext evaluates the management context for the project. The
// chain short-circuits: an unavailable manager never probes the project,
// and an unmanaged project never probes mode.
func (e *Engine) ProjectContext(ctx context.Context) Context {
	var result Context
	result.Available = e.runner.Available(ctx)
	result.Applicable = result.Available && e.project != ""
	if !result.Applicable {
		return result
	}
	packified, err := e.runner.IsPackified(ctx, e.project)
	if err != nil {
		e.logger.Warn("failed to query project management state", logfields.Error(err))
		return result
	}
	result.Packified = packified
	if !packified {
		return result
	}
	modeOn, err := e.runner.IsModeOn(ctx, e.project)
	if err != nil {
		e.logger.Warn("failed to query management mode", logfields.Error(err))
		return result
	}
	result.ModeOn = modeOn
	return result
}

// Prerequisites reports what is missing before management can be enabled.
type Prerequisites struct {
	BuildToolsAvailable bool `json:"build_tools_available"`
	PackageAvailable    bool `json:"package_available"`
}

func (e *Engine) Prerequisites(ctx context.Context) Prerequisites {
	return Prerequisites{
		BuildToolsAvailable: e.runner.BuildToolsAvailable(ctx),
		PackageAvailable:    e.runner.Available(ctx),
	}
}

// ProjectOptions returns the manager's per-project options, falling back
// to the defaults when the project is unmanaged or the query fails.
func (e *Engine) ProjectOptions(ctx context.Context) interp.Options {
	packified, err := e.runner.IsPackified(ctx, e.project)
	if err != nil || !packified {
		return interp.DefaultOptions()
	}
	opts, err := e.runner.ProjectOptions(ctx, e.project)
	if err != nil {
		e.logger.Warn("failed to query project options", logfields.Error(err))
		return interp.DefaultOptions()
	}
	return opts
}
