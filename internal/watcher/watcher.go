// Package watcher turns filesystem activity on a project's dependency
// artifacts into FileChanged events on the daemon bus. It watches the
// lockfile's directory and, once a lockfile exists, the library tree.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/packwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/packwatch/internal/events"
	"git.home.luguber.info/inful/packwatch/internal/hashing"
	"git.home.luguber.info/inful/packwatch/internal/logfields"
	"git.home.luguber.info/inful/packwatch/internal/reconcile"
)

// Rules decides which paths are worth reacting to and which artifact a
// path belongs to. Shared by the watcher's event filter and the daemon's
// change routing.
type Rules struct {
	LockfilePath string
	LibraryDir   string

	// IgnoreDirs names top-level library entries whose contents never
	// affect the dependency state (scratch packages written by the IDE).
	IgnoreDirs []string
}

// Classify maps a path to the artifact it belongs to. The second return
// is false for paths that are irrelevant to reconciliation.
func (r Rules) Classify(path string, isDir bool) (reconcile.Artifact, bool) {
	if filepath.Clean(path) == filepath.Clean(r.LockfilePath) {
		return reconcile.ArtifactLockfile, true
	}

	rel, err := filepath.Rel(r.LibraryDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return reconcile.ArtifactLibrary, true
	}

	first := rel
	if i := strings.IndexRune(rel, filepath.Separator); i >= 0 {
		first = rel[:i]
	}
	for _, ignored := range r.IgnoreDirs {
		if first == ignored {
			return "", false
		}
	}

	// Within the library only directory shape and package metadata matter;
	// object files and help indexes churn without changing the state.
	if isDir || filepath.Base(path) == hashing.DescriptionFile {
		return reconcile.ArtifactLibrary, true
	}
	return "", false
}

// Watcher owns the fsnotify instance for one project.
type Watcher struct {
	rules  Rules
	bus    *events.Bus
	logger *slog.Logger

	fsw   *fsnotify.Watcher
	armed bool
}

func New(rules Rules, bus *events.Bus, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	return &Watcher{rules: rules, bus: bus, logger: logger, fsw: fsw}, nil
}

// Start adds the initial watch set. The lockfile's directory is always
// watched so its creation is seen; the library tree is only armed once a
// lockfile exists, since without one there is no state to reconcile
// against.
func (w *Watcher) Start() error {
	lockfileDir := filepath.Dir(w.rules.LockfilePath)
	if err := w.fsw.Add(lockfileDir); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to watch lockfile directory").
			WithContext("path", lockfileDir).
			Build()
	}

	if _, err := os.Stat(w.rules.LockfilePath); err == nil {
		w.armLibrary()
	} else {
		w.logger.Info("lockfile absent, library monitoring not armed",
			logfields.Path(w.rules.LockfilePath))
	}
	return nil
}

// Armed reports whether the library tree is being watched.
func (w *Watcher) Armed() bool {
	return w.armed
}

// Rules returns the watcher's path rules so other components can apply
// the same relevance filter.
func (w *Watcher) Rules() Rules {
	return w.rules
}

// armLibrary registers the library tree recursively. fsnotify watches a
// single directory level, so every subdirectory gets its own watch and
// new directories are added as their create events arrive.
func (w *Watcher) armLibrary() {
	if w.armed {
		return
	}
	err := filepath.WalkDir(w.rules.LibraryDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		if _, ok := w.rules.Classify(path, true); !ok {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
	if err != nil && !os.IsNotExist(err) {
		w.logger.Warn("failed to arm library monitoring",
			logfields.Path(w.rules.LibraryDir),
			logfields.Error(err))
		return
	}
	w.armed = true
	w.logger.Info("library monitoring armed", logfields.Path(w.rules.LibraryDir))
}

// Run pumps fsnotify events onto the bus until the context is canceled.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	isDir := false
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			isDir = true
		}
	}

	if _, ok := w.rules.Classify(event.Name, isDir); !ok {
		return
	}

	// Lockfile creation is the arming signal for the library tree.
	if event.Op.Has(fsnotify.Create) {
		if filepath.Clean(event.Name) == filepath.Clean(w.rules.LockfilePath) {
			w.armLibrary()
		} else if isDir && w.armed {
			if err := w.fsw.Add(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory",
					logfields.Path(event.Name),
					logfields.Error(err))
			}
		}
	}

	w.publish(ctx, event.Name, event.Op.String())
}

// NotifySaved injects an explicit editor file-save into the event stream.
// The path passes through the same relevance filter as fsnotify events.
func (w *Watcher) NotifySaved(ctx context.Context, path string) bool {
	if _, ok := w.rules.Classify(path, false); !ok {
		return false
	}
	w.publish(ctx, path, "SAVE")
	return true
}

func (w *Watcher) publish(ctx context.Context, path, op string) {
	evt := events.FileChanged{Path: path, Op: op, DetectedAt: time.Now()}
	if err := w.bus.Publish(ctx, evt); err != nil {
		w.logger.Warn("failed to publish file change",
			logfields.Path(path),
			logfields.Error(err))
	}
}

// Close releases the fsnotify instance.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
