// Package interp bridges to the external dependency manager. The manager is
// an opaque tool invoked out of process; packwatch never parses lockfile
// syntax or computes dependency graphs itself. The narrow Runner interface
// lets the reconciliation core be tested with scripted results, decoupled
// from the real tool's startup cost.
package interp

import "context"

// Action names understood by the dependency manager.
const (
	ActionSnapshot = "snapshot"
	ActionRestore  = "restore"
	ActionClean    = "clean"
)

// Action is an opaque action descriptor returned by the manager's
// pending-actions query. Contents are passed through to the client verbatim.
type Action map[string]any

// Options mirrors the manager's per-project option set.
type Options struct {
	AutoSnapshot bool `json:"auto_snapshot"`
	VcsIgnoreLib bool `json:"vcs_ignore_lib"`
	VcsIgnoreSrc bool `json:"vcs_ignore_src"`
}

// DefaultOptions returns the option values assumed when the project is not
// under management or the tool cannot be queried.
func DefaultOptions() Options {
	return Options{AutoSnapshot: true, VcsIgnoreLib: true, VcsIgnoreSrc: false}
}

// Runner is the contract with the external dependency manager.
type Runner interface {
	// Available reports whether the manager package is installed at the
	// required version.
	Available(ctx context.Context) bool

	// BuildToolsAvailable reports whether a compiler toolchain is present
	// for installing packages from source.
	BuildToolsAvailable(ctx context.Context) bool

	// IsPackified reports whether the project has been placed under
	// dependency management.
	IsPackified(ctx context.Context, project string) (bool, error)

	// IsModeOn reports whether management mode is active for the project.
	IsModeOn(ctx context.Context, project string) (bool, error)

	// PendingActions returns the operations the manager would perform right
	// now if the named action were executed for the project.
	PendingActions(ctx context.Context, action, project string) ([]Action, error)

	// RunCapture performs one full snapshot of the project's library state,
	// blocking until the out-of-process capture exits.
	RunCapture(ctx context.Context, project string) error

	// Bootstrap places the project under dependency management.
	Bootstrap(ctx context.Context, project string, enter bool) error

	// InstallManager installs the embedded copy of the manager package.
	InstallManager(ctx context.Context) error

	// ProjectOptions returns the manager's per-project options.
	ProjectOptions(ctx context.Context, project string) (Options, error)
}
