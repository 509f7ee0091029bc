// Package reconcile implements the dependency-state reconciliation core:
// a three-tier hash-state model per tracked artifact, a coalescing
// auto-snapshot scheduler, and the pending-action decision logic that
// consumes them.
//
// Hash states serve two purposes:
//
//  1. To ascertain whether an artifact has undergone a meaningful change,
//     for instance if the library state is different after an operation.
//  2. To track the last-resolved state of an artifact, as an aid for
//     discovering what actions are appropriate on it.
//
// As an example, take the lockfile hash:
//
//	computed != observed
//	   The client's view reflects a different lockfile state. Refresh the
//	   client view.
//	observed != resolved
//	   The lockfile content has changed since the last snapshot or restore.
//	   The user should perform a restore.
//	computed == resolved
//	   The lockfile content is up to date and no action is needed.
package reconcile

import "git.home.luguber.info/inful/packwatch/internal/interp"

// Artifact identifies one of the two tracked filesystem entities.
type Artifact string

const (
	ArtifactLockfile Artifact = "lockfile"
	ArtifactLibrary  Artifact = "library"
)

// Tier identifies a hash state for an artifact. Resolved and observed are
// persisted; the computed tier is derived on demand and never stored.
type Tier string

const (
	TierResolved Tier = "resolved" // state last known to be consistent (stored)
	TierObserved Tier = "observed" // state last viewed by the client (stored)
	TierComputed Tier = "computed" // current on-disk state (not stored)
)

// Action names a long-running external manager operation.
type Action string

const (
	ActionNone     Action = ""
	ActionSnapshot Action = interp.ActionSnapshot
	ActionRestore  Action = interp.ActionRestore
	ActionClean    Action = interp.ActionClean
	ActionUnknown  Action = "unknown"
)

// ParseAction maps an action name from an external notification to an
// Action. Unrecognized names map to ActionUnknown.
func ParseAction(name string) Action {
	switch name {
	case interp.ActionSnapshot:
		return ActionSnapshot
	case interp.ActionRestore:
		return ActionRestore
	case interp.ActionClean:
		return ActionClean
	default:
		return ActionUnknown
	}
}

// storageKey returns the persistent-store key for a stored tier,
// e.g. "lockfileObserved".
func storageKey(artifact Artifact, tier Tier) string {
	key := string(artifact)
	if tier == TierObserved {
		return key + "Observed"
	}
	return key + "Resolved"
}
