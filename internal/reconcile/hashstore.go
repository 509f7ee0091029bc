package reconcile

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/packwatch/internal/logfields"
	"git.home.luguber.info/inful/packwatch/internal/statestore"
)

// stateNamespace is the bucket under which all hash-state keys live.
const stateNamespace = "packrat"

// HashStore persists the resolved and observed hash tiers in a state
// store. Writes are suppressed when the stored value already matches,
// so repeated reconciliation of an unchanged artifact leaves the store
// untouched.
type HashStore struct {
	store  statestore.Store
	logger *slog.Logger
}

func NewHashStore(store statestore.Store, logger *slog.Logger) *HashStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HashStore{store: store, logger: logger}
}

// Get returns the stored hash for the given artifact and tier. A key
// that has never been written reads as the empty string, which by
// convention means "no information".
func (h *HashStore) Get(ctx context.Context, artifact Artifact, tier Tier) string {
	value, ok, err := h.store.Get(ctx, stateNamespace, storageKey(artifact, tier))
	if err != nil {
		h.logger.Warn("failed to read stored hash",
			logfields.Artifact(string(artifact)),
			logfields.Tier(string(tier)),
			logfields.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return value
}

// Put stores the hash for the given artifact and tier. The write is
// skipped when the stored value is already equal to hash.
func (h *HashStore) Put(ctx context.Context, artifact Artifact, tier Tier, hash string) {
	current := h.Get(ctx, artifact, tier)
	if current == hash {
		return
	}
	h.logger.Debug("updating stored hash",
		logfields.Artifact(string(artifact)),
		logfields.Tier(string(tier)),
		logfields.OldHash(current),
		logfields.NewHash(hash))
	if err := h.store.Put(ctx, stateNamespace, storageKey(artifact, tier), hash); err != nil {
		h.logger.Warn("failed to persist hash",
			logfields.Artifact(string(artifact)),
			logfields.Tier(string(tier)),
			logfields.Error(err))
	}
}
