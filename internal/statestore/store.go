// Package statestore provides small, project-scoped persistent key/value
// storage for client-session state that must survive daemon restarts.
package statestore

import "context"

// Store persists namespaced string values. A missing key is not an error;
// absence is a valid state meaning "never set".
type Store interface {
	// Get returns the stored value and whether it was present.
	Get(ctx context.Context, namespace, key string) (string, bool, error)

	// Put stores a value, replacing any previous one.
	Put(ctx context.Context, namespace, key, value string) error

	// Close releases any resources held by the store.
	Close() error
}
