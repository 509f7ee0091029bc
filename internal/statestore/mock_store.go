package statestore

import (
	"context"
	"sync"
)

// MockStore is an in-memory implementation of Store for testing.
type MockStore struct {
	mu     sync.RWMutex
	values map[string]string
	calls  MockCalls
}

// MockCalls tracks method invocations for test verification.
type MockCalls struct {
	Get int
	Put int
}

// NewMockStore creates a new in-memory state store.
func NewMockStore() *MockStore {
	return &MockStore{
		values: make(map[string]string),
	}
}

func mockKey(namespace, key string) string {
	return namespace + "\x00" + key
}

// Get returns the stored value for the namespace/key pair.
func (m *MockStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Get++

	value, ok := m.values[mockKey(namespace, key)]
	return value, ok, nil
}

// Put stores a value, replacing any previous one.
func (m *MockStore) Put(ctx context.Context, namespace, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++

	m.values[mockKey(namespace, key)] = value
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MockStore) Close() error { return nil }

// Calls returns a snapshot of recorded method invocations.
func (m *MockStore) Calls() MockCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}
