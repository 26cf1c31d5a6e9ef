// Package statestore provides the process-wide keyed state consumed by
// the update-state action: an in-memory store for tests and single
// processes, and a Redis-backed store for deployments where state
// outlives the process.
package statestore

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("state key not found")

// Memory is an in-memory StateStore. It records the persist flag per
// entry so tests can assert on it; persistence itself is a no-op here.
type Memory struct {
	mu      sync.RWMutex
	values  map[string]any
	persist map[string]bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values:  make(map[string]any),
		persist: make(map[string]bool),
	}
}

func (m *Memory) SetValue(ctx context.Context, key string, value any, persist bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.persist[key] = persist
	return nil
}

func (m *Memory) DeleteValue(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	delete(m.persist, key)
	return nil
}

// Value returns the stored value for key.
func (m *Memory) Value(key string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Persisted reports whether key was set with the persist flag.
func (m *Memory) Persisted(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.persist[key]
}

// Keys returns all stored keys.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.values))
	for k := range m.values {
		out = append(out, k)
	}
	return out
}
