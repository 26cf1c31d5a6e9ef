// Package actions provides the handler and delegate registries, the
// per-action execution context, and the built-in handlers for the
// thirteen platform action kinds.
package actions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/weftworks/weft/pkg/schema"
)

// Handler implements one action kind's effect. act carries the
// enriched parameters; env is the total context snapshot for this
// invocation. Errors are caught at the chain level and halt the chain.
type Handler func(ctx context.Context, act schema.Action, env map[string]any) (Outcome, error)

// Registry maps action kinds to their handlers. Safe for concurrent
// reads; Register is meant for startup and component mount time.
type Registry struct {
	mu       sync.RWMutex
	handlers map[schema.Kind]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[schema.Kind]Handler)}
}

// Register adds a handler. Duplicate kinds are rejected to surface
// misconfiguration early.
func (r *Registry) Register(kind schema.Kind, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[kind]; exists {
		return fmt.Errorf("action registry: duplicate kind %q", kind)
	}
	r.handlers[kind] = h
	return nil
}

// Get returns the handler for kind. A miss is not an error: the chain
// executor skips unregistered kinds.
func (r *Registry) Get(kind schema.Kind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []schema.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schema.Kind, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
