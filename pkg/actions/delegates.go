package actions

import (
	"context"
	"sync"

	"github.com/weftworks/weft/pkg/schema"
)

// DelegateKey identifies a per-component capability: the component
// that registered it and the action kind it serves.
type DelegateKey struct {
	ComponentID string
	Kind        schema.Kind
}

// DelegateFunc is a capability registered by a live UI component
// (form validation, datasource refresh, form clearing, step changes).
// It receives the action's enriched parameters.
type DelegateFunc func(ctx context.Context, params map[string]any) (any, error)

// Delegates is the capability-registration map for component-targeted
// actions. Components register on mount and unregister on unmount; the
// handlers look delegates up by structured key. An absent delegate
// makes the action a silent no-op.
type Delegates struct {
	mu sync.RWMutex
	m  map[DelegateKey]DelegateFunc
}

// NewDelegates creates an empty delegate map.
func NewDelegates() *Delegates {
	return &Delegates{m: make(map[DelegateKey]DelegateFunc)}
}

// Register installs fn for the component/kind pair, replacing any
// previous registration (a remounted component re-registers).
func (d *Delegates) Register(componentID string, kind schema.Kind, fn DelegateFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.m[DelegateKey{ComponentID: componentID, Kind: kind}] = fn
}

// Unregister removes the component/kind registration.
func (d *Delegates) Unregister(componentID string, kind schema.Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.m, DelegateKey{ComponentID: componentID, Kind: kind})
}

// Get returns the delegate for the component/kind pair.
func (d *Delegates) Get(componentID string, kind schema.Kind) (DelegateFunc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn, ok := d.m[DelegateKey{ComponentID: componentID, Kind: kind}]
	return fn, ok
}

// Components returns the component IDs with at least one delegate
// registered for kind.
func (d *Delegates) Components(kind schema.Kind) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for k := range d.m {
		if k.Kind == kind {
			out = append(out, k.ComponentID)
		}
	}
	return out
}
