// Package providers defines the capability interfaces the action-chain
// engine consumes, plus reference implementations: in-memory fakes for
// tests and dry-run, an HTTP client for the platform data API, and
// terminal confirmation surfaces.
package providers

import (
	"context"
)

// Persistence abstracts the platform data API: row persistence, query
// execution and automation triggering.
// Implementations: APIClient, MemoryPersistence.
type Persistence interface {
	// SaveRow persists a row payload and returns the stored row
	// (including any server-assigned identity and revision fields).
	SaveRow(ctx context.Context, payload map[string]any) (map[string]any, error)

	// DeleteRow removes the identified record.
	DeleteRow(ctx context.Context, tableID, rowID, revID string) error

	// ExecuteQuery runs a named query against a datasource.
	ExecuteQuery(ctx context.Context, datasourceID, queryID string, params map[string]any) (any, error)

	// TriggerAutomation invokes a named automation with a field payload.
	TriggerAutomation(ctx context.Context, automationID string, fields map[string]any) error
}

// Router abstracts the host application's routing capability.
// Implementations: MemoryRouter.
type Router interface {
	// Navigate changes the active in-app route. peek opens the target
	// in an overlay instead of replacing the current screen.
	Navigate(url string, peek bool)

	// NavigatePage replaces the whole page location, leaving the app.
	NavigatePage(url string)

	// Reload reloads the current page.
	Reload()

	// FullURL resolves an app-relative path to an absolute URL.
	FullURL(path string) string

	// QueryParams returns the current route's query parameters.
	QueryParams() map[string]string
}

// Auth abstracts the host session capability.
type Auth interface {
	// LogOut clears the current auth session.
	LogOut(ctx context.Context) error
}

// Environment reports the execution mode of the surrounding runtime.
// Chains never execute in builder mode; embedded mode additionally
// mirrors state updates to the embedding parent frame.
type Environment interface {
	BuilderMode() bool
	Embedded() bool
}

// StateStore is the process-wide keyed state consumed by the
// update-state action. persist marks the entry for durable storage;
// non-persistent entries live only for the session.
// Implementations: statestore.Memory, statestore.Redis.
type StateStore interface {
	SetValue(ctx context.Context, key string, value any, persist bool) error
	DeleteValue(ctx context.Context, key string) error
}

// ConfirmationRequest carries everything a confirmation surface needs
// to present a gate and settle it later. At most one of OnApprove or
// OnDismiss is eventually called; the surface may also call neither —
// the suspension is unbounded and a never-settled gate simply stops
// the chain forever.
type ConfirmationRequest struct {
	// Kind is the gated action's kind identifier, for display.
	Kind string

	// Text is the resolved confirmation text. May be empty.
	Text string

	// OnApprove runs the gated handler and the remaining chain.
	OnApprove func(ctx context.Context) error

	// OnDismiss permanently stops the chain.
	OnDismiss func() error
}

// Confirmer is the confirmation surface. ShowConfirmation MUST return
// immediately; approval or dismissal is delivered later through the
// request's callbacks.
type Confirmer interface {
	ShowConfirmation(req ConfirmationRequest)
}

// HostMessage is a structured cross-frame message posted to the
// embedding parent window. Only relevant in embedded/peek mode.
type HostMessage struct {
	Type   string         `json:"type"`
	Detail map[string]any `json:"detail,omitempty"`
}

// Messenger posts host messages to the embedding parent window.
// Implementations outside an embedded context may drop messages.
type Messenger interface {
	PostMessage(msg HostMessage)
}
