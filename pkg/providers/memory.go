package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryPersistence is an in-memory Persistence used for tests and
// dry-run mode. Rows are stored per table keyed by their "_id" field;
// saving assigns identity and revision fields when absent.
type MemoryPersistence struct {
	mu     sync.Mutex
	nextID int
	Tables map[string]map[string]map[string]any

	// Queries maps "datasourceId/queryId" to a canned result.
	Queries map[string]any

	// Automations records every TriggerAutomation invocation.
	Automations []AutomationCall
}

// AutomationCall records one automation trigger.
type AutomationCall struct {
	AutomationID string
	Fields       map[string]any
}

// NewMemoryPersistence creates an empty in-memory persistence.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		Tables:  make(map[string]map[string]map[string]any),
		Queries: make(map[string]any),
	}
}

// Seed inserts a row directly, bypassing identity assignment.
func (m *MemoryPersistence) Seed(tableID, rowID string, row map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Tables[tableID] == nil {
		m.Tables[tableID] = make(map[string]map[string]any)
	}
	m.Tables[tableID][rowID] = row
}

func (m *MemoryPersistence) SaveRow(ctx context.Context, payload map[string]any) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tableID, _ := payload["tableId"].(string)
	row := make(map[string]any, len(payload))
	for k, v := range payload {
		row[k] = v
	}

	id, _ := row["_id"].(string)
	if id == "" {
		m.nextID++
		id = fmt.Sprintf("row-%d", m.nextID)
		row["_id"] = id
		row["_rev"] = "1"
	} else {
		rev, _ := row["_rev"].(string)
		row["_rev"] = bumpRev(rev)
	}

	if m.Tables[tableID] == nil {
		m.Tables[tableID] = make(map[string]map[string]any)
	}
	m.Tables[tableID][id] = row
	return row, nil
}

func (m *MemoryPersistence) DeleteRow(ctx context.Context, tableID, rowID, revID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.Tables[tableID]
	if !ok {
		return fmt.Errorf("table %q not found", tableID)
	}
	if _, ok := table[rowID]; !ok {
		return fmt.Errorf("row %q not found in table %q", rowID, tableID)
	}
	delete(table, rowID)
	return nil
}

func (m *MemoryPersistence) ExecuteQuery(ctx context.Context, datasourceID, queryID string, params map[string]any) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := datasourceID + "/" + queryID
	result, ok := m.Queries[key]
	if !ok {
		return nil, fmt.Errorf("query %q not found", key)
	}
	return result, nil
}

func (m *MemoryPersistence) TriggerAutomation(ctx context.Context, automationID string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Automations = append(m.Automations, AutomationCall{AutomationID: automationID, Fields: fields})
	return nil
}

func bumpRev(rev string) string {
	var n int
	fmt.Sscanf(rev, "%d", &n)
	return fmt.Sprintf("%d", n+1)
}

// NavEntry records one navigation performed through MemoryRouter.
type NavEntry struct {
	URL  string
	Peek bool
	Page bool // whole-page navigation
}

// MemoryRouter is a recording Router for tests and dry-run.
type MemoryRouter struct {
	mu      sync.Mutex
	Base    string
	Params  map[string]string
	History []NavEntry
	Reloads int
}

// NewMemoryRouter creates a router resolving FullURL against base.
func NewMemoryRouter(base string) *MemoryRouter {
	return &MemoryRouter{Base: strings.TrimSuffix(base, "/"), Params: make(map[string]string)}
}

func (r *MemoryRouter) Navigate(url string, peek bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.History = append(r.History, NavEntry{URL: url, Peek: peek})
}

func (r *MemoryRouter) NavigatePage(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.History = append(r.History, NavEntry{URL: url, Page: true})
}

func (r *MemoryRouter) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reloads++
}

func (r *MemoryRouter) FullURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return r.Base + path
}

func (r *MemoryRouter) QueryParams() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.Params))
	for k, v := range r.Params {
		out[k] = v
	}
	return out
}

// Last returns the most recent navigation, or a zero entry.
func (r *MemoryRouter) Last() NavEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.History) == 0 {
		return NavEntry{}
	}
	return r.History[len(r.History)-1]
}

// MemoryAuth is a recording Auth stub.
type MemoryAuth struct {
	mu      sync.Mutex
	LogOuts int
	Err     error
}

func (a *MemoryAuth) LogOut(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return a.Err
	}
	a.LogOuts++
	return nil
}

// StaticEnvironment is an Environment with fixed flags.
type StaticEnvironment struct {
	Builder bool
	Embed   bool
}

func (e StaticEnvironment) BuilderMode() bool { return e.Builder }
func (e StaticEnvironment) Embedded() bool    { return e.Embed }

// RecordingMessenger captures posted host messages.
type RecordingMessenger struct {
	mu       sync.Mutex
	Messages []HostMessage
}

func (m *RecordingMessenger) PostMessage(msg HostMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, msg)
}

// Posted returns a copy of the captured messages.
func (m *RecordingMessenger) Posted() []HostMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HostMessage, len(m.Messages))
	copy(out, m.Messages)
	return out
}

// NopMessenger drops all messages. Used outside embedded mode.
type NopMessenger struct{}

func (NopMessenger) PostMessage(HostMessage) {}
