package chain

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/weftworks/weft/pkg/actions"
	"github.com/weftworks/weft/pkg/bindings"
	"github.com/weftworks/weft/pkg/providers"
	"github.com/weftworks/weft/pkg/schema"
	"github.com/weftworks/weft/pkg/statestore"
)

// builtinChain wires the built-in handlers against in-memory
// capabilities, the way live mode does.
func builtinChain(confirmer providers.Confirmer) (*Compiler, actions.Capabilities, *statestore.Memory) {
	store := statestore.NewMemory()
	caps := actions.Capabilities{
		Persistence: providers.NewMemoryPersistence(),
		Router:      providers.NewMemoryRouter("https://app.example.com"),
		Auth:        &providers.MemoryAuth{},
		State:       store,
		Messenger:   &providers.RecordingMessenger{},
		Env:         providers.StaticEnvironment{},
		Delegates:   actions.NewDelegates(),
	}
	c := New(Config{
		Registry:  actions.Builtins(caps),
		Enrich:    bindings.Enrich,
		Condition: bindings.EvalCondition,
		Confirmer: confirmer,
		Env:       caps.Env,
		Logger:    zerolog.Nop(),
	})
	return c, caps, store
}

// TestScenarioSaveThenDelete runs the save-row → delete-row chain:
// the saved row lands in the result sequence for later bindings, and
// delete-row runs strictly after save-row resolved.
func TestScenarioSaveThenDelete(t *testing.T) {
	c, caps, _ := builtinChain(nil)
	mem := caps.Persistence.(*providers.MemoryPersistence)
	mem.Seed("t1", "r1", map[string]any{"_id": "r1", "_rev": "rev1", "name": "Ada"})

	list := []schema.Action{
		{Kind: "save-row", Params: map[string]any{
			"providerId": "form1",
			"tableId":    "people",
		}},
		{Kind: "delete-row", Params: map[string]any{
			"tableId": "t1", "rowId": "r1", "revId": "rev1",
		}},
	}
	base := map[string]any{"form1": map[string]any{"name": "Grace"}}

	res := c.Compile(list, base).Run(context.Background())
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, err = %v", res.Status, res.Err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("results = %v", res.Results)
	}

	saved := res.Results[0].(map[string]any)["row"].(map[string]any)
	if saved["name"] != "Grace" {
		t.Errorf("saved row = %#v", saved)
	}
	if len(mem.Tables["t1"]) != 0 {
		t.Error("delete-row did not run after save-row")
	}
}

// TestScenarioUpdateState runs a single update-state action outside
// preview mode: the entry is set and no cross-frame message goes out.
func TestScenarioUpdateState(t *testing.T) {
	c, caps, store := builtinChain(nil)

	list := []schema.Action{
		{Kind: "update-state", Params: map[string]any{"type": "set", "key": "x", "value": 5}},
	}
	res := c.Compile(list, map[string]any{}).Run(context.Background())
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, err = %v", res.Status, res.Err)
	}

	v, err := store.Value("x")
	if err != nil {
		t.Fatalf("state x: %v", err)
	}
	if v != 5 {
		t.Errorf("state x = %#v, want 5", v)
	}
	if posted := caps.Messenger.(*providers.RecordingMessenger).Posted(); len(posted) != 0 {
		t.Errorf("cross-frame messages posted outside embedded mode: %#v", posted)
	}
}

// TestScenarioDeleteRowDefaultConfirmText verifies the confirmation
// surface receives the documented default text for delete-row.
func TestScenarioDeleteRowDefaultConfirmText(t *testing.T) {
	q := &providers.QueueConfirmer{}
	c, caps, _ := builtinChain(q)
	mem := caps.Persistence.(*providers.MemoryPersistence)
	mem.Seed("t1", "r1", map[string]any{"_id": "r1"})

	list := []schema.Action{
		{Kind: "delete-row", Params: map[string]any{
			"tableId": "t1", "rowId": "r1", "revId": "rev1", "confirm": true,
		}},
	}
	res := c.Compile(list, map[string]any{}).Run(context.Background())
	if res.Status != StatusSuspended {
		t.Fatalf("status = %s", res.Status)
	}

	req, ok := q.Take()
	if !ok {
		t.Fatal("no confirmation request queued")
	}
	if req.Text != "Are you sure you want to delete this row?" {
		t.Errorf("confirm text = %q", req.Text)
	}
	if len(mem.Tables["t1"]) != 1 {
		t.Error("delete ran before approval")
	}

	if err := req.OnApprove(context.Background()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if len(mem.Tables["t1"]) != 0 {
		t.Error("delete did not run after approval")
	}
}

// TestScenarioAutoConfirm verifies a terminal-style confirmer that
// settles synchronously reports the chain's final state from Run.
func TestScenarioAutoConfirm(t *testing.T) {
	c, caps, store := builtinChain(providers.AutoConfirmer{Approve: true})
	_ = caps

	list := []schema.Action{
		{Kind: "update-state", Params: map[string]any{"type": "set", "key": "a", "value": "1"}},
		{Kind: "update-state", Params: map[string]any{"type": "set", "key": "b", "value": "2", "confirm": true}},
		{Kind: "update-state", Params: map[string]any{"type": "set", "key": "c", "value": "3"}},
	}
	res := c.Compile(list, map[string]any{}).Run(context.Background())
	if res.Status != StatusCompleted {
		t.Fatalf("status = %s, err = %v", res.Status, res.Err)
	}
	if res.Settled != 3 {
		t.Errorf("settled = %d, want 3", res.Settled)
	}
	for _, k := range []string{"a", "b", "c"} {
		if _, err := store.Value(k); err != nil {
			t.Errorf("state %q missing: %v", k, err)
		}
	}
}
