package actions

import (
	"context"
	"testing"

	"github.com/weftworks/weft/pkg/providers"
	"github.com/weftworks/weft/pkg/schema"
)

func testCaps() (Capabilities, *providers.MemoryPersistence, *providers.MemoryRouter, *providers.RecordingMessenger) {
	persist := providers.NewMemoryPersistence()
	router := providers.NewMemoryRouter("https://app.example.com")
	messenger := &providers.RecordingMessenger{}
	caps := Capabilities{
		Persistence: persist,
		Router:      router,
		Auth:        &providers.MemoryAuth{},
		Messenger:   messenger,
		Env:         providers.StaticEnvironment{},
		Delegates:   NewDelegates(),
	}
	return caps, persist, router, messenger
}

// TestSaveRowBuildsPayload verifies save-row merges the provider's row
// from context with deep-set field overrides and the target table.
func TestSaveRowBuildsPayload(t *testing.T) {
	caps, persist, _, _ := testCaps()
	env := map[string]any{
		"form1": map[string]any{"name": "Ada", "address": map[string]any{"city": "London"}},
	}
	act := schema.Action{Kind: "save-row", Params: map[string]any{
		"providerId": "form1",
		"tableId":    "people",
		"fields":     map[string]any{"address.city": "Paris", "role": "engineer"},
	}}

	out, err := caps.saveRow(context.Background(), act, env)
	if err != nil {
		t.Fatalf("saveRow: %v", err)
	}
	row := out.Value().(map[string]any)["row"].(map[string]any)
	if row["name"] != "Ada" || row["role"] != "engineer" {
		t.Errorf("row = %#v", row)
	}
	if addr := row["address"].(map[string]any); addr["city"] != "Paris" {
		t.Errorf("deep-set override missing: %#v", addr)
	}
	if len(persist.Tables["people"]) != 1 {
		t.Errorf("expected 1 persisted row, got %d", len(persist.Tables["people"]))
	}
}

// TestDuplicateRowStripsIdentity verifies duplicate-row removes _id and
// _rev so a new record is created, and no-ops without a providerId.
func TestDuplicateRowStripsIdentity(t *testing.T) {
	caps, persist, _, _ := testCaps()
	env := map[string]any{
		"grid1": map[string]any{"_id": "row-9", "_rev": "4", "name": "Ada"},
	}

	out, err := caps.duplicateRow(context.Background(), schema.Action{
		Kind:   "duplicate-row",
		Params: map[string]any{"providerId": "grid1", "tableId": "people"},
	}, env)
	if err != nil {
		t.Fatalf("duplicateRow: %v", err)
	}
	row := out.Value().(map[string]any)["row"].(map[string]any)
	if row["_id"] == "row-9" {
		t.Error("duplicate kept the original identity")
	}
	if row["name"] != "Ada" {
		t.Errorf("row = %#v", row)
	}
	if len(persist.Tables["people"]) != 1 {
		t.Fatalf("expected 1 new row, got %d", len(persist.Tables["people"]))
	}

	// No providerId: nothing to duplicate.
	out, err = caps.duplicateRow(context.Background(), schema.Action{
		Kind: "duplicate-row", Params: map[string]any{"tableId": "people"},
	}, env)
	if err != nil {
		t.Fatalf("duplicateRow without provider: %v", err)
	}
	if out.Value() != nil {
		t.Errorf("expected nil result, got %#v", out.Value())
	}
	if len(persist.Tables["people"]) != 1 {
		t.Error("duplicate without providerId persisted a row")
	}
}

// TestDeleteRowRequiresAllIDs verifies missing identifiers make
// delete-row a silent no-op.
func TestDeleteRowRequiresAllIDs(t *testing.T) {
	caps, persist, _, _ := testCaps()
	persist.Seed("t1", "r1", map[string]any{"_id": "r1", "_rev": "rev1"})

	// Missing revId: no-op, no error.
	if _, err := caps.deleteRow(context.Background(), schema.Action{
		Kind: "delete-row", Params: map[string]any{"tableId": "t1", "rowId": "r1"},
	}, nil); err != nil {
		t.Fatalf("deleteRow missing revId: %v", err)
	}
	if len(persist.Tables["t1"]) != 1 {
		t.Fatal("no-op delete removed the row")
	}

	if _, err := caps.deleteRow(context.Background(), schema.Action{
		Kind: "delete-row", Params: map[string]any{"tableId": "t1", "rowId": "r1", "revId": "rev1"},
	}, nil); err != nil {
		t.Fatalf("deleteRow: %v", err)
	}
	if len(persist.Tables["t1"]) != 0 {
		t.Error("row not deleted")
	}
}

// TestLogOutDestinations verifies the internal/external destination
// split and the reload-only-if-internal rule.
func TestLogOutDestinations(t *testing.T) {
	caps, _, router, _ := testCaps()

	// External URL: whole-page navigation, no reload.
	if _, err := caps.logOut(context.Background(), schema.Action{
		Kind: "log-out", Params: map[string]any{"redirectUrl": "https://corp.example.com/goodbye"},
	}, nil); err != nil {
		t.Fatalf("logOut external: %v", err)
	}
	last := router.Last()
	if !last.Page || last.URL != "https://corp.example.com/goodbye" {
		t.Errorf("external nav = %#v", last)
	}
	if router.Reloads != 0 {
		t.Error("external destination triggered a reload")
	}

	// Empty redirect: internal default path plus reload.
	if _, err := caps.logOut(context.Background(), schema.Action{
		Kind: "log-out", Params: map[string]any{},
	}, nil); err != nil {
		t.Fatalf("logOut internal: %v", err)
	}
	last = router.Last()
	if last.URL != "https://app.example.com/" {
		t.Errorf("internal nav = %q", last.URL)
	}
	if router.Reloads != 1 {
		t.Errorf("reloads = %d, want 1", router.Reloads)
	}
}

// TestUpdateStateOutsideEmbedded verifies set/delete reach the state
// store and no cross-frame message is posted outside embedded mode.
func TestUpdateStateOutsideEmbedded(t *testing.T) {
	caps, _, _, messenger := testCaps()
	store := newRecordingStore()
	caps.State = store

	if _, err := caps.updateState(context.Background(), schema.Action{
		Kind: "update-state", Params: map[string]any{"type": "set", "key": "x", "value": 5},
	}, nil); err != nil {
		t.Fatalf("updateState set: %v", err)
	}
	if store.values["x"] != 5 {
		t.Errorf("state x = %#v, want 5", store.values["x"])
	}
	if len(messenger.Posted()) != 0 {
		t.Error("message posted outside embedded mode")
	}

	if _, err := caps.updateState(context.Background(), schema.Action{
		Kind: "update-state", Params: map[string]any{"type": "delete", "key": "x"},
	}, nil); err != nil {
		t.Fatalf("updateState delete: %v", err)
	}
	if _, ok := store.values["x"]; ok {
		t.Error("state x survived delete")
	}
}

// TestUpdateStateEmbeddedMirrors verifies embedded mode posts the
// state update across the frame boundary.
func TestUpdateStateEmbeddedMirrors(t *testing.T) {
	caps, _, _, messenger := testCaps()
	caps.State = newRecordingStore()
	caps.Env = providers.StaticEnvironment{Embed: true}

	if _, err := caps.updateState(context.Background(), schema.Action{
		Kind:   "update-state",
		Params: map[string]any{"type": "set", "key": "theme", "value": "dark", "persist": true},
	}, nil); err != nil {
		t.Fatalf("updateState: %v", err)
	}

	posted := messenger.Posted()
	if len(posted) != 1 {
		t.Fatalf("posted %d messages, want 1", len(posted))
	}
	msg := posted[0]
	if msg.Type != "update-state" {
		t.Errorf("message type = %q", msg.Type)
	}
	if msg.Detail["key"] != "theme" || msg.Detail["value"] != "dark" || msg.Detail["persist"] != true {
		t.Errorf("detail = %#v", msg.Detail)
	}
}

// TestCloseScreenModalMessage verifies the cross-frame close message.
func TestCloseScreenModalMessage(t *testing.T) {
	caps, _, _, messenger := testCaps()
	if _, err := caps.closeScreenModal(context.Background(), schema.Action{Kind: "close-screen-modal"}, nil); err != nil {
		t.Fatalf("closeScreenModal: %v", err)
	}
	posted := messenger.Posted()
	if len(posted) != 1 || posted[0].Type != "close-screen-modal" {
		t.Errorf("posted = %#v", posted)
	}
}

// TestDelegateHandlerMissIsNoop verifies a missing delegate runs as a
// no-op whose nil result would still be appended by the chain.
func TestDelegateHandlerMissIsNoop(t *testing.T) {
	caps, _, _, _ := testCaps()
	h := caps.delegateHandler(schema.KindValidateForm)

	out, err := h(context.Background(), schema.Action{
		Kind: "validate-form", Params: map[string]any{"componentId": "form9"},
	}, nil)
	if err != nil {
		t.Fatalf("delegate miss: %v", err)
	}
	if out.Aborted() || out.Value() != nil {
		t.Errorf("outcome = %#v", out)
	}

	// Registered delegate receives the full param map.
	var got map[string]any
	caps.Delegates.Register("form9", schema.KindValidateForm, func(ctx context.Context, params map[string]any) (any, error) {
		got = params
		return "valid", nil
	})
	out, err = h(context.Background(), schema.Action{
		Kind: "validate-form", Params: map[string]any{"componentId": "form9", "onlyCurrentStep": true},
	}, nil)
	if err != nil {
		t.Fatalf("delegate: %v", err)
	}
	if out.Value() != "valid" {
		t.Errorf("delegate result = %#v", out.Value())
	}
	if got["onlyCurrentStep"] != true {
		t.Errorf("delegate params = %#v", got)
	}
}

// recordingStore is a minimal StateStore for handler tests.
type recordingStore struct {
	values  map[string]any
	persist map[string]bool
}

func newRecordingStore() *recordingStore {
	return &recordingStore{values: make(map[string]any), persist: make(map[string]bool)}
}

func (s *recordingStore) SetValue(ctx context.Context, key string, value any, persist bool) error {
	s.values[key] = value
	s.persist[key] = persist
	return nil
}

func (s *recordingStore) DeleteValue(ctx context.Context, key string) error {
	delete(s.values, key)
	delete(s.persist, key)
	return nil
}
