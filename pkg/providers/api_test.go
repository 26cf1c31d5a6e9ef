package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestAPIClientRoundTrips exercises the four persistence endpoints
// against a fake platform API.
func TestAPIClientRoundTrips(t *testing.T) {
	var deleted, triggered string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/rows", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		payload["_id"] = "row-1"
		payload["_rev"] = "1"
		json.NewEncoder(w).Encode(payload)
	})
	mux.HandleFunc("DELETE /api/tables/t1/rows/r1", func(w http.ResponseWriter, r *http.Request) {
		deleted = r.URL.Query().Get("revId")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/datasources/ds/queries/q/run", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"rows": []any{"x"}})
	})
	mux.HandleFunc("POST /api/automations/auto1/trigger", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		triggered = "auto1"
		w.WriteHeader(http.StatusAccepted)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := NewAPIClient(srv.URL, "tok")
	ctx := context.Background()

	row, err := c.SaveRow(ctx, map[string]any{"name": "Ada", "tableId": "t1"})
	if err != nil {
		t.Fatalf("SaveRow: %v", err)
	}
	if row["_id"] != "row-1" || row["name"] != "Ada" {
		t.Errorf("row = %#v", row)
	}

	if err := c.DeleteRow(ctx, "t1", "r1", "rev7"); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	if deleted != "rev7" {
		t.Errorf("revId = %q", deleted)
	}

	result, err := c.ExecuteQuery(ctx, "ds", "q", map[string]any{"limit": 1})
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if rows := result.(map[string]any)["rows"].([]any); len(rows) != 1 {
		t.Errorf("result = %#v", result)
	}

	if err := c.TriggerAutomation(ctx, "auto1", map[string]any{"k": "v"}); err != nil {
		t.Fatalf("TriggerAutomation: %v", err)
	}
	if triggered != "auto1" {
		t.Error("automation not triggered")
	}
}

// TestAPIClientErrorStatus verifies non-2xx responses surface as
// errors carrying the status code.
func TestAPIClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "table locked", http.StatusConflict)
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, "")
	if _, err := c.SaveRow(context.Background(), map[string]any{}); err == nil {
		t.Error("expected error for 409 response")
	}
}

// TestQueueConfirmerOrder verifies FIFO settlement order.
func TestQueueConfirmerOrder(t *testing.T) {
	q := &QueueConfirmer{}
	q.ShowConfirmation(ConfirmationRequest{Kind: "first"})
	q.ShowConfirmation(ConfirmationRequest{Kind: "second"})

	req, ok := q.Take()
	if !ok || req.Kind != "first" {
		t.Errorf("first take = %#v, %v", req, ok)
	}
	if q.Len() != 1 {
		t.Errorf("len = %d", q.Len())
	}
}
