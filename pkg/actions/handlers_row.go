package actions

import (
	"context"

	"github.com/weftworks/weft/pkg/schema"
)

// buildRowPayload assembles the row to persist: the base context value
// at providerId (the provider's current row, if any), overlaid with
// the deep-set field overrides, plus the target table.
func buildRowPayload(p RowParams, env map[string]any) map[string]any {
	payload := make(map[string]any)
	if p.ProviderID != "" {
		if base, ok := env[p.ProviderID].(map[string]any); ok {
			for k, v := range base {
				payload[k] = v
			}
		}
	}
	for path, v := range p.Fields {
		deepSet(payload, path, v)
	}
	if p.TableID != "" {
		payload["tableId"] = p.TableID
	}
	return payload
}

func (c Capabilities) saveRow(ctx context.Context, act schema.Action, env map[string]any) (Outcome, error) {
	var p RowParams
	if err := decodeParams(act.Params, &p); err != nil {
		return Outcome{}, err
	}
	if c.Persistence == nil {
		return Continue(nil), nil
	}
	row, err := c.Persistence.SaveRow(ctx, buildRowPayload(p, env))
	if err != nil {
		return Outcome{}, err
	}
	return Continue(map[string]any{"row": row}), nil
}

func (c Capabilities) duplicateRow(ctx context.Context, act schema.Action, env map[string]any) (Outcome, error) {
	var p RowParams
	if err := decodeParams(act.Params, &p); err != nil {
		return Outcome{}, err
	}
	// Unlike save-row there is nothing to duplicate without a provider.
	if p.ProviderID == "" || c.Persistence == nil {
		return Continue(nil), nil
	}
	payload := buildRowPayload(p, env)

	// Strip identity and revision so persistence creates a new record.
	delete(payload, "_id")
	delete(payload, "_rev")

	row, err := c.Persistence.SaveRow(ctx, payload)
	if err != nil {
		return Outcome{}, err
	}
	return Continue(map[string]any{"row": row}), nil
}

func (c Capabilities) deleteRow(ctx context.Context, act schema.Action, env map[string]any) (Outcome, error) {
	var p DeleteRowParams
	if err := decodeParams(act.Params, &p); err != nil {
		return Outcome{}, err
	}
	if p.TableID == "" || p.RowID == "" || p.RevID == "" || c.Persistence == nil {
		return Continue(nil), nil
	}
	if err := c.Persistence.DeleteRow(ctx, p.TableID, p.RowID, p.RevID); err != nil {
		return Outcome{}, err
	}
	return Continue(nil), nil
}
