package actions

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Typed parameter structs for the built-in kinds. The free-form param
// maps are decoded with mapstructure; unknown keys pass through
// untouched (kinds like change-form-step forward everything to their
// delegate) and missing keys leave zero values, which the handlers
// treat as a silent no-op where the parameter is required.

// RowParams covers save-row and duplicate-row.
type RowParams struct {
	ProviderID string         `mapstructure:"providerId"`
	TableID    string         `mapstructure:"tableId"`
	Fields     map[string]any `mapstructure:"fields"`
}

// DeleteRowParams covers delete-row. All three are required.
type DeleteRowParams struct {
	TableID string `mapstructure:"tableId"`
	RowID   string `mapstructure:"rowId"`
	RevID   string `mapstructure:"revId"`
}

// NavigateParams covers navigate-to.
type NavigateParams struct {
	URL  string `mapstructure:"url"`
	Peek bool   `mapstructure:"peek"`
}

// QueryParams covers execute-query.
type QueryParams struct {
	DatasourceID string         `mapstructure:"datasourceId"`
	QueryID      string         `mapstructure:"queryId"`
	QueryParams  map[string]any `mapstructure:"queryParams"`
}

// AutomationParams covers trigger-automation.
type AutomationParams struct {
	AutomationID string         `mapstructure:"automationId"`
	Fields       map[string]any `mapstructure:"fields"`
}

// ComponentParams covers the delegate-backed kinds.
type ComponentParams struct {
	ComponentID string `mapstructure:"componentId"`
}

// LogOutParams covers log-out.
type LogOutParams struct {
	RedirectURL string `mapstructure:"redirectUrl"`
}

// UpdateStateParams covers update-state.
type UpdateStateParams struct {
	Type    string `mapstructure:"type"` // "set" or "delete"
	Key     string `mapstructure:"key"`
	Value   any    `mapstructure:"value"`
	Persist bool   `mapstructure:"persist"`
}

// decodeParams fills out from a free-form param map. WeaklyTypedInput
// tolerates enrichment producing strings where the author typed
// booleans and vice versa.
func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build param decoder: %w", err)
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}

// deepSet writes value into m at a dot-separated path, creating
// intermediate maps as needed. "address.city" => m["address"]["city"].
func deepSet(m map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}
