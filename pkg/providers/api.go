package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// APIClient is a lightweight Persistence implementation against the
// platform data API. Endpoints:
//
//	POST   /api/rows                                   save a row
//	DELETE /api/tables/{table}/rows/{row}?revId=...    delete a row
//	POST   /api/datasources/{ds}/queries/{query}/run   execute a query
//	POST   /api/automations/{id}/trigger               trigger an automation
type APIClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewAPIClient creates a client with a 30s timeout.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SaveRow persists a row payload and returns the stored row.
func (c *APIClient) SaveRow(ctx context.Context, payload map[string]any) (map[string]any, error) {
	var row map[string]any
	if err := c.do(ctx, http.MethodPost, "/api/rows", payload, &row); err != nil {
		return nil, fmt.Errorf("save row: %w", err)
	}
	return row, nil
}

// DeleteRow removes the identified record.
func (c *APIClient) DeleteRow(ctx context.Context, tableID, rowID, revID string) error {
	path := fmt.Sprintf("/api/tables/%s/rows/%s?revId=%s",
		url.PathEscape(tableID), url.PathEscape(rowID), url.QueryEscape(revID))
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete row %s/%s: %w", tableID, rowID, err)
	}
	return nil
}

// ExecuteQuery runs a named query against a datasource.
func (c *APIClient) ExecuteQuery(ctx context.Context, datasourceID, queryID string, params map[string]any) (any, error) {
	path := fmt.Sprintf("/api/datasources/%s/queries/%s/run",
		url.PathEscape(datasourceID), url.PathEscape(queryID))
	var out any
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"parameters": params}, &out); err != nil {
		return nil, fmt.Errorf("execute query %s/%s: %w", datasourceID, queryID, err)
	}
	return out, nil
}

// TriggerAutomation invokes a named automation with a field payload.
func (c *APIClient) TriggerAutomation(ctx context.Context, automationID string, fields map[string]any) error {
	path := fmt.Sprintf("/api/automations/%s/trigger", url.PathEscape(automationID))
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"fields": fields}, nil); err != nil {
		return fmt.Errorf("trigger automation %s: %w", automationID, err)
	}
	return nil
}

// do performs one JSON request/response round trip. A nil out discards
// the response body.
func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
