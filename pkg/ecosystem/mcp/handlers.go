package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/weftworks/weft/pkg/actions"
	"github.com/weftworks/weft/pkg/bindings"
	"github.com/weftworks/weft/pkg/chain"
	"github.com/weftworks/weft/pkg/providers"
	"github.com/weftworks/weft/pkg/schema"
	"github.com/weftworks/weft/pkg/statestore"
)

// HandleValidate implements the weft/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	app, errs := schema.ValidateFile(path)
	if hasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	warnings := 0
	var lines []string
	for _, e := range errs {
		if e.Severity == "warning" {
			warnings++
			lines = append(lines, fmt.Sprintf("  ⚠ [%s] %s: %s", e.Phase, e.Path, e.Message))
		}
	}

	summary := fmt.Sprintf("✓ %s is valid (%d screens, %d warnings)",
		app.Meta.Name, len(app.Screens), warnings)
	if warnings > 0 {
		summary += "\n" + strings.Join(lines, "\n")
	}
	return textResult(summary), nil
}

// HandleSchema implements the weft/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleKinds implements the weft/kinds MCP tool.
func HandleKinds(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b strings.Builder
	for _, k := range schema.BuiltinKinds {
		b.WriteString(string(k))
		if schema.IsDelegate(k) {
			b.WriteString("  (component delegate)")
		}
		b.WriteString("\n")
	}
	return textResult(b.String()), nil
}

// HandleTrigger implements the weft/trigger MCP tool. Chains run
// against in-memory providers with gates auto-approved, so an agent
// sees the full chain without touching real data.
func HandleTrigger(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	screen, _ := args["screen"].(string)
	component, _ := args["component"].(string)
	event, _ := args["event"].(string)
	if screen == "" || component == "" || event == "" {
		return errorResult("screen, component and event arguments are required"), nil
	}
	mode, _ := args["mode"].(string)
	if mode == "" {
		mode = "dry-run" // safe default for AI agents
	}
	if mode != "dry-run" {
		return errorResult(fmt.Sprintf("mode %q is not available over MCP — use the weft CLI or HTTP API for live runs", mode)), nil
	}

	app, errs := schema.ValidateFile(path)
	if hasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	acts, err := app.Chain(screen, component, event)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	// Dry-run stack: recording providers, auto-approved gates.
	mem := providers.NewMemoryPersistence()
	router := providers.NewMemoryRouter("https://app.local")
	c := chain.New(chain.Config{
		Registry: actions.Builtins(actions.Capabilities{
			Persistence: mem,
			Router:      router,
			Auth:        &providers.MemoryAuth{},
			State:       statestore.NewMemory(),
			Messenger:   providers.NopMessenger{},
			Delegates:   actions.NewDelegates(),
		}),
		Enrich:    bindings.Enrich,
		Condition: bindings.EvalCondition,
		Confirmer: providers.AutoConfirmer{Approve: true},
		Logger:    zerolog.Nop(),
	})

	base := make(map[string]any)
	for k, v := range app.Meta.Vars {
		base[k] = v
	}
	if raw, ok := args["context"].(map[string]any); ok {
		for k, v := range raw {
			base[k] = v
		}
	}

	result := c.Compile(acts, base).Run(ctx)

	response := map[string]any{
		"chain_id": result.ChainID,
		"status":   result.Status,
		"settled":  result.Settled,
		"mode":     mode,
	}
	if len(result.Results) > 0 {
		response["results"] = result.Results
	}
	if len(router.History) > 0 {
		navs := make([]string, 0, len(router.History))
		for _, n := range router.History {
			navs = append(navs, n.URL)
		}
		response["navigations"] = navs
	}
	if result.Err != nil {
		response["error"] = result.Err.Error()
	}

	data, _ := json.MarshalIndent(response, "", "  ")

	isErr := result.Status == chain.StatusErrored
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: isErr,
	}, nil
}

func hasErrors(errs []*schema.ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

func formatErrors(errs []*schema.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
