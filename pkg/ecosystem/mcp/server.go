package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with weft tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"weft",
		version,
		server.WithToolCapabilities(true),
	)

	// Register tools
	s.AddTool(
		mcp.NewTool("weft/validate",
			mcp.WithDescription("Validate a weft app bundle YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the app bundle YAML file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("weft/trigger",
			mcp.WithDescription("Run the action chain bound to a component event (dry-run against in-memory providers)"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the app bundle YAML file")),
			mcp.WithString("screen", mcp.Required(), mcp.Description("Screen ID")),
			mcp.WithString("component", mcp.Required(), mcp.Description("Component ID")),
			mcp.WithString("event", mcp.Required(), mcp.Description("Event name (e.g. click)")),
			mcp.WithString("mode", mcp.Description("Execution mode: dry-run (default). Live mode needs the HTTP surface.")),
			mcp.WithObject("context", mcp.Description("Extra key/value pairs merged into the chain context")),
		),
		HandleTrigger,
	)

	s.AddTool(
		mcp.NewTool("weft/kinds",
			mcp.WithDescription("List the built-in action kinds"),
		),
		HandleKinds,
	)

	s.AddTool(
		mcp.NewTool("weft/schema",
			mcp.WithDescription("Export the weft app bundle JSON Schema"),
		),
		HandleSchema,
	)

	return s
}
