// Package mcp implements the Model Context Protocol server for Sagacity.
//
// The server exposes rationale validation, ranking, and selection as MCP
// tools, plus the criterion registry as a resource, so MCP-compatible
// agents can drive the scoring engine directly.
package mcp

import (
	"encoding/json"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/sagelearn/sagacity/internal/engine"
	"github.com/sagelearn/sagacity/internal/selector"
)

// Server wraps the MCP server around the scoring engine.
type Server struct {
	mcpServer *mcpserver.MCPServer
	agg       *engine.Aggregator
	sel       *selector.Selector
	logger    *slog.Logger
}

// New creates an MCP server with all tools and resources registered.
func New(agg *engine.Aggregator, sel *selector.Selector, version string, logger *slog.Logger) *Server {
	s := &Server{
		agg:    agg,
		sel:    sel,
		logger: logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"sagacity",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		IsError: true,
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
	}
}

func jsonResult(v any) *mcplib.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}
}
