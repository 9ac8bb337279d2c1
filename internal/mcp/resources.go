package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerResources() {
	// sagacity://criteria — the full criterion registry, beta included.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"sagacity://criteria",
			"Scoring Criteria",
			mcplib.WithResourceDescription("All registered scoring criteria with their rule fields and scopes"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleCriteriaResource,
	)
}

func (s *Server) handleCriteriaResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(s.agg.ListCriteria(true), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal criteria: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "sagacity://criteria",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
