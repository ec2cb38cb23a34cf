package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ashureev/care-assistant/internal/domain"
	"github.com/ashureev/care-assistant/internal/tools"
)

func (s *Server) handleCoverageLookup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: user_id"), nil
	}
	return s.invoke(ctx, tools.CoverageLookup, tools.Args{
		UserID: userID,
		Query:  request.GetString("query", ""),
	})
}

func (s *Server) handleBenefitVerify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: user_id"), nil
	}
	return s.invoke(ctx, tools.BenefitVerify, tools.Args{
		UserID:      userID,
		ServiceType: request.GetString("service_type", tools.DefaultServiceType),
	})
}

func (s *Server) handleClaimsStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: user_id"), nil
	}
	return s.invoke(ctx, tools.ClaimsStatus, tools.Args{
		UserID:       userID,
		StatusFilter: request.GetString("status_filter", "all"),
	})
}

// invoke runs a tool and renders its payload as JSON. Results with
// status=error are reported as tool errors carrying the same payload.
func (s *Server) invoke(ctx context.Context, name string, args tools.Args) (*mcp.CallToolResult, error) {
	res, err := s.tools.Invoke(ctx, name, args)
	if err != nil {
		slog.Warn("MCP tool call failed", "tool", name, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", name, err)), nil
	}

	payload, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode %s result: %v", name, err)), nil
	}
	if res.ToolStatus() == domain.ToolError {
		return mcp.NewToolResultError(string(payload)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}
