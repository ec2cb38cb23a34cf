// Package mcpserver exposes the insurance lookup tools over the Model Context
// Protocol so external agents can call them.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ashureev/care-assistant/internal/domain"
	"github.com/ashureev/care-assistant/internal/tools"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Toolbox runs the lookup tools.
type Toolbox interface {
	Invoke(ctx context.Context, name string, args tools.Args) (domain.ToolResult, error)
}

// Server wraps an MCP server that exposes the lookup tools.
type Server struct {
	tools Toolbox
	mcp   *server.MCPServer
}

// NewServer creates a new MCP server backed by tb.
func NewServer(tb Toolbox) *Server {
	s := &Server{tools: tb}
	s.mcp = server.NewMCPServer(
		"care",
		Version,
		server.WithToolCapabilities(false),
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(coverageLookupTool, s.handleCoverageLookup)
	s.mcp.AddTool(benefitVerifyTool, s.handleBenefitVerify)
	s.mcp.AddTool(claimsStatusTool, s.handleClaimsStatus)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
