package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/threadflow/internal/memory"
	"github.com/ziadkadry99/threadflow/internal/orchestrator"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes conversational tools over stdio.
type Server struct {
	orch     *orchestrator.Orchestrator
	memories memory.Store // nil when long-term memory is disabled
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(orch *orchestrator.Orchestrator, memories memory.Store) *Server {
	s := &Server{
		orch:     orch,
		memories: memories,
	}

	s.mcp = server.NewMCPServer(
		"threadflow",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(chatTool, s.handleChat)
	s.mcp.AddTool(searchMemoriesTool, s.handleSearchMemories)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
