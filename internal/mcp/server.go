package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/cverag/internal/rag"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the CVE lookup and prompt tools.
type Server struct {
	service *rag.Service
	mcp     *server.MCPServer
}

// NewServer creates a new MCP server backed by the prompt service.
func NewServer(service *rag.Service) *Server {
	s := &Server{service: service}

	s.mcp = server.NewMCPServer(
		"cverag",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(extractCVEsTool, s.handleExtractCVEs)
	s.mcp.AddTool(lookupCVEsTool, s.handleLookupCVEs)
	s.mcp.AddTool(askTool, s.handleAsk)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
