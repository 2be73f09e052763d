package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/luarag/internal/app"
)

const (
	// ServerName is the MCP server name
	ServerName = "luarag"
)

// ServerVersion is reported to MCP clients; cmd/luarag sets it at startup
var ServerVersion = "dev"

// Server exposes the luarag operations as MCP tools
type Server struct {
	mcp    *server.MCPServer
	app    *app.App
	logger *slog.Logger
}

// NewServer creates an MCP server over a
func NewServer(a *app.App) *Server {
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:    mcpServer,
		app:    a,
		logger: a.Logger.With("component", "mcp"),
	}
	s.registerTools()
	return s
}

// Serve runs the MCP protocol on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio", "version", ServerVersion)
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	// Indexing
	s.mcp.AddTool(indexFileTool(), s.handleIndexFile)
	s.mcp.AddTool(indexDirectoryTool(), s.handleIndexDirectory)
	s.mcp.AddTool(deleteFileTool(), s.handleDeleteFile)

	// Retrieval
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(getContextTool(), s.handleGetContext)
	s.mcp.AddTool(getRelatedChunksTool(), s.handleGetRelatedChunks)
	s.mcp.AddTool(enhancePromptTool(), s.handleEnhancePrompt)

	// Status
	s.mcp.AddTool(getStatsTool(), s.handleGetStats)
}
