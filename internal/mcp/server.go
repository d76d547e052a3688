package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/dictpress/internal/indexer"
	"github.com/dshills/dictpress/internal/searcher"
	"github.com/dshills/dictpress/internal/storage"
	"github.com/dshills/dictpress/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "dictpress"
)

// ServerVersion is reported to MCP clients. It is set by the CLI.
var ServerVersion = "dev"

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	dicts    []types.Dict
	logger   *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithDicts sets the dictionary pairs reported by get_status
func WithDicts(dicts []types.Dict) Option {
	return func(s *Server) {
		s.dicts = dicts
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates an MCP server over the given components. The caller
// keeps ownership of store.
func NewServer(store storage.Storage, srch *searcher.Searcher, idx *indexer.Indexer, opts ...Option) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		storage:  store,
		indexer:  idx,
		searcher: srch,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchDictionaryTool(), s.handleSearchDictionary)
	s.mcp.AddTool(suggestWordsTool(), s.handleSuggestWords)
	s.mcp.AddTool(getEntryTool(), s.handleGetEntry)
	s.mcp.AddTool(getGlossaryTool(), s.handleGetGlossary)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(rebuildSuggestionsTool(), s.handleRebuildSuggestions)
}
