// Package mcpserver exposes the fidelity queries as Model-Context-Protocol
// tools over stdio.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server and registers the dbgfidelity tools.
type Server struct {
	server         *mcp.Server
	harnessMarkers []string
	logger         *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithHarnessMarkers sets the source-name markers filtered from metric
// baselines.
func WithHarnessMarkers(markers ...string) Option {
	return func(s *Server) { s.harnessMarkers = markers }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(version string, opts ...Option) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "dbgfidelity",
			Version: version,
		},
		nil,
	)

	s := &Server{
		server:         server,
		harnessMarkers: []string{"fuzz"},
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "live_variables",
		Description: describeLiveVariables(),
	}, s.handleLiveVariables)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "line_table",
		Description: describeLineTable(),
	}, s.handleLineTable)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "parse_transcript",
		Description: describeParseTranscript(),
	}, s.handleParseTranscript)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fidelity_metrics",
		Description: describeFidelityMetrics(),
	}, s.handleFidelityMetrics)
}
