package mcpserver

import (
	"context"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tobert/traceview/internal/model"
	"github.com/tobert/traceview/internal/storage"
)

// Source supplies the traces the tools query. storage.TraceFile and
// storage.SpanStore implement it.
type Source interface {
	Version() uint64
	Traces() []model.Trace
}

// Reloader is implemented by sources that can be re-read on demand.
type Reloader interface {
	Load() error
}

// Server exposes the loaded traces to agents as MCP tools and resources.
type Server struct {
	mcpServer *mcp.Server
	source    Source
	store     *storage.SpanStore // live buffer, nil when serving a file
	endpoint  string
	verbose   bool
}

// ServerOptions configures the MCP server.
type ServerOptions struct {
	Verbose bool // Enable verbose logging
	// Store is the live span buffer, when traces arrive over OTLP. It adds
	// buffer statistics to the stats resource.
	Store *storage.SpanStore
	// Endpoint is the OTLP receiver address, if one is running.
	Endpoint string
}

// NewServer creates an MCP server over source.
func NewServer(source Source, opts ...ServerOptions) (*Server, error) {
	if source == nil {
		return nil, fmt.Errorf("trace source cannot be nil")
	}

	var opt ServerOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	s := &Server{
		source:   source,
		store:    opt.Store,
		endpoint: opt.Endpoint,
		verbose:  opt.Verbose,
	}

	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    "traceview",
		Title:   "Trace timeline viewer",
		Version: "0.1.0",
	}, &mcp.ServerOptions{
		Instructions: `Trace timeline viewer. Holds distributed traces loaded from a JSON file or received over OTLP.

Workflow: list_traces -> waterfall (overview) -> query_spans (filter) -> get_span (details).

Traces are addressed by index (from list_traces) or trace ID. Filters match service and operation
substrings case-insensitively and durations in nanoseconds.
Resources: traceview://traces, traceview://services, traceview://stats, traceview://traces/{trace}.`,
	})

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	s.registerResources()

	return s, nil
}

// Run starts the MCP server on stdio transport.
// This method blocks until the context is cancelled or EOF is received on stdin.
func (s *Server) Run(ctx context.Context) error {
	if s.verbose {
		log.Println("🎯 MCP server ready on stdio")
	}
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for use with alternative transports.
// This enables the server to be used with StreamableHTTPHandler for HTTP transport.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
