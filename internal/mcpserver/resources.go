package mcpserver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tobert/traceview/internal/viz"
)

// registerResources registers all MCP resources and resource templates.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "traceview://traces",
		Name:        "traces",
		Description: "Loaded traces with index, span count and duration.",
		MIMEType:    "text/plain",
	}, s.handleTracesResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "traceview://services",
		Name:        "services",
		Description: "Span and error counts per service across all loaded traces.",
		MIMEType:    "text/plain",
	}, s.handleServicesResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "traceview://stats",
		Name:        "stats",
		Description: "Source version, trace count and, for live sources, span buffer usage and the OTLP endpoint.",
		MIMEType:    "text/plain",
	}, s.handleStatsResource)

	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "traceview://traces/{trace}",
		Name:        "trace-waterfall",
		Description: "ASCII waterfall of one trace, addressed by index or trace ID.",
		MIMEType:    "text/plain",
	}, s.handleTraceResource)
}

// ─── Static resource handlers ───────────────────────────────────────────

func (s *Server) handleTracesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	traces := s.source.Traces()
	text := viz.TraceList(traces, displayUnit(traces))
	if text == "" {
		text = "No traces loaded.\n"
	}
	return textResult(req.Params.URI, text), nil
}

func (s *Server) handleServicesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	text := viz.ServiceSummary(viz.CollectServiceStats(s.source.Traces()), 80)
	if text == "" {
		text = "No services seen yet.\n"
	}
	return textResult(req.Params.URI, text), nil
}

func (s *Server) handleStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	var b strings.Builder
	b.WriteString("Trace Source\n")
	b.WriteString("════════════\n")
	fmt.Fprintf(&b, "  Version:  %d\n", s.source.Version())
	fmt.Fprintf(&b, "  Traces:   %d\n", len(s.source.Traces()))
	if s.endpoint != "" {
		fmt.Fprintf(&b, "  OTLP:     %s\n", s.endpoint)
	}
	if s.store != nil {
		st := s.store.Stats()
		b.WriteString("\n")
		b.WriteString(viz.StoreOverview(st.SpanCount, st.Capacity, st.TraceCount))
	}
	return textResult(req.Params.URI, b.String()), nil
}

// ─── Template resource handlers ─────────────────────────────────────────

func (s *Server) handleTraceResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	ref, err := extractURIParam(req.Params.URI, "traceview://traces/")
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	traces := s.source.Traces()
	t, _, err := findTrace(traces, ref)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	return textResult(req.Params.URI, viz.Waterfall(t, viz.Options{
		Width: 100,
		Unit:  displayUnit(traces),
	})), nil
}

// ─── Helpers ────────────────────────────────────────────────────────────

// extractURIParam extracts the parameter value from a URI by stripping the prefix
// and URL-decoding the remainder.
func extractURIParam(uri, prefix string) (string, error) {
	if !strings.HasPrefix(uri, prefix) {
		return "", fmt.Errorf("invalid URI: %s", uri)
	}
	param := strings.TrimPrefix(uri, prefix)
	if param == "" {
		return "", fmt.Errorf("empty parameter in URI: %s", uri)
	}
	decoded, err := url.PathUnescape(param)
	if err != nil {
		return "", fmt.Errorf("invalid encoding in URI: %w", err)
	}
	return decoded, nil
}

// textResult wraps a string in a ReadResourceResult.
func textResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     text,
		}},
	}
}
