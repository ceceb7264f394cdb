package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tobert/traceview/internal/model"
	"github.com/tobert/traceview/internal/timeline"
	"github.com/tobert/traceview/internal/viz"
)

// ═══════════════════════════════════════════════════════════════════════════
// TRACE TOOLS
//
// 1. list_traces - What is loaded
// 2. query_spans - Filter the spans of one trace
// 3. get_span    - Full details of one span
// 4. waterfall   - ASCII timeline of one trace
// 5. reload      - Re-read the trace file
//
// Filtering goes through the same engine the timeline uses, so a query
// matches exactly the spans the viewer would draw.
// ═══════════════════════════════════════════════════════════════════════════

// Tool 1: list_traces

type ListTracesInput struct {
	Service string `json:"service,omitempty" jsonschema:"Only traces with a service containing this text"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum traces to return (0 = all)"`
}

type ListTracesOutput struct {
	Traces  []TraceInfo `json:"traces" jsonschema:"Loaded traces"`
	Total   int         `json:"total" jsonschema:"Number of loaded traces"`
	Version uint64      `json:"version" jsonschema:"Source version; changes whenever the traces change"`
}

func (s *Server) handleListTraces(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ListTracesInput,
) (*mcp.CallToolResult, ListTracesOutput, error) {
	traces := s.source.Traces()
	unit := displayUnit(traces)

	out := ListTracesOutput{
		Traces:  []TraceInfo{},
		Total:   len(traces),
		Version: s.source.Version(),
	}
	for i := range traces {
		t := &traces[i]
		if input.Service != "" && !hasService(t, input.Service) {
			continue
		}
		out.Traces = append(out.Traces, traceInfo(i, t, unit))
		if input.Limit > 0 && len(out.Traces) >= input.Limit {
			break
		}
	}
	return &mcp.CallToolResult{}, out, nil
}

// Tool 2: query_spans

type QuerySpansInput struct {
	Trace         string  `json:"trace,omitempty" jsonschema:"Trace index or trace ID (empty = first trace)"`
	Service       string  `json:"service,omitempty" jsonschema:"Service name substring (case-insensitive)"`
	Operation     string  `json:"operation,omitempty" jsonschema:"Operation name substring (case-insensitive)"`
	MinDurationNs float64 `json:"min_duration_ns,omitempty" jsonschema:"Minimum span duration in nanoseconds"`
	MaxDurationNs float64 `json:"max_duration_ns,omitempty" jsonschema:"Maximum span duration in nanoseconds (0 = no limit)"`
	MinStartNs    float64 `json:"min_start_ns,omitempty" jsonschema:"Earliest span start, relative to the trace start"`
	MaxStartNs    float64 `json:"max_start_ns,omitempty" jsonschema:"Latest span start, relative to the trace start (0 = no limit)"`
	Limit         int     `json:"limit,omitempty" jsonschema:"Maximum spans to return (0 = 100)"`
}

type QuerySpansOutput struct {
	TraceID string        `json:"trace_id" jsonschema:"Trace the spans belong to"`
	Matched int           `json:"matched" jsonschema:"Spans passing the filters"`
	Total   int           `json:"total" jsonschema:"Spans in the trace"`
	Spans   []SpanSummary `json:"spans" jsonschema:"Matching spans in start order"`
}

func (s *Server) handleQuerySpans(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input QuerySpansInput,
) (*mcp.CallToolResult, QuerySpansOutput, error) {
	t, err := s.lookupTrace(input.Trace)
	if err != nil {
		return nil, QuerySpansOutput{}, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 100
	}

	cfg := filterConfig(input.Service, input.Operation, input.MinDurationNs, input.MaxDurationNs, input.MinStartNs, input.MaxStartNs)
	out := QuerySpansOutput{
		TraceID: t.TraceID,
		Total:   len(t.Spans),
		Spans:   []SpanSummary{},
	}
	for i := range t.Spans {
		span := &t.Spans[i]
		if !timeline.Passes(span, &cfg) {
			continue
		}
		out.Matched++
		if len(out.Spans) < limit {
			out.Spans = append(out.Spans, spanSummary(i, span))
		}
	}
	return &mcp.CallToolResult{}, out, nil
}

// Tool 3: get_span

type GetSpanInput struct {
	Trace  string `json:"trace,omitempty" jsonschema:"Trace index or trace ID (empty = first trace)"`
	SpanID string `json:"span_id,omitempty" jsonschema:"Span ID"`
	Index  *int   `json:"index,omitempty" jsonschema:"Span index within the trace, as returned by query_spans"`
}

type GetSpanOutput struct {
	Span    SpanSummary `json:"span" jsonschema:"The span"`
	Details string      `json:"details" jsonschema:"Formatted details as shown in the viewer's details panel"`
}

func (s *Server) handleGetSpan(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetSpanInput,
) (*mcp.CallToolResult, GetSpanOutput, error) {
	t, err := s.lookupTrace(input.Trace)
	if err != nil {
		return nil, GetSpanOutput{}, err
	}

	idx := -1
	switch {
	case input.Index != nil:
		if *input.Index < 0 || *input.Index >= len(t.Spans) {
			return nil, GetSpanOutput{}, fmt.Errorf("span index %d out of range (trace has %d spans)", *input.Index, len(t.Spans))
		}
		idx = *input.Index
	case input.SpanID != "":
		for i := range t.Spans {
			if t.Spans[i].SpanID == input.SpanID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, GetSpanOutput{}, fmt.Errorf("span %q not found in trace %s", input.SpanID, t.TraceID)
		}
	default:
		return nil, GetSpanOutput{}, errors.New("span_id or index is required")
	}

	span := &t.Spans[idx]
	return &mcp.CallToolResult{}, GetSpanOutput{
		Span:    spanSummary(idx, span),
		Details: span.Details(),
	}, nil
}

// Tool 4: waterfall

type WaterfallInput struct {
	Trace         string  `json:"trace,omitempty" jsonschema:"Trace index or trace ID (empty = first trace)"`
	Service       string  `json:"service,omitempty" jsonschema:"Service name substring (case-insensitive)"`
	Operation     string  `json:"operation,omitempty" jsonschema:"Operation name substring (case-insensitive)"`
	MinDurationNs float64 `json:"min_duration_ns,omitempty" jsonschema:"Minimum span duration in nanoseconds"`
	MaxDurationNs float64 `json:"max_duration_ns,omitempty" jsonschema:"Maximum span duration in nanoseconds (0 = no limit)"`
	ViewStartNs   float64 `json:"view_start_ns,omitempty" jsonschema:"Start of the time window to draw"`
	ViewEndNs     float64 `json:"view_end_ns,omitempty" jsonschema:"End of the time window to draw (0 = whole trace)"`
	Width         int     `json:"width,omitempty" jsonschema:"Line width in characters (0 = 100)"`
	MaxSpans      int     `json:"max_spans,omitempty" jsonschema:"Maximum rows (0 = 50)"`
	Unit          string  `json:"unit,omitempty" jsonschema:"Time unit: ns, us, ms, s, min, h (empty = auto)"`
}

type WaterfallOutput struct {
	TraceID string `json:"trace_id" jsonschema:"Rendered trace"`
	Text    string `json:"text" jsonschema:"ASCII waterfall"`
}

func (s *Server) handleWaterfall(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input WaterfallInput,
) (*mcp.CallToolResult, WaterfallOutput, error) {
	t, err := s.lookupTrace(input.Trace)
	if err != nil {
		return nil, WaterfallOutput{}, err
	}

	unit := timeline.DetectTimeUnit(0, t.TotalDuration)
	if input.Unit != "" {
		u, ok := timeline.ParseTimeUnit(input.Unit)
		if !ok {
			return nil, WaterfallOutput{}, fmt.Errorf("unknown time unit %q", input.Unit)
		}
		unit = u
	}

	width := input.Width
	if width <= 0 {
		width = 100
	}

	cfg := filterConfig(input.Service, input.Operation, input.MinDurationNs, input.MaxDurationNs, 0, 0)
	text := viz.Waterfall(t, viz.Options{
		Width:    width,
		Filter:   func(sp *model.Span) bool { return timeline.Passes(sp, &cfg) },
		View:     timeline.Viewport{Start: input.ViewStartNs, End: input.ViewEndNs},
		Unit:     unit,
		MaxSpans: input.MaxSpans,
	})
	return &mcp.CallToolResult{}, WaterfallOutput{TraceID: t.TraceID, Text: text}, nil
}

// Tool 5: reload

type ReloadInput struct{}

type ReloadOutput struct {
	Reloaded bool   `json:"reloaded" jsonschema:"Whether the source was re-read"`
	Traces   int    `json:"traces" jsonschema:"Traces loaded after the reload"`
	Version  uint64 `json:"version" jsonschema:"Source version after the reload"`
	Message  string `json:"message" jsonschema:"What happened"`
}

func (s *Server) handleReload(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ReloadInput,
) (*mcp.CallToolResult, ReloadOutput, error) {
	r, ok := s.source.(Reloader)
	if !ok {
		return &mcp.CallToolResult{}, ReloadOutput{
			Traces:  len(s.source.Traces()),
			Version: s.source.Version(),
			Message: "live source updates continuously; nothing to reload",
		}, nil
	}

	if err := r.Load(); err != nil {
		return nil, ReloadOutput{}, fmt.Errorf("reload failed: %w", err)
	}
	n := len(s.source.Traces())
	return &mcp.CallToolResult{}, ReloadOutput{
		Reloaded: true,
		Traces:   n,
		Version:  s.source.Version(),
		Message:  fmt.Sprintf("loaded %d traces", n),
	}, nil
}

func (s *Server) registerTools() error {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_traces",
		Description: "START HERE: List the loaded traces with their index, trace ID, name, span count, duration and services. Use the index or trace ID to address a trace in the other tools.",
	}, s.handleListTraces)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "query_spans",
		Description: "Filter the spans of one trace by service and operation substring and by duration and start-time ranges (nanoseconds). Returns the matching spans in start order with their tags, exactly the spans the timeline would draw with the same filters.",
	}, s.handleQuerySpans)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_span",
		Description: "Get the full details of one span (ID, operation, service, timing, depth, tags and logs) by span ID or by index within the trace.",
	}, s.handleGetSpan)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "waterfall",
		Description: "Render one trace as an ASCII waterfall: a span tree with duration bars, optionally filtered and zoomed to a time window. Best first look at where time goes in a request.",
	}, s.handleWaterfall)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "reload",
		Description: "Re-read the trace file from disk. Live OTLP sources update on their own and report so.",
	}, s.handleReload)

	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// OUTPUT TYPES
// ═══════════════════════════════════════════════════════════════════════════

type TraceInfo struct {
	Index      int      `json:"index" jsonschema:"Position in the loaded trace list"`
	TraceID    string   `json:"trace_id" jsonschema:"Trace ID"`
	Name       string   `json:"name" jsonschema:"Trace name"`
	Spans      int      `json:"spans" jsonschema:"Number of spans"`
	DurationNs float64  `json:"duration_ns" jsonschema:"Total duration in nanoseconds"`
	Duration   string   `json:"duration" jsonschema:"Human-readable duration"`
	Services   []string `json:"services" jsonschema:"Services in order of first appearance"`
	Errors     int      `json:"errors" jsonschema:"Spans with an error status"`
}

type SpanSummary struct {
	Index      int               `json:"index" jsonschema:"Span index within the trace"`
	SpanID     string            `json:"span_id" jsonschema:"Span ID"`
	Service    string            `json:"service" jsonschema:"Service name"`
	Operation  string            `json:"operation" jsonschema:"Operation name"`
	StartNs    float64           `json:"start_ns" jsonschema:"Start relative to the trace start, nanoseconds"`
	DurationNs float64           `json:"duration_ns" jsonschema:"Duration in nanoseconds"`
	Depth      uint32            `json:"depth" jsonschema:"Nesting depth (0 = root)"`
	Tags       map[string]string `json:"tags,omitempty" jsonschema:"Span tags"`
	Logs       int               `json:"logs,omitempty" jsonschema:"Number of log entries"`
}

func traceInfo(i int, t *model.Trace, unit timeline.TimeUnit) TraceInfo {
	info := TraceInfo{
		Index:      i,
		TraceID:    t.TraceID,
		Name:       t.TraceName,
		Spans:      t.TotalSpans,
		DurationNs: t.TotalDuration,
		Duration:   timeline.FormatTime(t.TotalDuration, unit),
		Services:   t.Services(),
	}
	for _, st := range viz.CollectServiceStats([]model.Trace{*t}) {
		info.Errors += st.ErrorCount
	}
	return info
}

func spanSummary(i int, s *model.Span) SpanSummary {
	sum := SpanSummary{
		Index:      i,
		SpanID:     s.SpanID,
		Service:    s.ServiceName,
		Operation:  s.OperationName,
		StartNs:    s.StartTime,
		DurationNs: s.Duration,
		Depth:      s.Depth,
		Logs:       len(s.Logs),
	}
	if len(s.Tags) > 0 {
		sum.Tags = make(map[string]string, len(s.Tags))
		for i, t := range s.Tags {
			if i >= 20 { // Limit to 20 tags
				break
			}
			sum.Tags[t.Key] = t.Value
		}
	}
	return sum
}

// lookupTrace resolves a tool's trace reference. With a live store a trace
// ID only assembles that trace's spans instead of the whole buffer.
func (s *Server) lookupTrace(ref string) (*model.Trace, error) {
	if s.store != nil && ref != "" {
		if _, err := strconv.Atoi(ref); err != nil {
			t, ok := s.store.Trace(ref)
			if !ok {
				return nil, fmt.Errorf("trace %q not found", ref)
			}
			return &t, nil
		}
	}
	t, _, err := findTrace(s.source.Traces(), ref)
	return t, err
}

// findTrace resolves ref as a trace index, then as a trace ID. An empty
// ref selects the first trace.
func findTrace(traces []model.Trace, ref string) (*model.Trace, int, error) {
	if len(traces) == 0 {
		return nil, -1, errors.New("no traces loaded")
	}
	if ref == "" {
		return &traces[0], 0, nil
	}
	if i, err := strconv.Atoi(ref); err == nil {
		if i < 0 || i >= len(traces) {
			return nil, -1, fmt.Errorf("trace index %d out of range (%d traces loaded)", i, len(traces))
		}
		return &traces[i], i, nil
	}
	for i := range traces {
		if traces[i].TraceID == ref {
			return &traces[i], i, nil
		}
	}
	return nil, -1, fmt.Errorf("trace %q not found", ref)
}

// filterConfig builds filter state for timeline.Passes. Zero maxima mean
// unbounded.
func filterConfig(service, operation string, minDur, maxDur, minStart, maxStart float64) timeline.ViewerConfig {
	cfg := timeline.DefaultViewerConfig()
	cfg.ServiceFilter = service
	cfg.OperationFilter = operation
	cfg.MinDurationFilter = minDur
	cfg.MaxDurationFilter = math.Inf(1)
	if maxDur > 0 {
		cfg.MaxDurationFilter = maxDur
	}
	cfg.MinTimeFilter = minStart
	cfg.MaxTimeFilter = math.Inf(1)
	if maxStart > 0 {
		cfg.MaxTimeFilter = maxStart
	}
	return cfg
}

func hasService(t *model.Trace, needle string) bool {
	for _, name := range t.Services() {
		if timeline.ContainsFold(name, needle) {
			return true
		}
	}
	return false
}

// displayUnit picks one unit that reads well for every trace duration.
func displayUnit(traces []model.Trace) timeline.TimeUnit {
	longest := 0.0
	for i := range traces {
		longest = max(longest, traces[i].TotalDuration)
	}
	return timeline.DetectTimeUnit(0, longest)
}
