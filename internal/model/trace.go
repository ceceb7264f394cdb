// Package model holds the in-memory trace representation shared by the
// timeline, the live ingestion path and every host.
package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Tag is one key/value annotation on a span, kept in document order.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Span is a single timed operation. StartTime is relative to the owning
// trace after normalization; both StartTime and Duration are nanoseconds.
type Span struct {
	SpanID        string
	OperationName string
	ServiceName   string
	StartTime     float64
	Duration      float64
	Depth         uint32
	Tags          []Tag
	Logs          []string
	Color         uint32 // packed 0xRRGGBBAA, assigned by the viewer
	Selected      bool
}

// End returns StartTime + Duration.
func (s Span) End() float64 {
	return s.StartTime + s.Duration
}

// Details renders the multi-line description shown in the span details
// panel and returned by the MCP get_span tool.
func (s Span) Details() string {
	var b strings.Builder
	b.WriteString("Span {\n")
	fmt.Fprintf(&b, "  ID: %s\n", s.SpanID)
	fmt.Fprintf(&b, "  Operation: %s\n", s.OperationName)
	fmt.Fprintf(&b, "  Service: %s\n", s.ServiceName)
	fmt.Fprintf(&b, "  Start Time: %sns\n", formatNanos(s.StartTime))
	fmt.Fprintf(&b, "  Duration: %sns\n", formatNanos(s.Duration))
	fmt.Fprintf(&b, "  Depth: %d\n", s.Depth)
	if len(s.Tags) > 0 {
		b.WriteString("  Tags:\n")
		for _, t := range s.Tags {
			fmt.Fprintf(&b, "    %s: %s\n", t.Key, t.Value)
		}
	}
	if len(s.Logs) > 0 {
		b.WriteString("  Logs:\n")
		for _, l := range s.Logs {
			fmt.Fprintf(&b, "    %s\n", l)
		}
	}
	b.WriteString("}")
	return b.String()
}

func formatNanos(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Trace is an ordered collection of spans sharing one time origin.
//
// Spans are sorted ascending by StartTime. StartTime on the trace is the
// original (pre-normalization) minimum span start. The Min/Max fields are
// aggregates cached at load time; all of them are zero for a trace with
// no spans.
type Trace struct {
	TraceID       string
	TraceName     string
	Spans         []Span
	TotalDuration float64
	StartTime     float64
	TotalSpans    int

	MinDuration  float64
	MaxDuration  float64
	MinStartTime float64
	MaxStartTime float64
}

// Services returns the distinct service names of the trace in order of
// first appearance.
func (t *Trace) Services() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range t.Spans {
		if !seen[s.ServiceName] {
			seen[s.ServiceName] = true
			out = append(out, s.ServiceName)
		}
	}
	return out
}

// normalize computes the cached aggregates, shifts every span so the
// earliest start becomes 0 and sorts the spans by start time.
func (t *Trace) normalize() {
	t.TotalSpans = len(t.Spans)
	if len(t.Spans) == 0 {
		t.StartTime = 0
		t.TotalDuration = 0
		t.MinDuration, t.MaxDuration = 0, 0
		t.MinStartTime, t.MaxStartTime = 0, 0
		return
	}

	first := t.Spans[0]
	minTime, maxTime := first.StartTime, first.End()
	t.MinDuration, t.MaxDuration = first.Duration, first.Duration
	for _, s := range t.Spans[1:] {
		minTime = min(minTime, s.StartTime)
		maxTime = max(maxTime, s.End())
		t.MinDuration = min(t.MinDuration, s.Duration)
		t.MaxDuration = max(t.MaxDuration, s.Duration)
	}

	t.StartTime = minTime
	t.TotalDuration = maxTime - minTime

	for i := range t.Spans {
		t.Spans[i].StartTime -= minTime
	}

	// Re-derive the start range from the shifted values rather than
	// offsetting the pre-normalization ones.
	t.MinStartTime, t.MaxStartTime = t.Spans[0].StartTime, t.Spans[0].StartTime
	for _, s := range t.Spans[1:] {
		t.MinStartTime = min(t.MinStartTime, s.StartTime)
		t.MaxStartTime = max(t.MaxStartTime, s.StartTime)
	}

	sort.SliceStable(t.Spans, func(i, j int) bool {
		return t.Spans[i].StartTime < t.Spans[j].StartTime
	})
}

// CloneTraces deep-copies traces so each viewer can mark colors and
// selection on its own spans.
func CloneTraces(traces []Trace) []Trace {
	if traces == nil {
		return nil
	}
	out := make([]Trace, len(traces))
	for i, t := range traces {
		out[i] = t
		out[i].Spans = make([]Span, len(t.Spans))
		for j, s := range t.Spans {
			s.Tags = append([]Tag(nil), s.Tags...)
			s.Logs = append([]string(nil), s.Logs...)
			out[i].Spans[j] = s
		}
	}
	return out
}
