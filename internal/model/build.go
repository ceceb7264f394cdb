package model

import (
	"fmt"
	"sort"
)

// SpanRecord is a flat span as received from an OTLP exporter: absolute
// timestamps and a parent link instead of a precomputed depth.
type SpanRecord struct {
	TraceID     string
	SpanID      string
	ParentID    string // empty for root spans
	ServiceName string
	Name        string
	StartNano   uint64
	EndNano     uint64
	Attributes  []Tag
	Events      []EventRecord
}

// EventRecord is a timestamped span event.
type EventRecord struct {
	Name     string
	TimeNano uint64
}

// BuildTraces groups records by trace ID and converts each group into a
// normalized Trace. Depth comes from the parent chain; spans whose parent
// is not in the set are treated as roots. The trace is named after its
// earliest root span. Traces are returned ordered by their earliest span.
func BuildTraces(records []SpanRecord) []Trace {
	byTrace := make(map[string][]SpanRecord)
	var order []string
	for _, r := range records {
		if _, seen := byTrace[r.TraceID]; !seen {
			order = append(order, r.TraceID)
		}
		byTrace[r.TraceID] = append(byTrace[r.TraceID], r)
	}

	type built struct {
		trace Trace
		start uint64
	}
	all := make([]built, 0, len(order))
	for _, id := range order {
		tr, start := buildTrace(id, byTrace[id])
		all = append(all, built{tr, start})
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].start < all[j].start
	})

	traces := make([]Trace, len(all))
	for i, b := range all {
		traces[i] = b.trace
	}
	return traces
}

// buildTrace returns the trace and its earliest absolute start. Offsets are
// taken in uint64 before converting: epoch nanoseconds exceed float64's
// exact integer range.
func buildTrace(traceID string, records []SpanRecord) (Trace, uint64) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartNano < records[j].StartNano
	})
	minStart := records[0].StartNano

	parents := make(map[string]string, len(records))
	for _, r := range records {
		parents[r.SpanID] = r.ParentID
	}

	trace := Trace{
		TraceID: traceID,
		Spans:   make([]Span, 0, len(records)),
	}
	for _, r := range records {
		depth := spanDepth(r.SpanID, parents)
		if depth == 0 && trace.TraceName == "" {
			trace.TraceName = r.Name
		}

		end := max(r.EndNano, r.StartNano)
		span := Span{
			SpanID:        r.SpanID,
			OperationName: r.Name,
			ServiceName:   r.ServiceName,
			StartTime:     float64(r.StartNano - minStart),
			Duration:      float64(end - r.StartNano),
			Depth:         depth,
			Tags:          append([]Tag(nil), r.Attributes...),
		}
		for _, ev := range r.Events {
			span.Logs = append(span.Logs, fmt.Sprintf("Event: %s (timestamp: %d)", ev.Name, ev.TimeNano))
		}
		trace.Spans = append(trace.Spans, span)
	}
	if trace.TraceName == "" {
		trace.TraceName = traceID
	}

	trace.normalize()
	trace.StartTime = float64(minStart)
	return trace, minStart
}

// spanDepth walks the parent chain. Unknown parents end the walk, and the
// visited set stops cycles in malformed input.
func spanDepth(spanID string, parents map[string]string) uint32 {
	var depth uint32
	visited := map[string]bool{spanID: true}
	cur := spanID
	for {
		parent := parents[cur]
		if parent == "" || parent == "0000000000000000" {
			return depth
		}
		if _, known := parents[parent]; !known || visited[parent] {
			return depth
		}
		visited[parent] = true
		depth++
		cur = parent
	}
}
