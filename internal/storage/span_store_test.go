package storage

import (
	"context"
	"testing"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/tobert/traceview/internal/model"
)

func strAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}

// makeResourceSpans wraps spans in a resource carrying serviceName.
func makeResourceSpans(serviceName string, spans ...*tracepb.Span) *tracepb.ResourceSpans {
	return &tracepb.ResourceSpans{
		Resource: &resourcepb.Resource{
			Attributes: []*commonpb.KeyValue{strAttr("service.name", serviceName)},
		},
		ScopeSpans: []*tracepb.ScopeSpans{{Spans: spans}},
	}
}

func makeSpan(traceID, spanID, parentID byte, name string, start, end uint64) *tracepb.Span {
	span := &tracepb.Span{
		TraceId:           []byte{traceID, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
		SpanId:            []byte{spanID, 0, 0, 0, 0, 0, 0, 1},
		Name:              name,
		StartTimeUnixNano: start,
		EndTimeUnixNano:   end,
	}
	if parentID != 0 {
		span.ParentSpanId = []byte{parentID, 0, 0, 0, 0, 0, 0, 1}
	}
	return span
}

func TestSpanStoreReceiveAndBuild(t *testing.T) {
	store := NewSpanStore(100)

	err := store.ReceiveSpans(context.Background(), []*tracepb.ResourceSpans{
		makeResourceSpans("frontend", makeSpan(1, 1, 0, "GET /cart", 1000, 5000)),
		makeResourceSpans("cart", makeSpan(1, 2, 1, "load", 1500, 3000), makeSpan(1, 3, 2, "SELECT", 1600, 2000)),
		makeResourceSpans("frontend", makeSpan(2, 4, 0, "GET /", 9000, 9500)),
	})
	if err != nil {
		t.Fatalf("ReceiveSpans failed: %v", err)
	}

	stats := store.Stats()
	if stats.SpanCount != 4 || stats.TraceCount != 2 || stats.Capacity != 100 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	traces := store.Traces()
	if len(traces) != 2 {
		t.Fatalf("expected 2 traces, got %d", len(traces))
	}
	tr := traces[0]
	if tr.TraceName != "GET /cart" {
		t.Errorf("expected trace named after root span, got %q", tr.TraceName)
	}
	if tr.TotalDuration != 4000 {
		t.Errorf("expected total duration 4000, got %v", tr.TotalDuration)
	}
	wantDepth := map[string]uint32{"GET /cart": 0, "load": 1, "SELECT": 2}
	for _, s := range tr.Spans {
		if s.Depth != wantDepth[s.OperationName] {
			t.Errorf("span %s: expected depth %d, got %d", s.OperationName, wantDepth[s.OperationName], s.Depth)
		}
	}
	if tr.Spans[1].ServiceName != "cart" {
		t.Errorf("expected cart service on second span, got %q", tr.Spans[1].ServiceName)
	}

	one, ok := store.Trace(tr.TraceID)
	if !ok || one.TotalSpans != 3 {
		t.Errorf("Trace(%s) = %d spans, ok=%v", tr.TraceID, one.TotalSpans, ok)
	}
	if _, ok := store.Trace("nope"); ok {
		t.Error("expected unknown trace to be missing")
	}
}

func TestSpanStoreEvictionUpdatesIndex(t *testing.T) {
	store := NewSpanStore(2)
	store.Add(model.SpanRecord{TraceID: "a", SpanID: "1"})
	store.Add(model.SpanRecord{TraceID: "b", SpanID: "2"})
	store.Add(model.SpanRecord{TraceID: "b", SpanID: "3"})

	stats := store.Stats()
	if stats.SpanCount != 2 || stats.TraceCount != 1 {
		t.Errorf("expected trace a evicted, got %+v", stats)
	}
	if _, ok := store.Trace("a"); ok {
		t.Error("trace a should be gone")
	}
}

func TestSpanStoreVersionAndClear(t *testing.T) {
	store := NewSpanStore(10)
	v0 := store.Version()
	store.Add(model.SpanRecord{TraceID: "a", SpanID: "1"})
	if store.Version() == v0 {
		t.Error("version should change after Add")
	}

	store.Clear()
	if store.Stats().SpanCount != 0 || store.Stats().TraceCount != 0 {
		t.Errorf("expected empty store, got %+v", store.Stats())
	}
	if len(store.Traces()) != 0 {
		t.Error("expected no traces after clear")
	}
}
