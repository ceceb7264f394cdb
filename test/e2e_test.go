package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/tobert/traceview/internal/otlpreceiver"
	"github.com/tobert/traceview/internal/storage"
	"github.com/tobert/traceview/internal/timeline"
	"github.com/tobert/traceview/internal/webui"
)

func strAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}

// exportTestTrace sends one two-span trace from "e2e-test-service".
func exportTestTrace(t *testing.T, endpoint string, traceID []byte, start time.Time) {
	t.Helper()

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to create grpc client: %v", err)
	}
	defer conn.Close()

	client := collectortrace.NewTraceServiceClient(conn)
	rootID := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	_, err = client.Export(context.Background(), &collectortrace.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{
			Resource: &resourcepb.Resource{Attributes: []*commonpb.KeyValue{
				strAttr("service.name", "e2e-test-service"),
			}},
			ScopeSpans: []*tracepb.ScopeSpans{{
				Spans: []*tracepb.Span{
					{
						TraceId:           traceID,
						SpanId:            rootID,
						Name:              "http.request",
						Kind:              tracepb.Span_SPAN_KIND_SERVER,
						StartTimeUnixNano: uint64(start.UnixNano()),
						EndTimeUnixNano:   uint64(start.Add(150 * time.Millisecond).UnixNano()),
						Attributes:        []*commonpb.KeyValue{strAttr("http.method", "GET")},
					},
					{
						TraceId:           traceID,
						SpanId:            []byte{8, 7, 6, 5, 4, 3, 2, 1},
						ParentSpanId:      rootID,
						Name:              "db.query",
						Kind:              tracepb.Span_SPAN_KIND_CLIENT,
						StartTimeUnixNano: uint64(start.Add(10 * time.Millisecond).UnixNano()),
						EndTimeUnixNano:   uint64(start.Add(100 * time.Millisecond).UnixNano()),
						Status:            &tracepb.Status{Code: tracepb.Status_STATUS_CODE_ERROR},
					},
				},
			}},
		}},
	})
	if err != nil {
		t.Fatalf("failed to export spans: %v", err)
	}
}

// TestEndToEnd verifies the live workflow:
// 1. Start the OTLP gRPC receiver in front of a span store
// 2. Export a trace over OTLP gRPC
// 3. Check the store assembled it into a normalized trace
// 4. Serve it to a browser session and check the drawn frame
func TestEndToEnd(t *testing.T) {
	store := storage.NewSpanStore(1000)

	otlpServer, err := otlpreceiver.NewServer(otlpreceiver.Config{Host: "127.0.0.1", Port: 0}, store)
	if err != nil {
		t.Fatalf("failed to create OTLP server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := otlpServer.Start(ctx); err != nil {
			t.Logf("OTLP server stopped: %v", err)
		}
	}()
	defer otlpServer.Stop()
	t.Logf("OTLP server listening on %s", otlpServer.Endpoint())

	traceID := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	exportTestTrace(t, otlpServer.Endpoint(), traceID, time.Unix(1_700_000_000, 0))

	traces := store.Traces()
	if len(traces) != 1 {
		t.Fatalf("expected 1 trace, got %d", len(traces))
	}
	tr := traces[0]
	if tr.TraceID != "0102030405060708090a0b0c0d0e0f10" {
		t.Errorf("unexpected trace ID %q", tr.TraceID)
	}
	if tr.TraceName != "http.request" {
		t.Errorf("trace should be named after its root span, got %q", tr.TraceName)
	}
	if tr.TotalSpans != 2 || tr.TotalDuration != 150e6 {
		t.Errorf("unexpected aggregates: %d spans, %v ns", tr.TotalSpans, tr.TotalDuration)
	}
	if tr.Spans[0].StartTime != 0 || tr.Spans[1].StartTime != 10e6 {
		t.Errorf("spans not normalized: %v, %v", tr.Spans[0].StartTime, tr.Spans[1].StartTime)
	}
	if tr.Spans[1].Depth != 1 {
		t.Errorf("child depth = %d, want 1", tr.Spans[1].Depth)
	}
	if !strings.Contains(tr.Spans[1].Details(), "status.code: ERROR") {
		t.Errorf("status missing from details:\n%s", tr.Spans[1].Details())
	}

	// Browser session over the same store
	ui := webui.New(store, webui.Config{Viewer: timeline.DefaultViewerConfig(), Poll: 20 * time.Millisecond})
	mux := http.NewServeMux()
	ui.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	wsCtx, wsCancel := context.WithTimeout(ctx, 10*time.Second)
	defer wsCancel()
	conn, _, err := websocket.Dial(wsCtx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(wsCtx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	for _, want := range []string{"e2e-test-service::http.request", "e2e-test-service::db.query"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("frame missing %q", want)
		}
	}

	// A second export reaches the open session on the next poll
	exportTestTrace(t, otlpServer.Endpoint(), []byte{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}, time.Unix(1_700_000_100, 0))
	for {
		_, data, err = conn.Read(wsCtx)
		if err != nil {
			t.Fatalf("no frame with the second trace: %v", err)
		}
		var frame struct {
			Traces []json.RawMessage `json:"traces"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if len(frame.Traces) == 2 {
			break
		}
	}

	stats := otlpServer.Stats()
	if stats.Requests != 2 || stats.Spans != 4 {
		t.Errorf("unexpected receiver stats: %+v", stats)
	}
}

// TestBufferEviction checks that a small store keeps only the newest
// spans and still assembles valid traces from what remains.
func TestBufferEviction(t *testing.T) {
	store := storage.NewSpanStore(3)
	otlpServer, err := otlpreceiver.NewServer(otlpreceiver.Config{Host: "127.0.0.1"}, store)
	if err != nil {
		t.Fatalf("failed to create OTLP server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go otlpServer.Start(ctx)
	defer otlpServer.Stop()

	exportTestTrace(t, otlpServer.Endpoint(), []byte{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, time.Unix(100, 0))
	exportTestTrace(t, otlpServer.Endpoint(), []byte{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}, time.Unix(200, 0))

	stats := store.Stats()
	if stats.SpanCount != 3 {
		t.Fatalf("expected 3 buffered spans, got %d", stats.SpanCount)
	}
	traces := store.Traces()
	if len(traces) != 2 {
		t.Fatalf("expected 2 traces, got %d", len(traces))
	}
	if traces[0].TotalSpans != 1 || traces[1].TotalSpans != 2 {
		t.Errorf("unexpected span counts: %d, %d", traces[0].TotalSpans, traces[1].TotalSpans)
	}
}
