package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// SendDemoCommand returns the CLI command definition for the 'send-demo'
// subcommand, which exports a small multi-service trace to a running
// OTLP receiver.
func SendDemoCommand() *cli.Command {
	return &cli.Command{
		Name:      "send-demo",
		Usage:     "Send a demo trace to an OTLP gRPC endpoint",
		ArgsUsage: "<endpoint>",
		Description: `Exports one checkout trace spanning four services, handy for trying out
'traceview serve' or 'traceview mcp' in live mode.

Example: traceview send-demo 127.0.0.1:38279`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			endpoint := cmd.Args().First()
			if endpoint == "" {
				return fmt.Errorf("endpoint is required, e.g. traceview send-demo 127.0.0.1:4317")
			}
			return sendDemo(ctx, endpoint, time.Now())
		},
	}
}

func sendDemo(ctx context.Context, endpoint string, now time.Time) error {
	fmt.Printf("📡 Connecting to OTLP endpoint: %s\n", endpoint)

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create grpc client: %w", err)
	}
	defer conn.Close()

	req, traceID := demoRequest(now)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	fmt.Printf("🚀 Sending trace with %d spans...\n", countSpans(req))
	client := collectortrace.NewTraceServiceClient(conn)
	if _, err := client.Export(ctx, req); err != nil {
		return fmt.Errorf("failed to export spans: %w", err)
	}

	fmt.Println("✅ Trace exported successfully!")
	fmt.Printf("📊 Trace ID: %s\n", hex.EncodeToString(traceID))
	return nil
}

// demoSpan describes one span of the demo trace, offsets relative to now.
type demoSpan struct {
	service string
	name    string
	parent  int // index into the demo spans, -1 for the root
	start   time.Duration
	end     time.Duration
	kind    tracepb.Span_SpanKind
	attrs   map[string]string
	failed  bool
}

var demoSpans = []demoSpan{
	{service: "frontend", name: "POST /checkout", parent: -1, end: 180 * time.Millisecond,
		kind: tracepb.Span_SPAN_KIND_SERVER, attrs: map[string]string{"http.method": "POST", "http.route": "/checkout"}},
	{service: "checkout", name: "PlaceOrder", parent: 0, start: 5 * time.Millisecond, end: 170 * time.Millisecond,
		kind: tracepb.Span_SPAN_KIND_SERVER},
	{service: "inventory", name: "ReserveItems", parent: 1, start: 10 * time.Millisecond, end: 45 * time.Millisecond,
		kind: tracepb.Span_SPAN_KIND_SERVER, attrs: map[string]string{"items": "3"}},
	{service: "postgres", name: "UPDATE stock", parent: 2, start: 15 * time.Millisecond, end: 40 * time.Millisecond,
		kind: tracepb.Span_SPAN_KIND_CLIENT, attrs: map[string]string{"db.system": "postgresql"}},
	{service: "payments", name: "Charge", parent: 1, start: 50 * time.Millisecond, end: 150 * time.Millisecond,
		kind: tracepb.Span_SPAN_KIND_SERVER, attrs: map[string]string{"card": "visa"}},
	{service: "payments", name: "fraud-check", parent: 4, start: 55 * time.Millisecond, end: 80 * time.Millisecond,
		kind: tracepb.Span_SPAN_KIND_INTERNAL, failed: true},
	{service: "postgres", name: "INSERT payment", parent: 4, start: 90 * time.Millisecond, end: 140 * time.Millisecond,
		kind: tracepb.Span_SPAN_KIND_CLIENT, attrs: map[string]string{"db.system": "postgresql"}},
}

// demoRequest builds the export request for the demo trace, grouping
// spans into one ResourceSpans per service as an SDK would.
func demoRequest(now time.Time) (*collectortrace.ExportTraceServiceRequest, []byte) {
	traceID := uuid.New()
	spanIDs := make([][]byte, len(demoSpans))
	for i := range demoSpans {
		id := uuid.New()
		spanIDs[i] = id[:8]
	}

	byService := make(map[string]*tracepb.ResourceSpans)
	var order []*tracepb.ResourceSpans
	for i, d := range demoSpans {
		span := &tracepb.Span{
			TraceId:           traceID[:],
			SpanId:            spanIDs[i],
			Name:              d.name,
			Kind:              d.kind,
			StartTimeUnixNano: uint64(now.Add(d.start).UnixNano()),
			EndTimeUnixNano:   uint64(now.Add(d.end).UnixNano()),
			Status:            &tracepb.Status{Code: tracepb.Status_STATUS_CODE_OK},
		}
		if d.parent >= 0 {
			span.ParentSpanId = spanIDs[d.parent]
		}
		for k, v := range d.attrs {
			span.Attributes = append(span.Attributes, stringKV(k, v))
		}
		if d.failed {
			span.Status = &tracepb.Status{Code: tracepb.Status_STATUS_CODE_ERROR, Message: "card declined"}
		}

		rs, ok := byService[d.service]
		if !ok {
			rs = &tracepb.ResourceSpans{
				Resource: &resourcepb.Resource{Attributes: []*commonpb.KeyValue{
					stringKV("service.name", d.service),
					stringKV("deployment.environment", "development"),
				}},
				ScopeSpans: []*tracepb.ScopeSpans{{Scope: &commonpb.InstrumentationScope{Name: "traceview-demo"}}},
			}
			byService[d.service] = rs
			order = append(order, rs)
		}
		rs.ScopeSpans[0].Spans = append(rs.ScopeSpans[0].Spans, span)
	}

	return &collectortrace.ExportTraceServiceRequest{ResourceSpans: order}, traceID[:]
}

func stringKV(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}

func countSpans(req *collectortrace.ExportTraceServiceRequest) int {
	n := 0
	for _, rs := range req.ResourceSpans {
		for _, ss := range rs.ScopeSpans {
			n += len(ss.Spans)
		}
	}
	return n
}
