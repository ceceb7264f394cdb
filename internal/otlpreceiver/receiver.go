package otlpreceiver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
)

// SpanReceiver stores spans handed over by the gRPC service.
// Export may call it concurrently.
type SpanReceiver interface {
	ReceiveSpans(ctx context.Context, spans []*tracepb.ResourceSpans) error
}

// DefaultMaxRecvMsgSize matches the collector's default OTLP limit.
const DefaultMaxRecvMsgSize = 16 << 20

// Config holds configuration for the OTLP trace receiver.
type Config struct {
	Host string // e.g., "127.0.0.1"
	Port int    // 0 for an ephemeral port

	// MaxRecvMsgSize caps a single export request; 0 means DefaultMaxRecvMsgSize.
	MaxRecvMsgSize int

	// OnExport is called after each accepted request with its span count.
	// The viewer hosts use it to schedule a refresh.
	OnExport func(spans int)
}

// Stats counts accepted export traffic.
type Stats struct {
	Requests uint64 `json:"requests"`
	Spans    uint64 `json:"spans"`
}

// Server is an OTLP/gRPC endpoint that accepts trace exports and feeds
// them to a SpanReceiver.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	service    *traceService

	stopOnce sync.Once
	stopChan chan struct{}
	stopDone chan struct{}
}

// NewServer binds the listener right away so Endpoint is valid before
// Start is called.
func NewServer(cfg Config, receiver SpanReceiver) (*Server, error) {
	if receiver == nil {
		return nil, fmt.Errorf("span receiver cannot be nil")
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	maxMsg := cfg.MaxRecvMsgSize
	if maxMsg <= 0 {
		maxMsg = DefaultMaxRecvMsgSize
	}

	s := &Server{
		listener:   listener,
		grpcServer: grpc.NewServer(grpc.MaxRecvMsgSize(maxMsg)),
		service:    &traceService{receiver: receiver, onExport: cfg.OnExport},
		stopChan:   make(chan struct{}),
		stopDone:   make(chan struct{}, 1),
	}
	collectortrace.RegisterTraceServiceServer(s.grpcServer, s.service)

	return s, nil
}

// Start serves until Stop is called or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopChan:
		}
	}()

	err := s.grpcServer.Serve(s.listener)
	s.stopDone <- struct{}{}
	return err
}

// Stop gracefully shuts the server down. Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.grpcServer.GracefulStop()
		close(s.stopChan)
	})
}

// StopWait stops the server and waits for Start to return.
func (s *Server) StopWait() {
	s.Stop()
	<-s.stopDone
}

// Endpoint returns the bound "host:port", useful with ephemeral ports.
func (s *Server) Endpoint() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stats returns the accepted request and span totals.
func (s *Server) Stats() Stats {
	return Stats{
		Requests: s.service.requests.Load(),
		Spans:    s.service.spans.Load(),
	}
}

type traceService struct {
	collectortrace.UnimplementedTraceServiceServer
	receiver SpanReceiver
	onExport func(int)

	requests atomic.Uint64
	spans    atomic.Uint64
}

func (t *traceService) Export(
	ctx context.Context,
	req *collectortrace.ExportTraceServiceRequest,
) (*collectortrace.ExportTraceServiceResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	if err := t.receiver.ReceiveSpans(ctx, req.ResourceSpans); err != nil {
		return nil, fmt.Errorf("failed to receive spans: %w", err)
	}

	n := countSpans(req.ResourceSpans)
	t.requests.Add(1)
	t.spans.Add(uint64(n))
	if t.onExport != nil {
		t.onExport(n)
	}

	return &collectortrace.ExportTraceServiceResponse{}, nil
}

func countSpans(resourceSpans []*tracepb.ResourceSpans) int {
	n := 0
	for _, rs := range resourceSpans {
		for _, ss := range rs.GetScopeSpans() {
			n += len(ss.GetSpans())
		}
	}
	return n
}
