// Package webui serves the timeline viewer to browsers. The page is a
// thin canvas client: it forwards input over a WebSocket and replays the
// draw operations of each frame rendered on the server.
package webui

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tobert/traceview/internal/model"
	"github.com/tobert/traceview/internal/timeline"
)

//go:embed static/index.html
var staticFiles embed.FS

// Source supplies the traces every session views. storage.TraceFile and
// storage.SpanStore implement it.
type Source interface {
	Version() uint64
	Traces() []model.Trace
}

// Config holds web UI options.
type Config struct {
	Viewer timeline.ViewerConfig
	// Poll is how often sessions check the source for new traces.
	Poll    time.Duration
	Verbose bool
}

// Server serves the embedded page, the WebSocket frame stream, a small
// JSON API and Prometheus metrics.
type Server struct {
	source  Source
	cfg     Config
	started time.Time

	registry *prometheus.Registry
	metrics  *metrics

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates a web UI server over source.
func New(source Source, cfg Config) *Server {
	if cfg.Poll <= 0 {
		cfg.Poll = 500 * time.Millisecond
	}
	reg := prometheus.NewRegistry()
	return &Server{
		source:   source,
		cfg:      cfg,
		started:  time.Now(),
		registry: reg,
		metrics:  newMetrics(reg),
		sessions: make(map[string]*session),
	}
}

// Registry exposes the metrics registry so other components can add
// their collectors.
func (s *Server) Registry() *prometheus.Registry { return s.registry }

// RegisterRoutes attaches web UI routes to an existing ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ui/", s.handleUI)
	mux.HandleFunc("GET /ui", s.handleUIRedirect)
	mux.HandleFunc("GET /api/traces", s.handleTraces)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

// ListenAndServe runs a standalone HTTP server until ctx is cancelled.
// Extra handlers, such as an MCP endpoint, can be mounted through mount.
func (s *Server) ListenAndServe(ctx context.Context, addr string, mount ...func(*http.ServeMux)) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	for _, m := range mount {
		m(mux)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	log.Printf("🌐 Web UI at http://%s/ui/\n", ln.Addr())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleUIRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/ui/", http.StatusMovedPermanently)
}

func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "UI not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// traceListing is one entry of /api/traces.
type traceListing struct {
	Index         int      `json:"index"`
	TraceID       string   `json:"trace_id"`
	Name          string   `json:"name"`
	Spans         int      `json:"spans"`
	DurationNanos float64  `json:"duration_ns"`
	Services      []string `json:"services"`
}

func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	traces := s.source.Traces()
	out := make([]traceListing, 0, len(traces))
	for i := range traces {
		t := &traces[i]
		out = append(out, traceListing{
			Index:         i,
			TraceID:       t.TraceID,
			Name:          t.TraceName,
			Spans:         t.TotalSpans,
			DurationNanos: t.TotalDuration,
			Services:      t.Services(),
		})
	}
	writeJSON(w, out)
}

type statusResponse struct {
	Version  uint64  `json:"version"`
	Traces   int     `json:"traces"`
	Sessions int     `json:"sessions"`
	Uptime   float64 `json:"uptime_seconds"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statusResponse{
		Version:  s.source.Version(),
		Traces:   len(s.source.Traces()),
		Sessions: s.SessionCount(),
		Uptime:   time.Since(s.started).Seconds(),
	})
}

// SessionCount is the number of open browser sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) openSession() *session {
	sess := newSession(s.cfg.Viewer)
	sess.refresh(s.source)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.metrics.sessions.Inc()
	if s.cfg.Verbose {
		log.Printf("🌐 webui: session %s opened\n", sess.id)
	}
	return sess
}

func (s *Server) closeSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	s.metrics.sessions.Dec()
	if s.cfg.Verbose {
		log.Printf("🌐 webui: session %s closed\n", id)
	}
}

// handleWebSocket owns one session for the lifetime of the connection.
// Every client message is applied and answered with a frame; source
// changes push a frame on their own.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow any origin for localhost dev
	})
	if err != nil {
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(8 << 20) // load_json carries whole documents

	ctx := r.Context()
	sess := s.openSession()
	defer s.closeSession(sess.id)

	msgCh := make(chan clientMsg, 16)
	go func() {
		defer close(msgCh)
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg clientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				if s.cfg.Verbose {
					log.Printf("⚠️  webui: bad message from %s: %v\n", sess.id, err)
				}
				continue
			}
			select {
			case msgCh <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.sendFrame(ctx, conn, sess)

	poll := time.NewTicker(s.cfg.Poll)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return

		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			s.metrics.messages.WithLabelValues(msg.Type).Inc()
			if sess.apply(msg) {
				s.sendFrame(ctx, conn, sess)
			}

		case <-poll.C:
			if sess.refresh(s.source) {
				s.metrics.reloads.Inc()
				s.sendFrame(ctx, conn, sess)
			}
		}
	}
}

func (s *Server) sendFrame(ctx context.Context, conn *websocket.Conn, sess *session) {
	frame := sess.render()
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("webui: failed to marshal frame: %v", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		// Connection closed; the main loop will handle cleanup.
		return
	}
	s.metrics.frames.Inc()
	s.metrics.frameOps.Observe(float64(len(frame.Ops)))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("webui: failed to write JSON: %v", err)
	}
}
