package storage

import (
	"context"
	"sync"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/tobert/traceview/internal/model"
)

// SpanStore buffers the most recent spans received over OTLP and groups
// them into viewer traces on demand. It implements
// otlpreceiver.SpanReceiver.
type SpanStore struct {
	spans *RingBuffer[model.SpanRecord]

	mu         sync.RWMutex
	traceIndex map[string]int // trace id -> buffered span count
}

// NewSpanStore creates a store holding up to capacity spans.
func NewSpanStore(capacity int) *SpanStore {
	return &SpanStore{
		spans:      NewRingBuffer[model.SpanRecord](capacity),
		traceIndex: make(map[string]int),
	}
}

// ReceiveSpans stores every span of the request.
func (s *SpanStore) ReceiveSpans(ctx context.Context, resourceSpans []*tracepb.ResourceSpans) error {
	for _, rec := range SpanRecords(resourceSpans) {
		s.Add(rec)
	}
	return nil
}

// Add stores one span record, evicting the oldest when full.
func (s *SpanStore) Add(rec model.SpanRecord) {
	old, evicted := s.spans.Add(rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.traceIndex[rec.TraceID]++
	if evicted {
		if s.traceIndex[old.TraceID]--; s.traceIndex[old.TraceID] <= 0 {
			delete(s.traceIndex, old.TraceID)
		}
	}
}

// Trace returns the spans of one trace as a viewer trace.
func (s *SpanStore) Trace(traceID string) (model.Trace, bool) {
	var recs []model.SpanRecord
	for _, r := range s.spans.All() {
		if r.TraceID == traceID {
			recs = append(recs, r)
		}
	}
	if len(recs) == 0 {
		return model.Trace{}, false
	}
	return model.BuildTraces(recs)[0], true
}

// Traces groups every buffered span into viewer traces, earliest first.
func (s *SpanStore) Traces() []model.Trace {
	return model.BuildTraces(s.spans.All())
}

// Version changes whenever spans are added or the store is cleared.
func (s *SpanStore) Version() uint64 {
	return s.spans.Added()
}

// Stats returns current storage statistics.
func (s *SpanStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StoreStats{
		SpanCount:  s.spans.Len(),
		Capacity:   s.spans.Cap(),
		TraceCount: len(s.traceIndex),
	}
}

// Clear drops every span.
func (s *SpanStore) Clear() {
	s.spans.Reset()
	s.mu.Lock()
	s.traceIndex = make(map[string]int)
	s.mu.Unlock()
}

// StoreStats describes buffer occupancy.
type StoreStats struct {
	SpanCount  int `json:"span_count"`
	Capacity   int `json:"capacity"`
	TraceCount int `json:"trace_count"`
}
