package viz

import (
	"github.com/tobert/traceview/internal/model"
	"github.com/tobert/traceview/internal/timeline"
)

// Options controls waterfall rendering.
type Options struct {
	// Width is the total line width; 0 means 80.
	Width int
	// Filter selects the spans to draw; nil draws every span.
	Filter func(*model.Span) bool
	// View limits the bar scale to a time window. An invalid view means
	// the whole trace.
	View timeline.Viewport
	// Unit formats durations; the zero value is nanoseconds.
	Unit timeline.TimeUnit
	// MaxSpans caps the rows drawn; 0 means 50.
	MaxSpans int
}

// ServiceStats describes one service for the service summary bar chart.
type ServiceStats struct {
	Name       string
	SpanCount  int
	ErrorCount int
}

// isError reports whether the span carries an OTLP error status.
func isError(s *model.Span) bool {
	for _, t := range s.Tags {
		if t.Key == "status.code" && (t.Value == "ERROR" || t.Value == "STATUS_CODE_ERROR") {
			return true
		}
		if t.Key == "error" && t.Value == "true" {
			return true
		}
	}
	return false
}
