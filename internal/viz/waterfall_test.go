package viz

import (
	"strings"
	"testing"

	"github.com/tobert/traceview/internal/model"
	"github.com/tobert/traceview/internal/timeline"
)

func testTrace() *model.Trace {
	spans := []model.Span{
		{SpanID: "r", OperationName: "GET /users", ServiceName: "api", StartTime: 0, Duration: 500_000_000, Depth: 0},
		{SpanID: "c", OperationName: "get", ServiceName: "cache", StartTime: 5_000_000, Duration: 10_000_000, Depth: 1},
		{SpanID: "q", OperationName: "query", ServiceName: "db", StartTime: 10_000_000, Duration: 90_000_000, Depth: 1},
		{SpanID: "x", OperationName: "exec", ServiceName: "db", StartTime: 20_000_000, Duration: 50_000_000, Depth: 2,
			Tags: []model.Tag{{Key: "status.code", Value: "ERROR"}}},
	}
	return &model.Trace{TraceID: "t1", TraceName: "GET /users", Spans: spans, TotalSpans: 4, TotalDuration: 500_000_000}
}

func TestWaterfall_Empty(t *testing.T) {
	if got := Waterfall(nil, Options{}); got != "" {
		t.Errorf("expected empty string for nil trace, got %q", got)
	}
	if got := Waterfall(&model.Trace{}, Options{}); got != "" {
		t.Errorf("expected empty string for empty trace, got %q", got)
	}
}

func TestWaterfall_Tree(t *testing.T) {
	result := Waterfall(testTrace(), Options{Width: 80, Unit: timeline.Milliseconds})
	lines := strings.Split(strings.TrimRight(result, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header + 4 rows, got %d:\n%s", len(lines), result)
	}
	if !strings.HasPrefix(lines[0], "Trace GET /users (4 of 4 spans, 500.0 ms)") {
		t.Errorf("unexpected header %q", lines[0])
	}
	wantPrefixes := []string{" api.GET /users", " ├─ cache.get", " └─ db.query", "   └─ db.exec"}
	for i, want := range wantPrefixes {
		if !strings.HasPrefix(lines[i+1], want) {
			t.Errorf("row %d: expected prefix %q, got %q", i, want, lines[i+1])
		}
	}
	if !strings.Contains(lines[4], "!! ERR") {
		t.Errorf("expected error marker on exec row, got %q", lines[4])
	}
	if !strings.Contains(lines[1], "[####################]") {
		t.Errorf("root span should fill the bar, got %q", lines[1])
	}
}

func TestWaterfall_Filter(t *testing.T) {
	result := Waterfall(testTrace(), Options{
		Filter: func(s *model.Span) bool { return s.ServiceName == "db" },
	})
	if !strings.Contains(result, "(2 of 4 spans") {
		t.Errorf("expected filtered count, got:\n%s", result)
	}
	if strings.Contains(result, "cache.get") {
		t.Errorf("filtered span rendered:\n%s", result)
	}

	none := Waterfall(testTrace(), Options{Filter: func(*model.Span) bool { return false }})
	if !strings.Contains(none, "no spans match") {
		t.Errorf("expected no-match notice, got:\n%s", none)
	}
}

func TestWaterfall_MaxSpans(t *testing.T) {
	result := Waterfall(testTrace(), Options{MaxSpans: 2})
	if !strings.Contains(result, "... +2 more spans") {
		t.Errorf("expected overflow line, got:\n%s", result)
	}
}

func TestWaterfall_LongLabelTruncated(t *testing.T) {
	tr := &model.Trace{TraceName: "t", TotalSpans: 1, TotalDuration: 10, Spans: []model.Span{
		{OperationName: strings.Repeat("x", 200), ServiceName: "svc", Duration: 10},
	}}
	for _, line := range strings.Split(strings.TrimRight(Waterfall(tr, Options{Width: 60}), "\n"), "\n")[1:] {
		if n := len([]rune(line)); n > 60 {
			t.Errorf("line is %d columns wide: %q", n, line)
		}
	}
}

func TestBuildBar(t *testing.T) {
	view := timeline.Viewport{Start: 0, End: 100}
	tests := []struct {
		name       string
		start, end float64
		want       string
	}{
		{"full", 0, 100, "##########"},
		{"first half", 0, 50, "#####....."},
		{"tiny span still visible", 50, 50, ".....#...."},
		{"before window", -20, -10, "<........."},
		{"after window", 120, 130, ".........>"},
		{"clipped", -50, 20, "##........"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildBar(tt.start, tt.end, view, 10); got != tt.want {
				t.Errorf("buildBar(%v, %v) = %q, want %q", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestWaterfall_ZoomedView(t *testing.T) {
	result := Waterfall(testTrace(), Options{View: timeline.Viewport{Start: 0, End: 100_000_000}})
	if !strings.Contains(result, "[####################]") {
		t.Errorf("root should cover the zoomed window, got:\n%s", result)
	}
}
