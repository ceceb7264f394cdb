package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobert/traceview/internal/model"
)

func TestLayoutSpanWidthFloor(t *testing.T) {
	cfg := DefaultViewerConfig()
	span := model.Span{StartTime: 50, Duration: 0}
	l := LayoutSpan(&span, Viewport{Start: 0, End: 100}, 0, 1000, 60, 0, &cfg)

	assert.Equal(t, 500.0, l.StartX)
	assert.Equal(t, 0.0, l.EndX-l.StartX)
	assert.Equal(t, 8.0, l.Width)
}

func TestLayoutSpanIndentAndRow(t *testing.T) {
	cfg := DefaultViewerConfig()
	span := model.Span{StartTime: 20, Duration: 30, Depth: 3}
	l := LayoutSpan(&span, Viewport{Start: 0, End: 100}, 10, 1000, 60, 2, &cfg)

	assert.Equal(t, 210.0, l.StartX)
	assert.Equal(t, 300.0, l.Width)
	assert.Equal(t, 60.0, l.Indent)
	assert.Equal(t, 110.0, l.Y)

	bar := l.Bar(cfg.SpanHeight)
	assert.Equal(t, Rect{Min: Point{X: 270, Y: 100}, Max: Point{X: 570, Y: 120}}, bar)
}

func layoutTrace() *model.Trace {
	return &model.Trace{
		TotalDuration: 1000,
		Spans: []model.Span{
			{SpanID: "0", ServiceName: "api", OperationName: "a", StartTime: 0, Duration: 1000},
			{SpanID: "1", ServiceName: "db", OperationName: "b", StartTime: 100, Duration: 50},
			{SpanID: "2", ServiceName: "api", OperationName: "c", StartTime: 300, Duration: 100},
			{SpanID: "3", ServiceName: "cache", OperationName: "d", StartTime: 800, Duration: 100},
		},
	}
}

func TestLayoutRowsSkipCulledAndFiltered(t *testing.T) {
	cfg := DefaultViewerConfig()
	cfg.MaxDurationFilter = 2000
	tr := layoutTrace()

	// span 1 ends before the view, span 3 starts after it
	view := Viewport{Start: 200, End: 700}
	layouts := Layout(tr, view, &cfg, RectXYWH(0, 0, 1000, 400))
	require.Len(t, layouts, 2)
	assert.Equal(t, 0, layouts[0].Index)
	assert.Equal(t, 2, layouts[1].Index)
	assert.Equal(t, 1, layouts[1].Row)
	assert.Equal(t, 85.0, layouts[1].Y)

	// filtered spans take no row either
	cfg.ServiceFilter = "db"
	layouts = Layout(tr, Viewport{Start: 0, End: 1000}, &cfg, RectXYWH(0, 0, 1000, 400))
	require.Len(t, layouts, 1)
	assert.Equal(t, 1, layouts[0].Index)
	assert.Equal(t, 0, layouts[0].Row)
}

func TestLayoutStopsAtCanvasBottom(t *testing.T) {
	cfg := DefaultViewerConfig()
	cfg.MaxDurationFilter = 2000
	// content starts at 60, margin 30: rows at 60 and 85 fit in 130px, 110 does not
	layouts := Layout(layoutTrace(), Viewport{Start: 0, End: 1000}, &cfg, RectXYWH(0, 0, 1000, 130))
	assert.Len(t, layouts, 2)
}

func TestHitTestFirstWins(t *testing.T) {
	layouts := []SpanLayout{
		{Index: 4, StartX: 0, Width: 100, Y: 60},
		{Index: 7, StartX: 50, Width: 100, Y: 60},
	}
	hit, ok := HitTest(layouts, Point{X: 75, Y: 60}, 20)
	require.True(t, ok)
	assert.Equal(t, 4, hit.Index)

	_, ok = HitTest(layouts, Point{X: 75, Y: 90}, 20)
	assert.False(t, ok)
}

func TestTruncateText(t *testing.T) {
	measure := func(s string) float64 { return 7 * float64(len([]rune(s))) }

	tests := []struct {
		name  string
		text  string
		width float64
		want  string
	}{
		{"fits", "handle", 42, "handle"},
		{"trimmed", "authenticate", 50, "auth..."},
		{"runes", "héllo wörld", 56, "héllo..."},
		{"nothing fits", "abcdef", 10, "..."},
		{"empty", "", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateText(tt.text, tt.width, measure))
		})
	}
}

func TestMinimapLayout(t *testing.T) {
	cfg := DefaultViewerConfig()
	cfg.MaxDurationFilter = 2000
	cfg.OperationFilter = "a"
	tr := layoutTrace()
	tr.Spans[2].OperationName = "ca"
	tr.Spans[2].Depth = 2
	cache := NewColorCache()
	cache.Set("api", RGBA(10, 200, 100, 255))

	area := RectXYWH(0, 400, 1000, 80)
	spans := MinimapLayout(tr, &cfg, cache, area)
	require.Len(t, spans, 2)

	assert.Equal(t, 0, spans[0].Index)
	assert.Equal(t, Rect{Min: Point{X: 0, Y: 405}, Max: Point{X: 1000, Y: 408}}, spans[0].Rect)
	assert.Equal(t, RGBA(100, 255, 140, 255), spans[0].Color)

	// second passing span sits in the next row, indented 2px per level
	assert.Equal(t, 2, spans[1].Index)
	assert.Equal(t, Rect{Min: Point{X: 304, Y: 410}, Max: Point{X: 404, Y: 413}}, spans[1].Rect)

	win := MinimapWindow(tr, Viewport{Start: 250, End: 500}, area)
	assert.Equal(t, Rect{Min: Point{X: 250, Y: 400}, Max: Point{X: 500, Y: 480}}, win)
}

func TestSplitWindow(t *testing.T) {
	cfg := DefaultViewerConfig()
	p := SplitWindow(RectXYWH(0, 0, 1200, 600), true, &cfg)

	assert.Equal(t, RectXYWH(0, 0, 800, 480), p.Timeline)
	assert.Equal(t, RectXYWH(0, 480, 800, 120), p.Minimap)
	assert.Equal(t, RectXYWH(800, 0, 400, 600), p.Details)

	p = SplitWindow(RectXYWH(0, 0, 1200, 600), false, &cfg)
	assert.True(t, p.Minimap.Empty())
	assert.Equal(t, 600.0, p.Timeline.Height())

	// Too short for a usable minimap strip.
	p = SplitWindow(RectXYWH(0, 0, 400, 90), true, &cfg)
	assert.True(t, p.Minimap.Empty())
	assert.Equal(t, 160.0, p.Details.Width())
}
