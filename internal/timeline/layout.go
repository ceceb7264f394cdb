package timeline

import "github.com/tobert/traceview/internal/model"

// SpanLayout is the on-screen placement of one span in the timeline.
// StartX and EndX are the raw projected edges; Indent is applied only
// when building the bar rectangle.
type SpanLayout struct {
	Index  int // position in Trace.Spans
	Row    int // visual row among drawn spans
	StartX float64
	EndX   float64
	Width  float64
	Indent float64
	Y      float64 // vertical centre of the bar
}

// Bar is the filled rectangle of the span.
func (l SpanLayout) Bar(spanHeight float64) Rect {
	x := l.StartX + l.Indent
	return Rect{
		Min: Point{X: x, Y: l.Y - spanHeight/2},
		Max: Point{X: x + l.Width, Y: l.Y + spanHeight/2},
	}
}

// LayoutSpan projects span into a canvas starting at canvasX for the
// given visual row. Width never drops below MinSpanWidth.
func LayoutSpan(span *model.Span, view Viewport, canvasX, canvasWidth, rowY float64, row int, cfg *ViewerConfig) SpanLayout {
	l := SpanLayout{
		Row:    row,
		Y:      rowY + float64(row)*cfg.SpanSpacing,
		StartX: canvasX + TimeToPixel(span.StartTime, view.Start, view.End, canvasWidth),
		EndX:   canvasX + TimeToPixel(span.End(), view.Start, view.End, canvasWidth),
		Indent: float64(span.Depth) * cfg.DepthIndentation,
	}
	l.Width = max(cfg.MinSpanWidth, l.EndX-l.StartX)
	return l
}

// Layout places every drawable span of trace in canvas. Spans outside the
// view or failing the filter take no row; layout stops at the first row
// that would overflow the canvas content area.
func Layout(trace *model.Trace, view Viewport, cfg *ViewerConfig, canvas Rect) []SpanLayout {
	rowY := canvas.Min.Y + cfg.TimelineContentOffset
	maxY := canvas.Max.Y - cfg.TimelineContentMargin

	var out []SpanLayout
	row := 0
	for i := range trace.Spans {
		span := &trace.Spans[i]
		if !view.Contains(span.StartTime, span.Duration) {
			continue
		}
		if !Passes(span, cfg) {
			continue
		}
		l := LayoutSpan(span, view, canvas.Min.X, canvas.Width(), rowY, row, cfg)
		if l.Y+cfg.SpanHeight/2 > maxY {
			break
		}
		l.Index = i
		out = append(out, l)
		row++
	}
	return out
}

// HitTest returns the first layout whose bar contains p, in draw order.
func HitTest(layouts []SpanLayout, p Point, spanHeight float64) (SpanLayout, bool) {
	for _, l := range layouts {
		if l.Bar(spanHeight).Contains(p) {
			return l, true
		}
	}
	return SpanLayout{}, false
}

// TruncateText trims text from the end until text+"..." fits in width.
// Text that already fits is returned unchanged.
func TruncateText(text string, width float64, measure func(string) float64) string {
	if measure(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && measure(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

// MinimapSpan is one span bar in the minimap.
type MinimapSpan struct {
	Index int
	Rect  Rect
	Color Color
}

// MinimapLayout projects the filter-passing spans of trace onto area over
// the whole trace duration, regardless of the current view.
func MinimapLayout(trace *model.Trace, cfg *ViewerConfig, colors *ColorCache, area Rect) []MinimapSpan {
	var out []MinimapSpan
	row := 0
	w := area.Width()
	for i := range trace.Spans {
		span := &trace.Spans[i]
		if !Passes(span, cfg) {
			continue
		}
		x := area.Min.X + TimeRatio(span.StartTime, 0, trace.TotalDuration)*w
		width := max(cfg.MinimapMinWidth, TimeRatio(span.Duration, 0, trace.TotalDuration)*w)
		indent := float64(span.Depth) * cfg.MinimapDepthIndent
		y := area.Min.Y + cfg.MinimapTopMargin + float64(row)*(cfg.MinimapSpanHeight+cfg.MinimapRowGap)
		if y+cfg.MinimapSpanHeight > area.Max.Y {
			break
		}
		out = append(out, MinimapSpan{
			Index: i,
			Rect: Rect{
				Min: Point{X: x + indent, Y: y},
				Max: Point{X: x + width + indent, Y: y + cfg.MinimapSpanHeight},
			},
			Color: Brighten(colors.Get(span.ServiceName), cfg.MinimapBrightness),
		})
		row++
	}
	return out
}

// MinimapWindow is the overlay marking the current view inside area.
func MinimapWindow(trace *model.Trace, view Viewport, area Rect) Rect {
	w := area.Width()
	x := area.Min.X + TimeRatio(view.Start, 0, trace.TotalDuration)*w
	width := TimeRatio(view.Range(), 0, trace.TotalDuration) * w
	return Rect{
		Min: Point{X: x, Y: area.Min.Y},
		Max: Point{X: x + width, Y: area.Max.Y},
	}
}

// Panes are the three regions of a docked viewer window.
type Panes struct {
	Timeline Rect
	Minimap  Rect
	Details  Rect
}

// SplitWindow docks the details panel on the right third of bounds and,
// when showMinimap is set, a minimap strip under the timeline canvas.
func SplitWindow(bounds Rect, showMinimap bool, cfg *ViewerConfig) Panes {
	detailsW := min(max(bounds.Width()/3, 160), bounds.Width()/2)
	left := Rect{Min: bounds.Min, Max: Point{X: bounds.Max.X - detailsW, Y: bounds.Max.Y}}
	p := Panes{
		Timeline: left,
		Details:  Rect{Min: Point{X: left.Max.X, Y: bounds.Min.Y}, Max: bounds.Max},
	}
	if showMinimap {
		h := max(bounds.Height()/5, cfg.MinimapDockMinHeight+1)
		if h < bounds.Height()/2 {
			p.Timeline.Max.Y = left.Max.Y - h
			p.Minimap = Rect{Min: Point{X: left.Min.X, Y: p.Timeline.Max.Y}, Max: left.Max}
		}
	}
	return p
}
