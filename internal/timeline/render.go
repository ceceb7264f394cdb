package timeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/tobert/traceview/internal/model"
)

// Render runs one frame: input is applied first, then the timeline,
// minimap and details panel are laid out from the resulting state and
// drawn onto f.Surface.
func (v *Viewer) Render(f Frame) {
	s := f.Surface
	canvas := f.Timeline
	s.FillRect(canvas, v.colors.PanelBg)

	trace := v.current()
	if trace == nil {
		s.Text(Point{X: canvas.Min.X + v.cfg.SpanLabelMargin, Y: canvas.Min.Y + v.cfg.GridTextYOffset},
			v.colors.PanelText, "No trace loaded")
		v.drawDetails(f)
		return
	}

	if f.Input != nil {
		v.handleMouse(f.Input, canvas, trace)
		v.handleMinimapMouse(f.Input, f.Minimap, trace)
		v.handleKeyboard(f.Input)
	}

	layouts := Layout(trace, v.view, &v.cfg, canvas)

	v.drawHeader(s, canvas, trace)
	v.drawGrid(s, canvas)
	v.drawSpans(s, f.Input, canvas, trace, layouts)
	if v.zoom.active {
		s.StrokeRect(normalizeRect(v.zoom.start, v.zoom.end), v.colors.ZoomSelection, 2)
	}
	v.drawMinimap(s, f.Minimap, trace)
	v.drawDetails(f)
}

func (v *Viewer) handleMouse(in Input, canvas Rect, trace *model.Trace) {
	mouse := in.MousePos()
	hovered := canvas.Contains(mouse)

	if wheel := in.MouseWheel(); hovered && wheel != 0 {
		v.ScrollZoom(TimeRatio(mouse.X-canvas.Min.X, 0, canvas.Width()), wheel)
	}

	clicked := hovered && in.MouseClicked(MousePrimary)
	if clicked {
		v.zoom = zoomSelection{active: true, start: mouse, end: mouse}
	}
	if v.zoom.active {
		v.zoom.end = mouse
		if in.MouseReleased(MousePrimary) {
			v.ZoomToPixels(v.zoom.start.X, v.zoom.end.X, canvas)
			v.zoom.active = false
		}
	}

	if clicked {
		layouts := Layout(trace, v.view, &v.cfg, canvas)
		if hit, ok := HitTest(layouts, mouse, v.cfg.SpanHeight); ok {
			v.setSelection(hit.Index)
		} else {
			v.setSelection(-1)
		}
	}
}

// handleMinimapMouse recentres the view on the time under a click in the
// minimap.
func (v *Viewer) handleMinimapMouse(in Input, area Rect, trace *model.Trace) {
	if !v.minimapUsable(area) || !in.MouseClicked(MousePrimary) {
		return
	}
	mouse := in.MousePos()
	if !area.Contains(mouse) {
		return
	}
	t := TimeRatio(mouse.X-area.Min.X, 0, area.Width()) * trace.TotalDuration
	v.apply(v.view.CenterOn(t, trace.TotalDuration))
}

func (v *Viewer) handleKeyboard(in Input) {
	if !in.Focused() {
		return
	}
	if in.KeyPressed(KeyEscape) {
		v.setSelection(-1)
		return
	}
	if in.KeyPressed(KeyLeft) {
		if in.CtrlHeld() {
			v.SelectPreviousSpan()
		} else {
			v.ScrollLeft()
		}
	}
	if in.KeyPressed(KeyRight) {
		if in.CtrlHeld() {
			v.SelectNextSpan()
		} else {
			v.ScrollRight()
		}
	}
	if in.KeyPressed(KeyUp) {
		v.SelectUpperSpan()
	}
	if in.KeyPressed(KeyDown) {
		v.SelectLowerSpan()
	}
}

func (v *Viewer) drawHeader(s Surface, canvas Rect, trace *model.Trace) {
	header := fmt.Sprintf("Trace: %s | Duration: %s | %d spans | View: %s - %s",
		trace.TraceName,
		FormatTime(trace.TotalDuration, v.timeUnit),
		trace.TotalSpans,
		FormatTime(v.view.Start, v.timeUnit),
		FormatTime(v.view.End, v.timeUnit))
	s.Text(Point{X: canvas.Min.X + v.cfg.SpanLabelMargin, Y: canvas.Min.Y + v.cfg.GridTextOffset},
		v.colors.PanelText, header)
}

func (v *Viewer) drawGrid(s Surface, canvas Rect) {
	ticks := v.cfg.TimelineTicks
	if ticks <= 0 {
		return
	}
	top := canvas.Min.Y + v.cfg.TimelineTopMargin
	bottom := canvas.Max.Y - v.cfg.TimelineBottomMargin
	for i := 0; i <= ticks; i++ {
		t := v.view.Start + float64(i)*v.view.Range()/float64(ticks)
		x := canvas.Min.X + float64(i)*canvas.Width()/float64(ticks)
		s.Line(Point{X: x, Y: top}, Point{X: x, Y: bottom}, v.colors.GridLines)
		s.Text(Point{X: x + v.cfg.GridTextOffset, Y: top + v.cfg.GridTextYOffset},
			v.colors.TimelineText, FormatTime(t, v.timeUnit))
	}
}

func (v *Viewer) drawSpans(s Surface, in Input, canvas Rect, trace *model.Trace, layouts []SpanLayout) {
	mouse := Point{X: math.Inf(-1), Y: math.Inf(-1)}
	if in != nil {
		mouse = in.MousePos()
	}

	for _, l := range layouts {
		span := &trace.Spans[l.Index]
		fill := v.cache.Get(span.ServiceName)
		if v.selectedSpan != -1 && v.selectedSpan != l.Index {
			fill = Darken(fill, dimFactor)
		}

		bar := l.Bar(v.cfg.SpanHeight)
		s.FillRect(bar, fill)
		s.StrokeRect(bar, v.colors.SpanBorder, 1)
		switch {
		case l.Index == v.selectedSpan:
			s.StrokeRect(bar, v.colors.SpanSelected, 2)
		case bar.Contains(mouse):
			s.StrokeRect(bar, v.colors.SpanBorder, 2)
		}

		if avail := l.Width - 2*v.cfg.TextOffsetX; avail > v.cfg.MinTextWidth {
			text := TruncateText(span.OperationName, avail, s.MeasureText)
			s.Text(Point{X: bar.Min.X + v.cfg.TextOffsetX, Y: l.Y - v.cfg.TextOffsetY},
				v.colors.SpanText, text)
		}

		s.Text(Point{X: canvas.Min.X + v.cfg.SpanLabelMargin, Y: l.Y - v.cfg.SpanLabelYOffset},
			v.colors.SpanLabel, span.ServiceName+"::"+span.OperationName)
	}
}

func (v *Viewer) minimapUsable(area Rect) bool {
	return v.showMinimap && area.Width() > v.cfg.MinimapDockMinWidth && area.Height() > v.cfg.MinimapDockMinHeight
}

func (v *Viewer) drawMinimap(s Surface, area Rect, trace *model.Trace) {
	if !v.showMinimap || area.Empty() {
		return
	}
	if !v.minimapUsable(area) {
		s.Text(area.Min, v.colors.PanelText, "Minimap requires more space")
		return
	}

	s.FillRect(area, v.colors.MinimapBg)
	s.StrokeRect(area, v.colors.MinimapGrid, 1)
	for _, m := range MinimapLayout(trace, &v.cfg, v.cache, area) {
		s.FillRect(m.Rect, m.Color)
		s.StrokeRect(m.Rect, v.colors.MinimapSpan, 1)
	}

	win := MinimapWindow(trace, v.view, area)
	s.FillRect(win, v.colors.MinimapWindow)
	s.StrokeRect(win, v.colors.MinimapBorder, 1)
}

func (v *Viewer) drawDetails(f Frame) {
	area := f.Details
	if area.Empty() {
		return
	}
	s := f.Surface
	s.FillRect(area, v.colors.PanelBg)

	at := Point{X: area.Min.X + v.cfg.SpanLabelMargin, Y: area.Min.Y + v.cfg.SpanLabelMargin}
	if v.details == "" {
		s.Text(at, v.colors.PanelText, "Click on a span to see its details")
		return
	}
	for _, line := range strings.Split(v.details, "\n") {
		if at.Y+v.cfg.DetailsLineHeight > area.Max.Y {
			break
		}
		s.Text(at, v.colors.PanelText, line)
		at.Y += v.cfg.DetailsLineHeight
	}
}

func normalizeRect(a, b Point) Rect {
	return Rect{
		Min: Point{X: min(a.X, b.X), Y: min(a.Y, b.Y)},
		Max: Point{X: max(a.X, b.X), Y: max(a.Y, b.Y)},
	}
}
