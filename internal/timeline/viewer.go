package timeline

import (
	"math"

	"github.com/tobert/traceview/internal/model"
)

// dimFactor is the alpha reduction applied to unselected spans while a
// span is selected.
const dimFactor = 0.9

type zoomSelection struct {
	active     bool
	start, end Point
}

// Viewer owns the loaded traces, the color cache, the view window and the
// selection. It is not safe for concurrent use; hosts drive it from one
// goroutine and call Render once per frame.
type Viewer struct {
	cfg    ViewerConfig
	colors Colors
	cache  *ColorCache

	traces        []model.Trace
	selectedTrace int
	selectedSpan  int
	details       string

	view Viewport
	zoom zoomSelection

	showMinimap bool
	timeUnit    TimeUnit
	autoUnit    bool
}

// NewViewer returns an empty viewer using cfg for layout.
func NewViewer(cfg ViewerConfig) *Viewer {
	v := &Viewer{
		cfg:         cfg,
		colors:      DefaultColors(),
		cache:       NewColorCache(),
		showMinimap: true,
		autoUnit:    true,
		timeUnit:    Nanoseconds,
	}
	v.ClearAll()
	return v
}

// ClearAll drops every trace, the color cache, the selection and the
// filters, returning the viewer to its freshly constructed state.
func (v *Viewer) ClearAll() {
	v.traces = nil
	v.cache.Reset()
	v.selectedTrace = 0
	v.selectedSpan = -1
	v.details = ""
	v.view = Viewport{Start: 0, End: 100}
	v.zoom = zoomSelection{}
	v.cfg.resetFilters()
}

// LoadFromJSON replaces the loaded traces with the contents of data. It
// returns "" on success and an "Error: ..." message otherwise; a failed
// load leaves the previous traces in place.
func (v *Viewer) LoadFromJSON(data []byte) string {
	traces, err := model.Parse(data)
	if err != nil {
		return err.Error()
	}
	v.SetTraces(traces)
	return ""
}

// LoadFromFile reads path and loads it like LoadFromJSON.
func (v *Viewer) LoadFromFile(path string) string {
	traces, err := model.LoadFile(path)
	if err != nil {
		return err.Error()
	}
	v.SetTraces(traces)
	return ""
}

// SetTraces installs already-built traces. The first trace becomes
// current, the selection is cleared, and filters and view are re-derived
// from the new data. Colors already cached are kept.
func (v *Viewer) SetTraces(traces []model.Trace) {
	v.traces = traces
	v.selectedTrace = 0
	v.selectedSpan = -1
	v.details = ""
	v.zoom = zoomSelection{}
	for ti := range v.traces {
		spans := v.traces[ti].Spans
		for si := range spans {
			spans[si].Color = uint32(v.cache.Get(spans[si].ServiceName))
			spans[si].Selected = false
		}
	}
	v.CacheTraceInformation()
}

// RefreshTraces installs a newer snapshot of the same source without
// losing the user's place. The current trace is found again by ID; its
// view, filters, selection and any drag in progress carry over, clamped
// to the new data. A filter resting on a slider bound follows that bound
// so growing traces stay visible. When the current trace is gone the
// first trace becomes current.
func (v *Viewer) RefreshTraces(traces []model.Trace) {
	cur := v.current()
	idx := -1
	if cur != nil {
		for i := range traces {
			if traces[i].TraceID == cur.TraceID {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		v.SetTraces(traces)
		v.SelectTrace(0)
		return
	}

	wasFull := v.view.Start <= 0 && v.view.End >= cur.TotalDuration
	view, zoom, old := v.view, v.zoom, v.cfg
	var spanID string
	if s, ok := v.SelectedSpan(); ok {
		spanID = s.SpanID
	}

	v.SetTraces(traces)
	v.SelectTrace(idx)
	v.zoom = zoom
	if !wasFull && !v.SetView(view) {
		v.ResetZoom()
	}

	c := &v.cfg
	c.MinDurationFilter = carryFilter(old.MinDurationFilter, old.SliderMinBound, c.SliderMinBound, c.SliderMinBound, c.SliderMaxBound)
	c.MaxDurationFilter = carryFilter(old.MaxDurationFilter, old.SliderMaxBound, c.SliderMaxBound, c.SliderMinBound, c.SliderMaxBound)
	c.MinTimeFilter = carryFilter(old.MinTimeFilter, old.TimeSliderMinBound, c.TimeSliderMinBound, c.TimeSliderMinBound, c.TimeSliderMaxBound)
	c.MaxTimeFilter = carryFilter(old.MaxTimeFilter, old.TimeSliderMaxBound, c.TimeSliderMaxBound, c.TimeSliderMinBound, c.TimeSliderMaxBound)

	if spanID == "" {
		return
	}
	for i, s := range v.traces[idx].Spans {
		if s.SpanID == spanID {
			v.setSelection(i)
			return
		}
	}
}

// carryFilter moves a filter value onto new slider bounds [lo, hi].
func carryFilter(val, oldBound, newBound, lo, hi float64) float64 {
	if val == oldBound {
		return newBound
	}
	return clamp(val, lo, hi)
}

// CacheTraceInformation derives slider bounds and filters from the
// aggregates of every loaded trace, resets the view to the current trace
// and, when enabled, picks a display unit.
func (v *Viewer) CacheTraceInformation() {
	minDur, maxDur, minTime, maxTime, hasSpans := v.aggregates()
	if hasSpans {
		v.cfg.initSliderBounds(minDur, maxDur, minTime, maxTime)
	} else {
		v.cfg.initSliderBounds(0, 1000, 0, 1000)
	}

	if t := v.current(); t != nil {
		v.view = FullView(t.TotalDuration)
		if v.autoUnit && hasSpans {
			v.timeUnit = DetectTimeUnit(minTime, maxTime)
		}
	}
}

// aggregates folds the cached per-trace aggregates of every non-empty
// trace.
func (v *Viewer) aggregates() (minDur, maxDur, minTime, maxTime float64, ok bool) {
	for i := range v.traces {
		t := &v.traces[i]
		if len(t.Spans) == 0 {
			continue
		}
		if !ok {
			minDur, maxDur = t.MinDuration, t.MaxDuration
			minTime, maxTime = t.MinStartTime, t.MaxStartTime
			ok = true
			continue
		}
		minDur = min(minDur, t.MinDuration)
		maxDur = max(maxDur, t.MaxDuration)
		minTime = min(minTime, t.MinStartTime)
		maxTime = max(maxTime, t.MaxStartTime)
	}
	return
}

func (v *Viewer) current() *model.Trace {
	if v.selectedTrace < 0 || v.selectedTrace >= len(v.traces) {
		return nil
	}
	return &v.traces[v.selectedTrace]
}

// Traces returns the loaded traces. Callers must not modify them.
func (v *Viewer) Traces() []model.Trace { return v.traces }

// Trace returns the current trace.
func (v *Viewer) Trace() (*model.Trace, bool) {
	t := v.current()
	return t, t != nil
}

// SelectedTrace is the index of the current trace.
func (v *Viewer) SelectedTrace() int { return v.selectedTrace }

// SelectTrace makes trace i current, resets the view to it and re-derives
// the slider bounds from its aggregates. Out of range indexes are ignored.
func (v *Viewer) SelectTrace(i int) bool {
	if i < 0 || i >= len(v.traces) {
		return false
	}
	v.setSelection(-1)
	v.selectedTrace = i
	t := &v.traces[i]
	v.view = FullView(t.TotalDuration)
	if len(t.Spans) > 0 {
		v.cfg.initSliderBounds(t.MinDuration, t.MaxDuration, t.MinStartTime, t.MaxStartTime)
	}
	return true
}

// SelectedSpanIndex is the selected span in the current trace, or -1.
func (v *Viewer) SelectedSpanIndex() int { return v.selectedSpan }

// SelectedSpan returns the selected span, if any.
func (v *Viewer) SelectedSpan() (*model.Span, bool) {
	t := v.current()
	if t == nil || v.selectedSpan < 0 || v.selectedSpan >= len(t.Spans) {
		return nil, false
	}
	return &t.Spans[v.selectedSpan], true
}

// SelectedSpanDetails is the details text cached at the last selection
// change; empty when nothing is selected.
func (v *Viewer) SelectedSpanDetails() string { return v.details }

// SelectSpan selects span i of the current trace.
func (v *Viewer) SelectSpan(i int) bool {
	t := v.current()
	if t == nil || i < 0 || i >= len(t.Spans) {
		return false
	}
	v.setSelection(i)
	return true
}

// Deselect clears the selection.
func (v *Viewer) Deselect() { v.setSelection(-1) }

func (v *Viewer) setSelection(i int) {
	t := v.current()
	if t == nil {
		v.selectedSpan = -1
		v.details = ""
		return
	}
	if v.selectedSpan >= 0 && v.selectedSpan < len(t.Spans) {
		t.Spans[v.selectedSpan].Selected = false
	}
	v.selectedSpan = i
	if i < 0 {
		v.details = ""
		return
	}
	t.Spans[i].Selected = true
	v.details = t.Spans[i].Details()
}

// SelectPreviousSpan moves the selection one span earlier and centres the
// view on it. No-op at the first span or with nothing selected.
func (v *Viewer) SelectPreviousSpan() {
	t := v.current()
	if t == nil || len(t.Spans) == 0 || v.selectedSpan <= 0 {
		return
	}
	v.setSelection(v.selectedSpan - 1)
	v.centerOnSpan(&t.Spans[v.selectedSpan])
}

// SelectNextSpan moves the selection one span later and centres the view
// on it. With nothing selected it selects the first span.
func (v *Viewer) SelectNextSpan() {
	t := v.current()
	if t == nil || len(t.Spans) == 0 || v.selectedSpan >= len(t.Spans)-1 {
		return
	}
	v.setSelection(v.selectedSpan + 1)
	v.centerOnSpan(&t.Spans[v.selectedSpan])
}

// SelectUpperSpan moves the selection up one row without moving the view.
// With nothing selected it selects the last span.
func (v *Viewer) SelectUpperSpan() {
	t := v.current()
	if t == nil || len(t.Spans) == 0 {
		return
	}
	next := v.selectedSpan
	switch {
	case v.selectedSpan > 0:
		next--
	case v.selectedSpan == -1:
		next = len(t.Spans) - 1
	}
	if next >= 0 {
		v.setSelection(next)
	}
}

// SelectLowerSpan moves the selection down one row without moving the
// view. With nothing selected it selects the first span.
func (v *Viewer) SelectLowerSpan() {
	t := v.current()
	if t == nil || len(t.Spans) == 0 {
		return
	}
	next := v.selectedSpan
	if next < len(t.Spans)-1 {
		next++
	}
	if next >= 0 {
		v.setSelection(next)
	}
}

// View is the current visible window.
func (v *Viewer) View() Viewport { return v.view }

// SetView clamps next to the current trace and adopts it if it is still a
// valid window.
func (v *Viewer) SetView(next Viewport) bool {
	t := v.current()
	if t == nil {
		return false
	}
	next.Start = max(0, next.Start)
	next.End = min(t.TotalDuration, next.End)
	return v.apply(next)
}

func (v *Viewer) apply(next Viewport) bool {
	if !next.Valid() {
		return false
	}
	v.view = next
	return true
}

// ScrollLeft pans the view left by the configured scroll percentage.
func (v *Viewer) ScrollLeft() {
	if v.current() == nil {
		return
	}
	v.apply(v.view.ScrollLeft(v.cfg.ScrollPercentage))
}

// ScrollRight pans the view right by the configured scroll percentage.
func (v *Viewer) ScrollRight() {
	t := v.current()
	if t == nil {
		return
	}
	v.apply(v.view.ScrollRight(v.cfg.ScrollPercentage, t.TotalDuration))
}

// ScrollZoom zooms around the time at ratio (0..1) across the canvas. A
// positive wheel delta zooms in.
func (v *Viewer) ScrollZoom(ratio, wheel float64) {
	t := v.current()
	if t == nil || wheel == 0 {
		return
	}
	factor := v.cfg.ZoomFactorOut
	if wheel > 0 {
		factor = v.cfg.ZoomFactorIn
	}
	v.apply(v.view.Zoom(ratio, factor, t.TotalDuration))
}

// ZoomToPixels narrows the view to the pixel range [x0, x1] of canvas,
// provided the range is wider than the minimum selection width.
func (v *Viewer) ZoomToPixels(x0, x1 float64, canvas Rect) bool {
	t := v.current()
	if t == nil || math.Abs(x1-x0) <= v.cfg.MinSelectionWidth {
		return false
	}
	return v.apply(v.view.ZoomToPixels(x0, x1, canvas.Min.X, canvas.Width(), t.TotalDuration))
}

// ResetZoom shows the whole current trace.
func (v *Viewer) ResetZoom() {
	if t := v.current(); t != nil {
		v.view = FullView(t.TotalDuration)
	}
}

// CenterOnSelected recentres the view on the selected span.
func (v *Viewer) CenterOnSelected() {
	if span, ok := v.SelectedSpan(); ok {
		v.centerOnSpan(span)
	}
}

func (v *Viewer) centerOnSpan(span *model.Span) {
	t := v.current()
	v.apply(v.view.CenterOn(span.StartTime+span.Duration/2, t.TotalDuration))
}

// Config returns a copy of the layout and filter state.
func (v *Viewer) Config() ViewerConfig { return v.cfg }

// Colors returns the palette.
func (v *Viewer) Colors() Colors { return v.colors }

// ColorCache exposes the service color cache.
func (v *Viewer) ColorCache() *ColorCache { return v.cache }

// Passes applies the live filters to span.
func (v *Viewer) Passes(span *model.Span) bool { return Passes(span, &v.cfg) }

// SetServiceFilter sets the service substring filter.
func (v *Viewer) SetServiceFilter(s string) { v.cfg.ServiceFilter = s }

// SetOperationFilter sets the operation substring filter.
func (v *Viewer) SetOperationFilter(s string) { v.cfg.OperationFilter = s }

// SetMinDurationFilter moves the lower duration bound, pushing the upper
// bound up if needed.
func (v *Viewer) SetMinDurationFilter(d float64) {
	c := &v.cfg
	c.MinDurationFilter = clamp(d, c.SliderMinBound, c.SliderMaxBound)
	if c.MinDurationFilter > c.MaxDurationFilter {
		c.MaxDurationFilter = c.MinDurationFilter
	}
}

// SetMaxDurationFilter moves the upper duration bound, pulling the lower
// bound down if needed.
func (v *Viewer) SetMaxDurationFilter(d float64) {
	c := &v.cfg
	c.MaxDurationFilter = clamp(d, c.SliderMinBound, c.SliderMaxBound)
	if c.MaxDurationFilter < c.MinDurationFilter {
		c.MinDurationFilter = c.MaxDurationFilter
	}
}

// SetMinTimeFilter moves the lower start time bound.
func (v *Viewer) SetMinTimeFilter(t float64) {
	c := &v.cfg
	c.MinTimeFilter = clamp(t, c.TimeSliderMinBound, c.TimeSliderMaxBound)
	if c.MinTimeFilter > c.MaxTimeFilter {
		c.MaxTimeFilter = c.MinTimeFilter
	}
}

// SetMaxTimeFilter moves the upper start time bound.
func (v *Viewer) SetMaxTimeFilter(t float64) {
	c := &v.cfg
	c.MaxTimeFilter = clamp(t, c.TimeSliderMinBound, c.TimeSliderMaxBound)
	if c.MaxTimeFilter < c.MinTimeFilter {
		c.MinTimeFilter = c.MaxTimeFilter
	}
}

// ShowMinimap reports whether the minimap panel is drawn.
func (v *Viewer) ShowMinimap() bool { return v.showMinimap }

// ToggleMinimap flips minimap visibility.
func (v *Viewer) ToggleMinimap() { v.showMinimap = !v.showMinimap }

// TimeUnit is the unit used for labels.
func (v *Viewer) TimeUnit() TimeUnit { return v.timeUnit }

// SetTimeUnit fixes the display unit and turns auto-detection off.
func (v *Viewer) SetTimeUnit(u TimeUnit) {
	v.autoUnit = false
	v.timeUnit = u
}

// SetAutoDetectTimeUnit turns unit auto-detection on or off. Turning it
// on re-derives the unit from the loaded data.
func (v *Viewer) SetAutoDetectTimeUnit(on bool) {
	v.autoUnit = on
	if !on {
		return
	}
	if _, _, minTime, maxTime, ok := v.aggregates(); ok {
		v.timeUnit = DetectTimeUnit(minTime, maxTime)
	}
}

// TraceStats summarizes the current trace for status displays.
type TraceStats struct {
	Name          string  `json:"name"`
	TotalDuration float64 `json:"total_duration_ns"`
	TotalSpans    int     `json:"total_spans"`
	Services      int     `json:"services"`
	Matching      int     `json:"matching_spans"`
}

// Stats describes the current trace.
func (v *Viewer) Stats() (TraceStats, bool) {
	t := v.current()
	if t == nil {
		return TraceStats{}, false
	}
	st := TraceStats{
		Name:          t.TraceName,
		TotalDuration: t.TotalDuration,
		TotalSpans:    t.TotalSpans,
		Services:      len(t.Services()),
	}
	for i := range t.Spans {
		if v.Passes(&t.Spans[i]) {
			st.Matching++
		}
	}
	return st, true
}

// Layout places the current trace's spans in canvas using the live view
// and filters.
func (v *Viewer) Layout(canvas Rect) []SpanLayout {
	t := v.current()
	if t == nil {
		return nil
	}
	return Layout(t, v.view, &v.cfg, canvas)
}

// PreferredTimelineHeight is the canvas height needed to show the current
// trace without clipping its first rows.
func (v *Viewer) PreferredTimelineHeight() float64 {
	n := 0.0
	if t := v.current(); t != nil {
		n = float64(len(t.Spans))
	}
	return v.cfg.MinCanvasHeight + v.cfg.SpanSpacing*min(v.cfg.MaxSpansForHeight, n) + v.cfg.CanvasHeightBuffer
}

// Selecting reports whether a drag-to-zoom gesture is in progress.
func (v *Viewer) Selecting() bool { return v.zoom.active }

func clamp(v, lo, hi float64) float64 {
	return min(hi, max(lo, v))
}
