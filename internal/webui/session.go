package webui

import (
	"strings"

	"github.com/google/uuid"

	"github.com/tobert/traceview/internal/timeline"
)

// clientMsg is anything the browser sends over the WebSocket.
type clientMsg struct {
	Type    string  `json:"type"` // resize, move, down, up, wheel, key, command
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Button  int     `json:"button,omitempty"`
	Delta   float64 `json:"delta,omitempty"`
	Key     string  `json:"key,omitempty"`
	Ctrl    bool    `json:"ctrl,omitempty"`
	Command string  `json:"command,omitempty"`
	Value   string  `json:"value,omitempty"`
	Number  float64 `json:"number,omitempty"`
}

// traceSummary names one loaded trace for the trace picker.
type traceSummary struct {
	Name     string `json:"name"`
	Spans    int    `json:"spans"`
	Duration string `json:"duration"`
}

// filterState mirrors the filter sliders and text boxes.
type filterState struct {
	Service          string  `json:"service"`
	Operation        string  `json:"operation"`
	MinDuration      float64 `json:"min_duration"`
	MaxDuration      float64 `json:"max_duration"`
	DurationMinBound float64 `json:"duration_min_bound"`
	DurationMaxBound float64 `json:"duration_max_bound"`
	MinTime          float64 `json:"min_time"`
	MaxTime          float64 `json:"max_time"`
	TimeMinBound     float64 `json:"time_min_bound"`
	TimeMaxBound     float64 `json:"time_max_bound"`
}

// wsFrame is the server-sent message: one rendered frame plus the panel
// state the page needs for its controls.
type wsFrame struct {
	Type          string               `json:"type"`
	Session       string               `json:"session"`
	Ops           []drawOp             `json:"ops"`
	Status        string               `json:"status,omitempty"`
	Traces        []traceSummary       `json:"traces"`
	SelectedTrace int                  `json:"selected_trace"`
	Stats         *timeline.TraceStats `json:"stats,omitempty"`
	Filters       filterState          `json:"filters"`
	Minimap       bool                 `json:"minimap"`
	Unit          string               `json:"unit"`
}

// session is one browser tab: its own viewer, input state and canvas size.
type session struct {
	id     string
	viewer *timeline.Viewer
	input  *timeline.InputState
	width  float64
	height float64

	version uint64
	status  string
}

func newSession(cfg timeline.ViewerConfig) *session {
	return &session{
		id:     uuid.NewString(),
		viewer: timeline.NewViewer(cfg),
		input:  &timeline.InputState{},
		width:  1200,
		height: 700,
	}
}

// refresh installs new traces when the source version moved, keeping the
// current trace, view, filters and selection. It reports whether anything
// changed.
func (s *session) refresh(src Source) bool {
	v := src.Version()
	if v == s.version {
		return false
	}
	s.version = v
	s.viewer.RefreshTraces(src.Traces())
	return true
}

var keyNames = map[string]timeline.Key{
	"Escape":     timeline.KeyEscape,
	"ArrowLeft":  timeline.KeyLeft,
	"ArrowRight": timeline.KeyRight,
	"ArrowUp":    timeline.KeyUp,
	"ArrowDown":  timeline.KeyDown,
}

// apply folds one client message into the session. It reports whether a
// new frame should be sent.
func (s *session) apply(msg clientMsg) bool {
	in := s.input
	in.HasFocus = true
	switch msg.Type {
	case "move", "down", "up", "wheel":
		in.Mouse = timeline.Point{X: msg.X, Y: msg.Y}
		in.Ctrl = msg.Ctrl
	case "key":
		in.Ctrl = msg.Ctrl
	}

	switch msg.Type {
	case "resize":
		if msg.Width > 0 && msg.Height > 0 {
			s.width, s.height = msg.Width, msg.Height
		}
	case "move":
	case "down":
		in.Click(mouseButton(msg.Button), in.Mouse)
	case "up":
		in.Release(mouseButton(msg.Button), in.Mouse)
	case "wheel":
		// Browsers report scrolling up as a negative delta.
		switch {
		case msg.Delta < 0:
			in.Wheel = 1
		case msg.Delta > 0:
			in.Wheel = -1
		}
	case "key":
		k, ok := keyNames[msg.Key]
		if !ok {
			return false
		}
		in.Press(k)
	case "command":
		s.command(msg)
	default:
		return false
	}
	return true
}

func mouseButton(b int) timeline.MouseButton {
	if b == 2 {
		return timeline.MouseSecondary
	}
	return timeline.MousePrimary
}

// command runs a control-panel or context-menu action.
func (s *session) command(msg clientMsg) {
	v := s.viewer
	switch msg.Command {
	case "reset_zoom":
		v.ResetZoom()
	case "clear_all":
		v.ClearAll()
		s.status = ""
	case "center_selected":
		v.CenterOnSelected()
	case "deselect":
		v.Deselect()
	case "toggle_minimap":
		v.ToggleMinimap()
	case "select_trace":
		v.SelectTrace(int(msg.Number))
	case "load_json":
		s.status = v.LoadFromJSON([]byte(msg.Value))
	case "service_filter":
		v.SetServiceFilter(msg.Value)
	case "operation_filter":
		v.SetOperationFilter(msg.Value)
	case "min_duration":
		v.SetMinDurationFilter(msg.Number)
	case "max_duration":
		v.SetMaxDurationFilter(msg.Number)
	case "min_time":
		v.SetMinTimeFilter(msg.Number)
	case "max_time":
		v.SetMaxTimeFilter(msg.Number)
	case "time_unit":
		if strings.EqualFold(msg.Value, "auto") {
			v.SetAutoDetectTimeUnit(true)
		} else if u, ok := timeline.ParseTimeUnit(msg.Value); ok {
			v.SetTimeUnit(u)
		}
	}
}

// render draws one frame and clears the input edges it consumed.
func (s *session) render() wsFrame {
	rec := &opRecorder{}
	cfg := s.viewer.Config()
	panes := timeline.SplitWindow(timeline.RectXYWH(0, 0, s.width, s.height), s.viewer.ShowMinimap(), &cfg)
	s.viewer.Render(timeline.Frame{
		Surface:  rec,
		Input:    s.input,
		Timeline: panes.Timeline,
		Minimap:  panes.Minimap,
		Details:  panes.Details,
	})
	s.input.EndFrame()

	cfg = s.viewer.Config()
	frame := wsFrame{
		Type:          "frame",
		Session:       s.id,
		Ops:           rec.ops,
		Status:        s.status,
		SelectedTrace: s.viewer.SelectedTrace(),
		Minimap:       s.viewer.ShowMinimap(),
		Unit:          s.viewer.TimeUnit().String(),
		Filters: filterState{
			Service:          cfg.ServiceFilter,
			Operation:        cfg.OperationFilter,
			MinDuration:      cfg.MinDurationFilter,
			MaxDuration:      cfg.MaxDurationFilter,
			DurationMinBound: cfg.SliderMinBound,
			DurationMaxBound: cfg.SliderMaxBound,
			MinTime:          cfg.MinTimeFilter,
			MaxTime:          cfg.MaxTimeFilter,
			TimeMinBound:     cfg.TimeSliderMinBound,
			TimeMaxBound:     cfg.TimeSliderMaxBound,
		},
	}
	for _, t := range s.viewer.Traces() {
		frame.Traces = append(frame.Traces, traceSummary{
			Name:     t.TraceName,
			Spans:    t.TotalSpans,
			Duration: timeline.FormatTime(t.TotalDuration, s.viewer.TimeUnit()),
		})
	}
	if st, ok := s.viewer.Stats(); ok {
		frame.Stats = &st
	}
	return frame
}
