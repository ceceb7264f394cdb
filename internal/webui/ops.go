package webui

import (
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/tobert/traceview/internal/timeline"
)

// drawOp is one canvas instruction sent to the browser. Coordinates are
// CSS pixels; colours are css rgba() strings.
type drawOp struct {
	Op    string  `json:"op"` // fill, stroke, line, text
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w,omitempty"`
	H     float64 `json:"h,omitempty"`
	X2    float64 `json:"x2,omitempty"`
	Y2    float64 `json:"y2,omitempty"`
	Width float64 `json:"lw,omitempty"`
	Color string  `json:"c"`
	Text  string  `json:"t,omitempty"`
}

// opRecorder is a timeline.Surface that records draw calls for replay
// on an HTML canvas. Text is measured with the 7x13 bitmap font metrics;
// the page draws with a 13px monospace font to match.
type opRecorder struct {
	ops []drawOp
}

func (r *opRecorder) FillRect(rect timeline.Rect, c timeline.Color) {
	r.ops = append(r.ops, drawOp{Op: "fill", X: rect.Min.X, Y: rect.Min.Y, W: rect.Width(), H: rect.Height(), Color: c.Hex()})
}

func (r *opRecorder) StrokeRect(rect timeline.Rect, c timeline.Color, thickness float64) {
	r.ops = append(r.ops, drawOp{Op: "stroke", X: rect.Min.X, Y: rect.Min.Y, W: rect.Width(), H: rect.Height(), Width: thickness, Color: c.Hex()})
}

func (r *opRecorder) Line(from, to timeline.Point, c timeline.Color) {
	r.ops = append(r.ops, drawOp{Op: "line", X: from.X, Y: from.Y, X2: to.X, Y2: to.Y, Color: c.Hex()})
}

func (r *opRecorder) Text(at timeline.Point, c timeline.Color, s string) {
	r.ops = append(r.ops, drawOp{Op: "text", X: at.X, Y: at.Y, Color: c.Hex(), Text: s})
}

func (r *opRecorder) MeasureText(s string) float64 {
	return float64(font.MeasureString(basicfont.Face7x13, s)) / 64
}
