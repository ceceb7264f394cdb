package timeline

import "strings"

type drawOp struct {
	kind  string
	rect  Rect
	color Color
	at    Point
	text  string
}

// recorder is a Surface that keeps every call and measures text at a
// fixed 7px per rune.
type recorder struct {
	ops []drawOp
}

func (r *recorder) FillRect(rect Rect, c Color) {
	r.ops = append(r.ops, drawOp{kind: "fill", rect: rect, color: c})
}

func (r *recorder) StrokeRect(rect Rect, c Color, _ float64) {
	r.ops = append(r.ops, drawOp{kind: "stroke", rect: rect, color: c})
}

func (r *recorder) Line(from, to Point, c Color) {
	r.ops = append(r.ops, drawOp{kind: "line", rect: Rect{Min: from, Max: to}, color: c})
}

func (r *recorder) Text(at Point, c Color, s string) {
	r.ops = append(r.ops, drawOp{kind: "text", at: at, color: c, text: s})
}

func (r *recorder) MeasureText(s string) float64 {
	return 7 * float64(len([]rune(s)))
}

func (r *recorder) texts() []string {
	var out []string
	for _, op := range r.ops {
		if op.kind == "text" {
			out = append(out, op.text)
		}
	}
	return out
}

func (r *recorder) hasText(prefix string) bool {
	for _, t := range r.texts() {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

// fillsAt returns the fill colors whose rectangle contains p.
func (r *recorder) fillsAt(p Point) []Color {
	var out []Color
	for _, op := range r.ops {
		if op.kind == "fill" && op.rect.Contains(p) {
			out = append(out, op.color)
		}
	}
	return out
}

const threeSpanDoc = `{
  "traces": [{
    "traceID": "t1",
    "traceName": "checkout",
    "spans": [
      {"spanID": "a", "operationName": "charge", "serviceName": "payments", "startTime": 100, "duration": 50, "depth": 1},
      {"spanID": "b", "operationName": "handle", "serviceName": "frontend", "startTime": 0, "duration": 30},
      {"spanID": "c", "operationName": "notify", "serviceName": "mailer", "startTime": 200, "duration": 10, "depth": 2}
    ]
  }]
}`

var (
	testCanvas  = RectXYWH(0, 0, 1000, 400)
	testMinimap = RectXYWH(0, 420, 1000, 80)
	testDetails = RectXYWH(0, 500, 400, 300)
)
