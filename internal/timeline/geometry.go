// Package timeline is the interaction and layout engine behind every
// traceview host: it maps trace time onto pixels under pan and zoom,
// filters spans, tracks selection and emits draw calls through a Surface.
package timeline

import "strings"

// Point is a position in surface pixels.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle; Min is the top-left corner.
type Rect struct {
	Min, Max Point
}

// RectXYWH builds a Rect from an origin and a size.
func RectXYWH(x, y, w, h float64) Rect {
	return Rect{Min: Point{X: x, Y: y}, Max: Point{X: x + w, Y: y + h}}
}

func (r Rect) Width() float64  { return r.Max.X - r.Min.X }
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// TimeRatio returns where t falls within [start, end] as a fraction.
// A degenerate range yields 0.
func TimeRatio(t, start, end float64) float64 {
	if end <= start {
		return 0
	}
	return (t - start) / (end - start)
}

// Interpolate is the linear interpolation between start and end.
func Interpolate(start, end, ratio float64) float64 {
	return start + (end-start)*ratio
}

// TimeToPixel maps t onto a canvas of the given width, relative to the
// canvas origin.
func TimeToPixel(t, viewStart, viewEnd, canvasWidth float64) float64 {
	return TimeRatio(t, viewStart, viewEnd) * canvasWidth
}

// PixelToTime is the inverse of TimeToPixel for an absolute x coordinate.
// A non-positive canvas width returns viewStart.
func PixelToTime(x, canvasX, canvasWidth, viewStart, viewEnd float64) float64 {
	if canvasWidth <= 0 {
		return viewStart
	}
	return Interpolate(viewStart, viewEnd, (x-canvasX)/canvasWidth)
}

// ContainsFold reports whether needle occurs in s ignoring ASCII case.
// An empty needle always matches.
func ContainsFold(s, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(asciiLower(s), asciiLower(needle))
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
