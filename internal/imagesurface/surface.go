// Package imagesurface draws timeline frames into an in-memory RGBA image,
// for PNG snapshots and for tests that need real pixels.
package imagesurface

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/tobert/traceview/internal/timeline"
)

// Surface implements timeline.Surface over an *image.RGBA. Every draw
// call blends with alpha over what is already there.
type Surface struct {
	img  *image.RGBA
	face font.Face
}

// New creates a transparent w x h surface using the 7x13 bitmap font.
func New(w, h int) *Surface {
	return &Surface{
		img:  image.NewRGBA(image.Rect(0, 0, w, h)),
		face: basicfont.Face7x13,
	}
}

// Bounds returns the drawable area as a timeline rectangle.
func (s *Surface) Bounds() timeline.Rect {
	b := s.img.Bounds()
	return timeline.RectXYWH(float64(b.Min.X), float64(b.Min.Y), float64(b.Dx()), float64(b.Dy()))
}

func toColor(c timeline.Color) color.NRGBA {
	return color.NRGBA{R: c.R(), G: c.G(), B: c.B(), A: c.A()}
}

func toImageRect(r timeline.Rect) image.Rectangle {
	return image.Rect(
		int(math.Floor(r.Min.X)), int(math.Floor(r.Min.Y)),
		int(math.Ceil(r.Max.X)), int(math.Ceil(r.Max.Y)),
	)
}

func (s *Surface) FillRect(r timeline.Rect, c timeline.Color) {
	if r.Empty() || c.A() == 0 {
		return
	}
	draw.Draw(s.img, toImageRect(r), image.NewUniform(toColor(c)), image.Point{}, draw.Over)
}

func (s *Surface) StrokeRect(r timeline.Rect, c timeline.Color, thickness float64) {
	if r.Empty() {
		return
	}
	t := max(thickness, 1)
	s.FillRect(timeline.Rect{Min: r.Min, Max: timeline.Point{X: r.Max.X, Y: r.Min.Y + t}}, c)
	s.FillRect(timeline.Rect{Min: timeline.Point{X: r.Min.X, Y: r.Max.Y - t}, Max: r.Max}, c)
	s.FillRect(timeline.Rect{Min: timeline.Point{X: r.Min.X, Y: r.Min.Y + t}, Max: timeline.Point{X: r.Min.X + t, Y: r.Max.Y - t}}, c)
	s.FillRect(timeline.Rect{Min: timeline.Point{X: r.Max.X - t, Y: r.Min.Y + t}, Max: timeline.Point{X: r.Max.X, Y: r.Max.Y - t}}, c)
}

// Line draws a one pixel Bresenham line.
func (s *Surface) Line(from, to timeline.Point, c timeline.Color) {
	src := image.NewUniform(toColor(c))
	x0, y0 := int(math.Round(from.X)), int(math.Round(from.Y))
	x1, y1 := int(math.Round(to.X)), int(math.Round(to.Y))
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	e := dx + dy
	for {
		draw.Draw(s.img, image.Rect(x0, y0, x0+1, y0+1), src, image.Point{}, draw.Over)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Text draws s with its top-left corner at at.
func (s *Surface) Text(at timeline.Point, c timeline.Color, str string) {
	d := &font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(toColor(c)),
		Face: s.face,
		Dot: fixed.Point26_6{
			X: fixed.I(int(math.Round(at.X))),
			Y: fixed.I(int(math.Round(at.Y))) + s.face.Metrics().Ascent,
		},
	}
	d.DrawString(str)
}

func (s *Surface) MeasureText(str string) float64 {
	return float64(font.MeasureString(s.face, str)) / 64
}

// At returns the pixel at (x, y) as a timeline colour.
func (s *Surface) At(x, y int) timeline.Color {
	c := s.img.RGBAAt(x, y)
	return timeline.RGBA(c.R, c.G, c.B, c.A)
}

// WritePNG encodes the image as PNG.
func (s *Surface) WritePNG(w io.Writer) error {
	if err := png.Encode(w, s.img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// SavePNG writes the image to path.
func (s *Surface) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := s.WritePNG(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
