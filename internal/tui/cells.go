package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tobert/traceview/internal/timeline"
)

// Each terminal cell stands for a CellWidth x CellHeight pixel block of
// the timeline's coordinate space.
const (
	CellWidth  = 8
	CellHeight = 16
)

type cell struct {
	ch        rune
	fg, bg    timeline.Color
	underline bool
}

// Grid is a timeline.Surface that rasterizes draw calls onto terminal
// cells. Thin strokes become underlines; larger ones become box drawing.
type Grid struct {
	cols, rows int
	cells      []cell
	base       timeline.Color
}

// NewGrid creates a cols x rows grid cleared to bg.
func NewGrid(cols, rows int, bg timeline.Color) *Grid {
	g := &Grid{cols: max(cols, 0), rows: max(rows, 0), base: bg}
	g.cells = make([]cell, g.cols*g.rows)
	g.Clear()
	return g
}

// Clear resets every cell to a blank on the base background.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = cell{ch: ' ', fg: timeline.RGBA(255, 255, 255, 255), bg: g.base}
	}
}

// Bounds is the grid area in pixel coordinates.
func (g *Grid) Bounds() timeline.Rect {
	return timeline.RectXYWH(0, 0, float64(g.cols*CellWidth), float64(g.rows*CellHeight))
}

func (g *Grid) at(col, row int) *cell {
	if col < 0 || row < 0 || col >= g.cols || row >= g.rows {
		return nil
	}
	return &g.cells[row*g.cols+col]
}

// span converts a pixel rectangle to the half-open cell range it touches.
func span(r timeline.Rect) (c0, r0, c1, r1 int) {
	c0 = int(math.Floor(r.Min.X / CellWidth))
	r0 = int(math.Floor(r.Min.Y / CellHeight))
	c1 = max(int(math.Ceil(r.Max.X/CellWidth)), c0+1)
	r1 = max(int(math.Ceil(r.Max.Y/CellHeight)), r0+1)
	return
}

func blend(dst, src timeline.Color) timeline.Color {
	a := float64(src.A()) / 255
	mix := func(d, s uint8) uint8 {
		return uint8(math.Round(float64(s)*a + float64(d)*(1-a)))
	}
	return timeline.RGBA(mix(dst.R(), src.R()), mix(dst.G(), src.G()), mix(dst.B(), src.B()), 255)
}

func (g *Grid) FillRect(r timeline.Rect, c timeline.Color) {
	if r.Empty() || c.A() == 0 {
		return
	}
	c0, r0, c1, r1 := span(r)
	for row := r0; row < r1; row++ {
		for col := c0; col < c1; col++ {
			cl := g.at(col, row)
			if cl == nil {
				continue
			}
			cl.bg = blend(cl.bg, c)
			if c.A() >= 128 {
				cl.ch = ' '
				cl.underline = false
			}
		}
	}
}

func (g *Grid) StrokeRect(r timeline.Rect, c timeline.Color, thickness float64) {
	if r.Empty() {
		return
	}
	c0, r0, c1, r1 := span(r)
	if r1-r0 < 2 || c1-c0 < 2 {
		// Too small for a box: emphasize with an underline instead.
		if thickness < 2 {
			return
		}
		for row := r0; row < r1; row++ {
			for col := c0; col < c1; col++ {
				if cl := g.at(col, row); cl != nil {
					cl.underline = true
					cl.fg = c
				}
			}
		}
		return
	}

	g.put(c0, r0, '┌', c)
	g.put(c1-1, r0, '┐', c)
	g.put(c0, r1-1, '└', c)
	g.put(c1-1, r1-1, '┘', c)
	for col := c0 + 1; col < c1-1; col++ {
		g.put(col, r0, '─', c)
		g.put(col, r1-1, '─', c)
	}
	for row := r0 + 1; row < r1-1; row++ {
		g.put(c0, row, '│', c)
		g.put(c1-1, row, '│', c)
	}
}

func (g *Grid) put(col, row int, ch rune, c timeline.Color) {
	if cl := g.at(col, row); cl != nil {
		cl.ch = ch
		cl.fg = c
	}
}

// Line draws vertical and horizontal lines with box characters on blank
// cells only, so it never overwrites text.
func (g *Grid) Line(from, to timeline.Point, c timeline.Color) {
	c0, r0, _, _ := span(timeline.Rect{Min: from, Max: from})
	c1, r1, _, _ := span(timeline.Rect{Min: to, Max: to})
	var ch rune
	switch {
	case c0 == c1:
		ch = '│'
	case r0 == r1:
		ch = '─'
	default:
		ch = '·'
	}
	steps := max(abs(c1-c0), abs(r1-r0))
	for i := 0; i <= steps; i++ {
		col, row := c0, r0
		if steps > 0 {
			col = c0 + (c1-c0)*i/steps
			row = r0 + (r1-r0)*i/steps
		}
		if cl := g.at(col, row); cl != nil && cl.ch == ' ' {
			cl.ch = ch
			cl.fg = c
		}
	}
}

// Text writes s from the cell containing at, clipped to the grid.
func (g *Grid) Text(at timeline.Point, c timeline.Color, s string) {
	col := int(math.Floor(at.X / CellWidth))
	row := int(math.Floor(at.Y / CellHeight))
	for _, r := range s {
		if cl := g.at(col, row); cl != nil {
			cl.ch = r
			cl.fg = c
		}
		col++
	}
}

func (g *Grid) MeasureText(s string) float64 {
	return float64(len([]rune(s)) * CellWidth)
}

// Row returns the plain characters of one row.
func (g *Grid) Row(row int) string {
	if row < 0 || row >= g.rows {
		return ""
	}
	var b strings.Builder
	for col := 0; col < g.cols; col++ {
		b.WriteRune(g.cells[row*g.cols+col].ch)
	}
	return b.String()
}

// Render styles the grid with lipgloss, merging runs of equal style.
func (g *Grid) Render() string {
	var b strings.Builder
	for row := 0; row < g.rows; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		var run strings.Builder
		var style cell
		flush := func() {
			if run.Len() == 0 {
				return
			}
			st := lipgloss.NewStyle().
				Foreground(lipgloss.Color(hexRGB(style.fg))).
				Background(lipgloss.Color(hexRGB(style.bg))).
				Underline(style.underline)
			b.WriteString(st.Render(run.String()))
			run.Reset()
		}
		for col := 0; col < g.cols; col++ {
			cl := g.cells[row*g.cols+col]
			if run.Len() > 0 && (cl.fg != style.fg || cl.bg != style.bg || cl.underline != style.underline) {
				flush()
			}
			style = cl
			run.WriteRune(cl.ch)
		}
		flush()
	}
	return b.String()
}

func hexRGB(c timeline.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R(), c.G(), c.B())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
