package timeline

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Color is a packed 0xRRGGBBAA value.
type Color uint32

// RGBA packs four channels into a Color.
func RGBA(r, g, b, a uint8) Color {
	return Color(uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8 | uint32(a))
}

func (c Color) R() uint8 { return uint8(c >> 24) }
func (c Color) G() uint8 { return uint8(c >> 16) }
func (c Color) B() uint8 { return uint8(c >> 8) }
func (c Color) A() uint8 { return uint8(c) }

// Hex renders the color as a CSS rgba() string.
func (c Color) Hex() string {
	return fmt.Sprintf("rgba(%d,%d,%d,%.3f)", c.R(), c.G(), c.B(), float64(c.A())/255)
}

// ColorFromHash derives an opaque color from a 64-bit hash of s.
func ColorFromHash(s string) Color {
	h := xxhash.Sum64String(s)
	return RGBA(uint8(h>>16), uint8(h>>8), uint8(h), 255)
}

// Darken scales the alpha channel by (1 - factor).
func Darken(c Color, factor float64) Color {
	a := int(float64(c.A()) * (1 - factor))
	return RGBA(c.R(), c.G(), c.B(), clampByte(a, 0, 255))
}

// Brighten multiplies each RGB channel by factor, clamped to [100, 255].
// Alpha is kept.
func Brighten(c Color, factor float64) Color {
	boost := func(v uint8) uint8 {
		return clampByte(int(float64(v)*factor), 100, 255)
	}
	return RGBA(boost(c.R()), boost(c.G()), boost(c.B()), c.A())
}

func clampByte(v, lo, hi int) uint8 {
	return uint8(min(hi, max(lo, v)))
}

// ColorCache maps service names to colors. Entries are only ever added;
// Reset is the single way to drop them.
type ColorCache struct {
	colors map[string]Color
}

// NewColorCache returns an empty cache.
func NewColorCache() *ColorCache {
	return &ColorCache{colors: make(map[string]Color)}
}

// Get returns the cached color for service, deriving and storing it on
// first use.
func (c *ColorCache) Get(service string) Color {
	if col, ok := c.colors[service]; ok {
		return col
	}
	col := ColorFromHash(service)
	c.colors[service] = col
	return col
}

// Set overrides the color for service.
func (c *ColorCache) Set(service string, col Color) {
	c.colors[service] = col
}

// Len is the number of cached services.
func (c *ColorCache) Len() int { return len(c.colors) }

// Reset drops every entry.
func (c *ColorCache) Reset() {
	clear(c.colors)
}
