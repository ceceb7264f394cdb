package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorChannels(t *testing.T) {
	c := RGBA(1, 2, 3, 4)
	assert.Equal(t, Color(0x01020304), c)
	assert.Equal(t, uint8(1), c.R())
	assert.Equal(t, uint8(2), c.G())
	assert.Equal(t, uint8(3), c.B())
	assert.Equal(t, uint8(4), c.A())
	assert.Equal(t, "rgba(1,2,3,0.016)", c.Hex())
}

func TestDarken(t *testing.T) {
	c := Darken(RGBA(10, 20, 30, 255), 0.9)
	assert.Equal(t, RGBA(10, 20, 30, 25), c)
	assert.Equal(t, RGBA(10, 20, 30, 0), Darken(RGBA(10, 20, 30, 255), 1))
}

func TestBrighten(t *testing.T) {
	tests := []struct {
		name string
		in   Color
		want Color
	}{
		{"dark floors at 100", RGBA(0, 10, 50, 200), RGBA(100, 100, 100, 200)},
		{"mid scales", RGBA(100, 150, 80, 255), RGBA(140, 210, 112, 255)},
		{"bright caps at 255", RGBA(200, 255, 190, 255), RGBA(255, 255, 255, 255)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Brighten(tt.in, 1.4))
		})
	}
}

func TestColorCache(t *testing.T) {
	cache := NewColorCache()
	first := cache.Get("payments")
	assert.Equal(t, first, cache.Get("payments"))
	assert.Equal(t, ColorFromHash("payments"), first)
	assert.Equal(t, uint8(255), first.A())
	assert.Equal(t, 1, cache.Len())

	cache.Set("payments", RGBA(1, 1, 1, 255))
	assert.Equal(t, RGBA(1, 1, 1, 255), cache.Get("payments"))

	cache.Get("frontend")
	assert.Equal(t, 2, cache.Len())
	cache.Reset()
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, ColorFromHash("payments"), cache.Get("payments"))
}
