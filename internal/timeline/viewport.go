package timeline

// Viewport is the visible time window [Start, End] in nanoseconds.
//
// Navigation methods return a new Viewport and never mutate the receiver.
// Clamping can collapse a window (a zero-width drag at the trace edge, for
// instance), so callers check Valid before adopting the result.
type Viewport struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// FullView covers a whole trace.
func FullView(total float64) Viewport {
	return Viewport{Start: 0, End: total}
}

// Range is End - Start.
func (v Viewport) Range() float64 { return v.End - v.Start }

// Valid reports 0 <= Start < End.
func (v Viewport) Valid() bool {
	return v.Start >= 0 && v.Start < v.End
}

// Contains reports whether any part of [start, start+dur] is visible.
func (v Viewport) Contains(start, dur float64) bool {
	return !(start+dur < v.Start || start > v.End)
}

// ScrollLeft shifts the window left by pct of its width, stopping at 0
// without shrinking.
func (v Viewport) ScrollLeft(pct float64) Viewport {
	r := v.Range()
	amt := r * pct
	return Viewport{
		Start: max(0, v.Start-amt),
		End:   max(r, v.End-amt),
	}
}

// ScrollRight shifts the window right by pct of its width, stopping at
// total without shrinking.
func (v Viewport) ScrollRight(pct, total float64) Viewport {
	r := v.Range()
	amt := r * pct
	return Viewport{
		Start: min(total-r, v.Start+amt),
		End:   min(total, v.End+amt),
	}
}

// Zoom scales the window by factor around the time at ratio (0..1) of the
// current width, so that time stays put on screen.
func (v Viewport) Zoom(ratio, factor, total float64) Viewport {
	r := v.Range()
	anchor := Interpolate(v.Start, v.End, ratio)
	start := max(0, anchor-(anchor-v.Start)*factor)
	return Viewport{
		Start: start,
		End:   min(total, start+r*factor),
	}
}

// ZoomToPixels narrows the window to the pixel span [x0, x1] of a canvas.
func (v Viewport) ZoomToPixels(x0, x1, canvasX, canvasWidth, total float64) Viewport {
	lo, hi := min(x0, x1), max(x0, x1)
	return Viewport{
		Start: max(0, PixelToTime(lo, canvasX, canvasWidth, v.Start, v.End)),
		End:   min(total, PixelToTime(hi, canvasX, canvasWidth, v.Start, v.End)),
	}
}

// CenterOn keeps the width and recentres the window on t, then clamps it
// to [0, total].
func (v Viewport) CenterOn(t, total float64) Viewport {
	half := v.Range() / 2
	return Viewport{
		Start: max(0, t-half),
		End:   min(total, t+half),
	}
}
