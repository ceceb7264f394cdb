package imagesurface

import (
	"github.com/tobert/traceview/internal/timeline"
)

// Snapshot renders one frame of v, without input, onto a new w x h
// surface docked with timeline.SplitWindow.
func Snapshot(v *timeline.Viewer, w, h int) *Surface {
	s := New(w, h)
	cfg := v.Config()
	panes := timeline.SplitWindow(s.Bounds(), v.ShowMinimap(), &cfg)
	v.Render(timeline.Frame{
		Surface:  s,
		Input:    timeline.NoInput{},
		Timeline: panes.Timeline,
		Minimap:  panes.Minimap,
		Details:  panes.Details,
	})
	return s
}
