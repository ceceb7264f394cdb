package timeline

// Surface is the drawing capability a host provides for one frame.
type Surface interface {
	FillRect(r Rect, c Color)
	StrokeRect(r Rect, c Color, thickness float64)
	Line(from, to Point, c Color)
	Text(at Point, c Color, s string)
	MeasureText(s string) float64
}

// MouseButton identifies a pointer button.
type MouseButton int

const (
	MousePrimary MouseButton = iota
	MouseSecondary
)

// Key identifies the keys the timeline reacts to.
type Key int

const (
	KeyEscape Key = iota
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
)

// Input answers the per-frame input queries. Clicked and Released report
// edges that happened since the previous frame.
type Input interface {
	MousePos() Point
	MouseClicked(b MouseButton) bool
	MouseReleased(b MouseButton) bool
	MouseWheel() float64
	KeyPressed(k Key) bool
	CtrlHeld() bool
	// Focused reports whether the timeline canvas owns keyboard focus.
	Focused() bool
}

// Frame is everything Render needs from the host for one frame. A zero
// Minimap or Details rectangle hides that panel.
type Frame struct {
	Surface  Surface
	Input    Input
	Timeline Rect
	Minimap  Rect
	Details  Rect
}

// NoInput is an Input with nothing happening, for headless renders.
type NoInput struct{}

func (NoInput) MousePos() Point                { return Point{X: -1, Y: -1} }
func (NoInput) MouseClicked(MouseButton) bool  { return false }
func (NoInput) MouseReleased(MouseButton) bool { return false }
func (NoInput) MouseWheel() float64            { return 0 }
func (NoInput) KeyPressed(Key) bool            { return false }
func (NoInput) CtrlHeld() bool                 { return false }
func (NoInput) Focused() bool                  { return false }

// InputState is a plain-data Input, filled in by hosts that receive
// events as messages.
type InputState struct {
	Mouse    Point
	Clicked  map[MouseButton]bool
	Released map[MouseButton]bool
	Wheel    float64
	Keys     map[Key]bool
	Ctrl     bool
	HasFocus bool
}

func (s *InputState) MousePos() Point                  { return s.Mouse }
func (s *InputState) MouseClicked(b MouseButton) bool  { return s.Clicked[b] }
func (s *InputState) MouseReleased(b MouseButton) bool { return s.Released[b] }
func (s *InputState) MouseWheel() float64              { return s.Wheel }
func (s *InputState) KeyPressed(k Key) bool            { return s.Keys[k] }
func (s *InputState) CtrlHeld() bool                   { return s.Ctrl }
func (s *InputState) Focused() bool                    { return s.HasFocus }

// Press records a key press for the next frame.
func (s *InputState) Press(k Key) {
	if s.Keys == nil {
		s.Keys = make(map[Key]bool)
	}
	s.Keys[k] = true
}

// Click records a button press at p.
func (s *InputState) Click(b MouseButton, p Point) {
	if s.Clicked == nil {
		s.Clicked = make(map[MouseButton]bool)
	}
	s.Mouse = p
	s.Clicked[b] = true
}

// Release records a button release at p.
func (s *InputState) Release(b MouseButton, p Point) {
	if s.Released == nil {
		s.Released = make(map[MouseButton]bool)
	}
	s.Mouse = p
	s.Released[b] = true
}

// EndFrame clears the edge-triggered state, keeping the pointer position
// and modifiers.
func (s *InputState) EndFrame() {
	clear(s.Clicked)
	clear(s.Released)
	clear(s.Keys)
	s.Wheel = 0
}
