// Package tui hosts the timeline viewer in a terminal with bubbletea.
// Draw calls land on a cell grid where each cell covers an 8x16 pixel
// block; keys and mouse events are translated into timeline input.
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tobert/traceview/internal/filereader"
	"github.com/tobert/traceview/internal/model"
	"github.com/tobert/traceview/internal/timeline"
)

// TraceSource supplies live traces. storage.SpanStore implements it.
type TraceSource interface {
	Version() uint64
	Traces() []model.Trace
}

// Options configures a terminal session.
type Options struct {
	// Path is a trace JSON file loaded at start and on ReloadMsg.
	Path string
	// Watch reloads Path whenever it changes on disk.
	Watch bool
	// Source is polled every Poll for new live traces.
	Source TraceSource
	Poll   time.Duration
	// Config overrides CellConfig when non-nil.
	Config *timeline.ViewerConfig
}

// ReloadMsg asks the model to reload its trace file.
type ReloadMsg struct{}

type tickMsg time.Time

// CellConfig adapts the stock layout so bars, labels and grid text land
// on whole cells.
func CellConfig() timeline.ViewerConfig {
	cfg := timeline.DefaultViewerConfig()
	cfg.SpanHeight = CellHeight
	cfg.SpanSpacing = 2 * CellHeight
	cfg.MinSpanWidth = CellWidth
	cfg.DepthIndentation = 2 * CellWidth
	cfg.MinTextWidth = 3 * CellWidth
	cfg.TextOffsetX = CellWidth
	cfg.TextOffsetY = CellHeight / 2
	cfg.SpanLabelMargin = CellWidth
	cfg.SpanLabelYOffset = CellHeight + CellHeight/2
	cfg.GridTextOffset = 0
	cfg.GridTextYOffset = 0
	cfg.TimelineTopMargin = CellHeight
	cfg.TimelineBottomMargin = CellHeight
	cfg.TimelineContentOffset = 4*CellHeight + CellHeight/2
	cfg.TimelineContentMargin = CellHeight
	cfg.DetailsLineHeight = CellHeight
	cfg.MinimapSpanHeight = CellHeight / 2
	cfg.MinimapRowGap = CellHeight / 2
	cfg.MinimapTopMargin = CellHeight
	cfg.MinimapMinWidth = CellWidth
	cfg.MinimapDepthIndent = 0
	cfg.MinimapDockMinHeight = 3 * CellHeight
	cfg.MinimapDockMinWidth = 12 * CellWidth
	cfg.MinSelectionWidth = CellWidth
	return cfg
}

var (
	statusStyle = lipgloss.NewStyle().Reverse(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true)
)

// Model is the bubbletea model wrapping a timeline.Viewer.
type Model struct {
	viewer *timeline.Viewer
	grid   *Grid
	input  *timeline.InputState
	opts   Options

	status      string
	lastVersion uint64
	frame       string
}

// New creates the model and performs the initial load.
func New(opts Options) Model {
	cfg := CellConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if opts.Poll <= 0 {
		opts.Poll = 500 * time.Millisecond
	}
	m := Model{
		viewer: timeline.NewViewer(cfg),
		input:  &timeline.InputState{HasFocus: true},
		opts:   opts,
	}
	switch {
	case opts.Path != "":
		m.status = m.viewer.LoadFromFile(opts.Path)
	case opts.Source != nil:
		m.lastVersion = opts.Source.Version()
		m.viewer.SetTraces(opts.Source.Traces())
	}
	return m
}

// Viewer exposes the wrapped viewer.
func (m Model) Viewer() *timeline.Viewer { return m.viewer }

func (m Model) Init() tea.Cmd {
	if m.opts.Source != nil {
		return m.tickCmd()
	}
	return nil
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.Poll, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.grid = NewGrid(msg.Width, msg.Height-1, m.viewer.Colors().PanelBg)

	case tea.KeyMsg:
		if quit := m.handleKey(msg.String()); quit {
			return m, tea.Quit
		}

	case tea.MouseMsg:
		m.handleMouse(msg)

	case tickMsg:
		m.poll()
		cmd = m.tickCmd()

	case ReloadMsg:
		if m.opts.Path != "" {
			traces, err := model.LoadFile(m.opts.Path)
			if err != nil {
				m.status = err.Error()
				break
			}
			m.status = ""
			m.viewer.RefreshTraces(traces)
		}
	}

	m.frame = m.draw()
	m.input.EndFrame()
	m.input.Ctrl = false
	return m, cmd
}

// handleKey applies a key and reports whether the program should exit.
func (m *Model) handleKey(key string) bool {
	v := m.viewer
	switch key {
	case "q", "ctrl+c":
		return true
	case "esc":
		m.input.Press(timeline.KeyEscape)
	case "left":
		m.input.Press(timeline.KeyLeft)
	case "right":
		m.input.Press(timeline.KeyRight)
	case "ctrl+left":
		m.input.Ctrl = true
		m.input.Press(timeline.KeyLeft)
	case "ctrl+right":
		m.input.Ctrl = true
		m.input.Press(timeline.KeyRight)
	case "up":
		m.input.Press(timeline.KeyUp)
	case "down":
		m.input.Press(timeline.KeyDown)
	case "t":
		if n := len(v.Traces()); n > 0 {
			v.SelectTrace((v.SelectedTrace() + 1) % n)
		}
	case "r":
		v.ResetZoom()
	case "m":
		v.ToggleMinimap()
	case "c":
		v.ClearAll()
		m.status = ""
	case "x":
		v.CenterOnSelected()
	case "d":
		v.Deselect()
	case "+", "=":
		v.ScrollZoom(0.5, 1)
	case "-":
		v.ScrollZoom(0.5, -1)
	}
	return false
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	m.input.Mouse = timeline.Point{
		X: float64(msg.X*CellWidth + CellWidth/2),
		Y: float64(msg.Y*CellHeight + CellHeight/2),
	}
	m.input.Ctrl = msg.Ctrl
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.input.Wheel++
	case tea.MouseButtonWheelDown:
		m.input.Wheel--
	case tea.MouseButtonLeft:
		switch msg.Action {
		case tea.MouseActionPress:
			m.input.Click(timeline.MousePrimary, m.input.Mouse)
		case tea.MouseActionRelease:
			m.input.Release(timeline.MousePrimary, m.input.Mouse)
		}
	case tea.MouseButtonNone:
		if msg.Action == tea.MouseActionRelease {
			// Some terminals report releases without a button.
			m.input.Release(timeline.MousePrimary, m.input.Mouse)
		}
	}
}

func (m *Model) poll() {
	src := m.opts.Source
	if src == nil {
		return
	}
	version := src.Version()
	if version == m.lastVersion {
		return
	}
	m.lastVersion = version
	m.viewer.RefreshTraces(src.Traces())
}

func (m Model) draw() string {
	if m.grid == nil {
		return ""
	}
	m.grid.Clear()
	cfg := m.viewer.Config()
	panes := timeline.SplitWindow(m.grid.Bounds(), m.viewer.ShowMinimap(), &cfg)
	m.viewer.Render(timeline.Frame{
		Surface:  m.grid,
		Input:    m.input,
		Timeline: panes.Timeline,
		Minimap:  panes.Minimap,
		Details:  panes.Details,
	})
	return m.grid.Render() + "\n" + m.statusLine()
}

func (m Model) statusLine() string {
	pos := "no traces"
	if n := len(m.viewer.Traces()); n > 0 {
		pos = fmt.Sprintf("trace %d/%d", m.viewer.SelectedTrace()+1, n)
	}
	keys := "t next  r reset  m minimap  c clear  x center  q quit"
	if m.viewer.Selecting() {
		keys = "release to zoom"
	}
	line := statusStyle.Render(fmt.Sprintf(" traceview  %s │ %s ", pos, keys))
	if m.status != "" {
		line += " " + errorStyle.Render(m.status)
	}
	return line
}

func (m Model) View() string {
	if m.frame == "" {
		return "loading..."
	}
	return m.frame
}

// Run starts a full-screen terminal session and blocks until the user
// quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	if opts.Path != "" && opts.Watch {
		err := filereader.Watch(ctx, opts.Path, filereader.DefaultDebounce, func() {
			p.Send(ReloadMsg{})
		})
		if err != nil {
			return fmt.Errorf("watch %s: %w", opts.Path, err)
		}
	}

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal session: %w", err)
	}
	return nil
}
