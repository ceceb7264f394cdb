package tui

import (
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobert/traceview/internal/model"
)

const doc = `{"traces":[
 {"traceID":"t1","traceName":"demo","spans":[
  {"spanID":"1","operationName":"root","serviceName":"api","startTime":0,"duration":1000},
  {"spanID":"2","operationName":"child","serviceName":"db","startTime":200,"duration":300,"depth":1}]},
 {"traceID":"t2","traceName":"second","spans":[
  {"spanID":"3","operationName":"only","serviceName":"api","startTime":0,"duration":10}]}
]}`

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func send(t *testing.T, m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(Model)
	}
	return m, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelRendersLoadedTrace(t *testing.T) {
	m := New(Options{Path: writeDoc(t, doc)})
	assert.Equal(t, "loading...", m.View())

	m, _ = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Contains(t, m.grid.Row(0), "Trace: demo")
	assert.Contains(t, m.View(), "trace 1/2")
}

func TestModelLoadErrorShownInStatus(t *testing.T) {
	m := New(Options{Path: writeDoc(t, `{"traces":[{}]}`)})
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 80, Height: 20})
	assert.Contains(t, m.View(), "Error: ")
	assert.Empty(t, m.Viewer().Traces())
}

func TestModelKeys(t *testing.T) {
	m := New(Options{Path: writeDoc(t, doc)})
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	m, _ = send(t, m, runes("t"))
	assert.Equal(t, 1, m.Viewer().SelectedTrace())
	m, _ = send(t, m, runes("t"))
	assert.Equal(t, 0, m.Viewer().SelectedTrace())

	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlRight})
	assert.Equal(t, 0, m.Viewer().SelectedSpanIndex())
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, -1, m.Viewer().SelectedSpanIndex())

	shown := m.Viewer().ShowMinimap()
	m, _ = send(t, m, runes("m"))
	assert.Equal(t, !shown, m.Viewer().ShowMinimap())

	m, _ = send(t, m, runes("c"))
	assert.Empty(t, m.Viewer().Traces())

	_, cmd := send(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModelMouseSelectsSpan(t *testing.T) {
	m := New(Options{Path: writeDoc(t, doc)})
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	// Row 0 of the timeline sits on cell row 4.
	m, _ = send(t, m,
		tea.MouseMsg{X: 10, Y: 4, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress},
		tea.MouseMsg{X: 10, Y: 4, Button: tea.MouseButtonLeft, Action: tea.MouseActionRelease},
	)
	assert.Equal(t, 0, m.Viewer().SelectedSpanIndex())
	assert.Contains(t, m.Viewer().SelectedSpanDetails(), "Operation: root")
}

func TestModelDragShowsZoomHint(t *testing.T) {
	m := New(Options{Path: writeDoc(t, doc)})
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Contains(t, m.View(), "q quit")

	m, _ = send(t, m, tea.MouseMsg{X: 10, Y: 4, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	assert.True(t, m.Viewer().Selecting())
	assert.Contains(t, m.View(), "release to zoom")

	m, _ = send(t, m, tea.MouseMsg{X: 10, Y: 4, Button: tea.MouseButtonLeft, Action: tea.MouseActionRelease})
	assert.False(t, m.Viewer().Selecting())
	assert.NotContains(t, m.View(), "release to zoom")
}

func TestModelMouseWheelZooms(t *testing.T) {
	m := New(Options{Path: writeDoc(t, doc)})
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	before := m.Viewer().View().Range()

	m, _ = send(t, m, tea.MouseMsg{X: 40, Y: 6, Button: tea.MouseButtonWheelUp, Action: tea.MouseActionPress})
	assert.Less(t, m.Viewer().View().Range(), before)
}

func TestModelReload(t *testing.T) {
	path := writeDoc(t, doc)
	m := New(Options{Path: path})
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40}, runes("t"))

	m, _ = send(t, m, ReloadMsg{})
	assert.Equal(t, 1, m.Viewer().SelectedTrace(), "reload keeps the current trace")

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	m, _ = send(t, m, ReloadMsg{})
	assert.Contains(t, m.View(), "Error: ")
	assert.Len(t, m.Viewer().Traces(), 2, "failed reload keeps previous traces")
}

type fakeSource struct {
	version uint64
	traces  []model.Trace
}

func (f *fakeSource) Version() uint64       { return f.version }
func (f *fakeSource) Traces() []model.Trace { return f.traces }

func TestModelPollsLiveSource(t *testing.T) {
	src := &fakeSource{}
	m := New(Options{Source: src})
	require.NotNil(t, m.Init())
	assert.Empty(t, m.Viewer().Traces())

	src.version = 1
	src.traces = model.BuildTraces([]model.SpanRecord{
		{TraceID: "a", SpanID: "1", ServiceName: "api", Name: "GET", StartNano: 10, EndNano: 50},
	})
	m, cmd := send(t, m, tickMsg{})
	assert.NotNil(t, cmd)
	require.Len(t, m.Viewer().Traces(), 1)
	assert.Equal(t, "GET", m.Viewer().Traces()[0].TraceName)

	require.True(t, m.Viewer().SelectSpan(0))
	src.version = 2
	src.traces = model.BuildTraces([]model.SpanRecord{
		{TraceID: "b", SpanID: "7", ServiceName: "web", Name: "early", StartNano: 1, EndNano: 5},
		{TraceID: "a", SpanID: "1", ServiceName: "api", Name: "GET", StartNano: 10, EndNano: 50},
		{TraceID: "a", SpanID: "2", ParentID: "1", ServiceName: "db", Name: "query", StartNano: 20, EndNano: 30},
	})
	m, _ = send(t, m, tickMsg{})
	require.Len(t, m.Viewer().Traces(), 2)
	tr, ok := m.Viewer().Trace()
	require.True(t, ok)
	assert.Equal(t, "a", tr.TraceID, "poll keeps the current trace")
	span, ok := m.Viewer().SelectedSpan()
	require.True(t, ok)
	assert.Equal(t, "1", span.SpanID)
}
