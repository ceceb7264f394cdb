package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobert/traceview/internal/model"
)

func parseTraces(t *testing.T, doc string) []model.Trace {
	t.Helper()
	traces, err := model.Parse([]byte(doc))
	require.NoError(t, err)
	return traces
}

const refreshBefore = `{"traces":[
  {"traceID":"1","traceName":"one","spans":[
    {"spanID":"a","operationName":"op","serviceName":"s","startTime":0,"duration":100}]},
  {"traceID":"2","traceName":"two","spans":[
    {"spanID":"b","operationName":"op","serviceName":"s","startTime":1000,"duration":4000},
    {"spanID":"c","operationName":"op","serviceName":"s","startTime":2000,"duration":500}]}
]}`

const refreshAfter = `{"traces":[
  {"traceID":"2","traceName":"two","spans":[
    {"spanID":"b","operationName":"op","serviceName":"s","startTime":1000,"duration":4000},
    {"spanID":"c","operationName":"op","serviceName":"s","startTime":2000,"duration":500},
    {"spanID":"d","operationName":"op","serviceName":"s","startTime":3000,"duration":3000}]},
  {"traceID":"3","traceName":"three","spans":[
    {"spanID":"e","operationName":"op","serviceName":"s","startTime":0,"duration":10}]}
]}`

func TestRefreshTracesFollowsCurrentTrace(t *testing.T) {
	v := NewViewer(DefaultViewerConfig())
	v.SetTraces(parseTraces(t, refreshBefore))
	require.True(t, v.SelectTrace(1))
	require.True(t, v.SelectSpan(1))
	v.SetMinTimeFilter(200)

	v.RefreshTraces(parseTraces(t, refreshAfter))

	tr, ok := v.Trace()
	require.True(t, ok)
	assert.Equal(t, "2", tr.TraceID)
	assert.Equal(t, 0, v.SelectedTrace())
	span, ok := v.SelectedSpan()
	require.True(t, ok)
	assert.Equal(t, "c", span.SpanID)
	assert.Equal(t, v.SelectedSpanDetails(), span.Details())

	// A full view keeps showing the whole, now longer, trace.
	assert.Equal(t, Viewport{Start: 0, End: 5000}, v.View())

	cfg := v.Config()
	assert.Equal(t, 200.0, cfg.MinTimeFilter)
	assert.Equal(t, 2000.0, cfg.TimeSliderMaxBound)
	assert.Equal(t, 2000.0, cfg.MaxTimeFilter, "filter at the bound follows it")
	assert.Equal(t, cfg.SliderMinBound, cfg.MinDurationFilter)
}

func TestRefreshTracesClampsZoomedView(t *testing.T) {
	v := NewViewer(DefaultViewerConfig())
	v.SetTraces(parseTraces(t, refreshAfter))
	require.True(t, v.SetView(Viewport{Start: 1000, End: 4500}))

	v.RefreshTraces(parseTraces(t, refreshBefore))
	tr, _ := v.Trace()
	assert.Equal(t, "2", tr.TraceID)
	assert.Equal(t, Viewport{Start: 1000, End: 4000}, v.View())
}

func TestRefreshTracesCurrentTraceGone(t *testing.T) {
	v := NewViewer(DefaultViewerConfig())
	v.SetTraces(parseTraces(t, refreshBefore))
	require.True(t, v.SelectTrace(1))
	require.True(t, v.SelectSpan(0))

	v.RefreshTraces(parseTraces(t, `{"traces":[{"traceID":"1","traceName":"one","spans":[
	  {"spanID":"a","operationName":"op","serviceName":"s","startTime":0,"duration":100}]}]}`))

	tr, ok := v.Trace()
	require.True(t, ok)
	assert.Equal(t, "1", tr.TraceID)
	assert.Equal(t, -1, v.SelectedSpanIndex())
	assert.Equal(t, Viewport{Start: 0, End: 100}, v.View())
}
