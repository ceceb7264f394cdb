package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTracesDepthAndNormalization(t *testing.T) {
	records := []SpanRecord{
		{TraceID: "t1", SpanID: "child", ParentID: "root", ServiceName: "db", Name: "query", StartNano: 1_000_200, EndNano: 1_000_700},
		{TraceID: "t1", SpanID: "root", ServiceName: "api", Name: "GET /", StartNano: 1_000_000, EndNano: 1_001_000},
		{TraceID: "t1", SpanID: "grand", ParentID: "child", ServiceName: "db", Name: "fetch", StartNano: 1_000_300, EndNano: 1_000_400,
			Events: []EventRecord{{Name: "rows", TimeNano: 1_000_350}}},
		{TraceID: "t1", SpanID: "orphan", ParentID: "missing", ServiceName: "worker", Name: "job", StartNano: 1_000_900, EndNano: 1_000_800},
	}

	traces := BuildTraces(records)
	require.Len(t, traces, 1)
	tr := traces[0]

	assert.Equal(t, "GET /", tr.TraceName)
	assert.Equal(t, 1_000_000.0, tr.StartTime)
	assert.Equal(t, 1000.0, tr.TotalDuration)
	assert.Equal(t, 4, tr.TotalSpans)

	depths := map[string]uint32{}
	for _, s := range tr.Spans {
		depths[s.SpanID] = s.Depth
	}
	assert.Equal(t, map[string]uint32{"root": 0, "child": 1, "grand": 2, "orphan": 0}, depths)

	assert.Equal(t, "root", tr.Spans[0].SpanID)
	assert.Equal(t, 0.0, tr.Spans[0].StartTime)
	// end before start clamps to zero duration
	assert.Equal(t, 0.0, tr.Spans[3].Duration)
	assert.Equal(t, []string{"Event: rows (timestamp: 1000350)"}, tr.Spans[2].Logs)
}

func TestBuildTracesOrdersByStart(t *testing.T) {
	records := []SpanRecord{
		{TraceID: "late", SpanID: "a", Name: "late-root", StartNano: 500, EndNano: 600},
		{TraceID: "early", SpanID: "b", Name: "early-root", StartNano: 100, EndNano: 200},
	}
	traces := BuildTraces(records)
	require.Len(t, traces, 2)
	assert.Equal(t, "early", traces[0].TraceID)
	assert.Equal(t, "late", traces[1].TraceID)
}

func TestBuildTracesParentCycle(t *testing.T) {
	records := []SpanRecord{
		{TraceID: "t", SpanID: "a", ParentID: "b", Name: "a", StartNano: 1, EndNano: 2},
		{TraceID: "t", SpanID: "b", ParentID: "a", Name: "b", StartNano: 2, EndNano: 3},
	}
	traces := BuildTraces(records)
	require.Len(t, traces, 1)
	// no root: falls back to the trace id
	assert.Equal(t, "t", traces[0].TraceName)
	for _, s := range traces[0].Spans {
		assert.LessOrEqual(t, s.Depth, uint32(2))
	}
}

func TestBuildTracesEpochTimestamps(t *testing.T) {
	const base = uint64(1_700_000_000_000_000_000)
	records := []SpanRecord{
		{TraceID: "t", SpanID: "root", Name: "root", StartNano: base, EndNano: base + 150_000_000},
		{TraceID: "t", SpanID: "child", ParentID: "root", Name: "child", StartNano: base + 10_000_001, EndNano: base + 10_000_004,
			Events: []EventRecord{{Name: "tick", TimeNano: base + 7}}},
	}

	traces := BuildTraces(records)
	require.Len(t, traces, 1)
	tr := traces[0]

	assert.Equal(t, 150_000_000.0, tr.TotalDuration)
	assert.Equal(t, 0.0, tr.Spans[0].StartTime)
	assert.Equal(t, 10_000_001.0, tr.Spans[1].StartTime)
	assert.Equal(t, 3.0, tr.Spans[1].Duration)
	assert.Equal(t, 10_000_001.0, tr.MaxStartTime)
	assert.Equal(t, []string{"Event: tick (timestamp: 1700000000000000007)"}, tr.Spans[1].Logs)
}
