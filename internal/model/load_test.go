package model

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeSpanDoc = `{
  "traces": [{
    "traceID": "t1",
    "traceName": "checkout",
    "spans": [
      {"spanID": "a", "operationName": "charge", "serviceName": "payments", "startTime": 100, "duration": 50, "depth": 1},
      {"spanID": "b", "operationName": "handle", "serviceName": "frontend", "startTime": 0, "duration": 30},
      {"spanID": "c", "operationName": "notify", "serviceName": "mailer", "startTime": 200, "duration": 10, "depth": 2}
    ]
  }]
}`

func TestParseScenario(t *testing.T) {
	traces, err := Parse([]byte(threeSpanDoc))
	require.NoError(t, err)
	require.Len(t, traces, 1)

	tr := traces[0]
	assert.Equal(t, "t1", tr.TraceID)
	assert.Equal(t, "checkout", tr.TraceName)
	assert.Equal(t, 3, tr.TotalSpans)
	assert.Equal(t, 210.0, tr.TotalDuration)
	assert.Equal(t, 0.0, tr.StartTime)

	var ids []string
	for _, s := range tr.Spans {
		ids = append(ids, s.SpanID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
	assert.Equal(t, 0.0, tr.Spans[0].StartTime)
	assert.Equal(t, 100.0, tr.Spans[1].StartTime)
	assert.Equal(t, 200.0, tr.Spans[2].StartTime)
	assert.Equal(t, uint32(0), tr.Spans[0].Depth)
	assert.Equal(t, uint32(2), tr.Spans[2].Depth)

	assert.Equal(t, 10.0, tr.MinDuration)
	assert.Equal(t, 50.0, tr.MaxDuration)
	assert.Equal(t, 0.0, tr.MinStartTime)
	assert.Equal(t, 200.0, tr.MaxStartTime)
}

func TestParseNormalizesOffsetTrace(t *testing.T) {
	doc := `{"traces":[{"traceID":"x","traceName":"x","spans":[
	  {"spanID":"1","operationName":"op","serviceName":"svc","startTime":5000,"duration":100},
	  {"spanID":"2","operationName":"op","serviceName":"svc","startTime":4000,"duration":2000},
	  {"spanID":"3","operationName":"op","serviceName":"svc","startTime":4500,"duration":10}
	]}]}`
	traces, err := Parse([]byte(doc))
	require.NoError(t, err)
	tr := traces[0]

	assert.Equal(t, 4000.0, tr.StartTime)
	assert.Equal(t, 2000.0, tr.TotalDuration)

	maxEnd := 0.0
	for i, s := range tr.Spans {
		if i > 0 && tr.Spans[i-1].StartTime > s.StartTime {
			t.Errorf("spans not sorted at %d", i)
		}
		maxEnd = max(maxEnd, s.End())
	}
	assert.Equal(t, 0.0, tr.Spans[0].StartTime)
	assert.Equal(t, tr.TotalDuration, maxEnd)
	assert.Equal(t, 1000.0, tr.MaxStartTime)
}

func TestParseTagsAttributesEvents(t *testing.T) {
	doc := `{"traces":[{"traceID":"t","traceName":"n","spans":[{
	  "spanID":"s","operationName":"op","serviceName":"svc","startTime":0,"duration":1,
	  "tags":[{"key":"http.method","value":"GET"}],
	  "attributes":{"zeta":"1","alpha":"2","mid":"3"},
	  "events":[{"name":"retry","timestamp":1234},{"name":"done"}]
	}]}]}`
	traces, err := Parse([]byte(doc))
	require.NoError(t, err)
	span := traces[0].Spans[0]

	assert.Equal(t, []Tag{
		{Key: "http.method", Value: "GET"},
		{Key: "zeta", Value: "1"},
		{Key: "alpha", Value: "2"},
		{Key: "mid", Value: "3"},
	}, span.Tags)
	assert.Equal(t, []string{"Event: retry (timestamp: 1234)", "Event: done"}, span.Logs)
}

func TestParseDepthRange(t *testing.T) {
	traces, err := Parse([]byte(`{"traces":[{"traceID":"t","traceName":"n","spans":[
	  {"spanID":"neg","operationName":"o","serviceName":"s","startTime":0,"duration":1,"depth":-3},
	  {"spanID":"frac","operationName":"o","serviceName":"s","startTime":1,"duration":1,"depth":2.7},
	  {"spanID":"huge","operationName":"o","serviceName":"s","startTime":2,"duration":1,"depth":1e12}]}]}`))
	require.NoError(t, err)

	depths := map[string]uint32{}
	for _, s := range traces[0].Spans {
		depths[s.SpanID] = s.Depth
	}
	assert.Equal(t, map[string]uint32{"neg": 0, "frac": 2, "huge": math.MaxUint32}, depths)
}

func TestParseMissingSpans(t *testing.T) {
	traces, err := Parse([]byte(`{"traces":[{"traceID":"t","traceName":"empty"}]}`))
	require.NoError(t, err)
	require.Len(t, traces, 1)

	tr := traces[0]
	assert.Empty(t, tr.Spans)
	assert.Equal(t, 0, tr.TotalSpans)
	assert.Equal(t, 0.0, tr.TotalDuration)
	assert.Equal(t, 0.0, tr.MinDuration)
	assert.Equal(t, 0.0, tr.MaxDuration)
	assert.Equal(t, 0.0, tr.MinStartTime)
	assert.Equal(t, 0.0, tr.MaxStartTime)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{"malformed", `{"traces": [`, "invalid trace JSON"},
		{"missing traceID", `{"traces":[{"traceName":"n"}]}`, `"traceID"`},
		{"missing traceName", `{"traces":[{"traceID":"t"}]}`, `"traceName"`},
		{"missing duration", `{"traces":[{"traceID":"t","traceName":"n","spans":[
		  {"spanID":"s","operationName":"op","serviceName":"svc","startTime":0}]}]}`, `"duration" in trace 0 span 0`},
		{"missing spanID in second trace", `{"traces":[
		  {"traceID":"ok","traceName":"ok","spans":[]},
		  {"traceID":"t","traceName":"n","spans":[{"operationName":"op","serviceName":"svc","startTime":0,"duration":1}]}]}`, `"spanID" in trace 1`},
		{"non-string attribute", `{"traces":[{"traceID":"t","traceName":"n","spans":[
		  {"spanID":"s","operationName":"op","serviceName":"svc","startTime":0,"duration":1,"attributes":{"n":5}}]}]}`, "invalid trace JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			traces, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Nil(t, traces)

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "expected ParseError, got %T", err)
			assert.True(t, strings.HasPrefix(err.Error(), "Error: "))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(threeSpanDoc), 0o644))
	traces, err := LoadFile(good)
	require.NoError(t, err)
	assert.Len(t, traces, 1)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = LoadFile(empty)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.True(t, ioErr.Empty)
	assert.Equal(t, "Error: File "+empty+" is empty", err.Error())
	assert.ErrorIs(t, err, ErrEmptyFile)

	missing := filepath.Join(dir, "nope.json")
	_, err = LoadFile(missing)
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "Error: Cannot open file "+missing, err.Error())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSpanDetails(t *testing.T) {
	s := Span{
		SpanID:        "abc",
		OperationName: "GET /users",
		ServiceName:   "api",
		StartTime:     1500000,
		Duration:      250.5,
		Depth:         2,
		Tags:          []Tag{{Key: "http.status_code", Value: "200"}},
		Logs:          []string{"Event: cache miss"},
	}
	want := "Span {\n" +
		"  ID: abc\n" +
		"  Operation: GET /users\n" +
		"  Service: api\n" +
		"  Start Time: 1500000ns\n" +
		"  Duration: 250.5ns\n" +
		"  Depth: 2\n" +
		"  Tags:\n" +
		"    http.status_code: 200\n" +
		"  Logs:\n" +
		"    Event: cache miss\n" +
		"}"
	assert.Equal(t, want, s.Details())

	bare := Span{SpanID: "x"}
	assert.NotContains(t, bare.Details(), "Tags:")
	assert.NotContains(t, bare.Details(), "Logs:")
}

func TestTraceServices(t *testing.T) {
	traces, err := Parse([]byte(threeSpanDoc))
	require.NoError(t, err)
	assert.Equal(t, []string{"frontend", "payments", "mailer"}, traces[0].Services())
}

func TestCloneTracesIsDeep(t *testing.T) {
	traces, err := Parse([]byte(`{"traces":[{"traceID":"t","traceName":"n","spans":[
		{"spanID":"a","operationName":"op","serviceName":"svc","startTime":0,"duration":5,"tags":[{"key":"k","value":"v"}]}]}]}`))
	require.NoError(t, err)

	clone := CloneTraces(traces)
	clone[0].Spans[0].Selected = true
	clone[0].Spans[0].Tags[0].Value = "changed"

	assert.False(t, traces[0].Spans[0].Selected)
	assert.Equal(t, "v", traces[0].Spans[0].Tags[0].Value)
	assert.Nil(t, CloneTraces(nil))
}
