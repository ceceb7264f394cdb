package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// ParseError reports malformed or incomplete trace JSON.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Error: %s: %v", e.Msg, e.Err)
	}
	return "Error: " + e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// IOError reports a trace file that cannot be opened or holds no data.
type IOError struct {
	Path  string
	Empty bool
	Err   error
}

func (e *IOError) Error() string {
	if e.Empty {
		return fmt.Sprintf("Error: File %s is empty", e.Path)
	}
	return fmt.Sprintf("Error: Cannot open file %s", e.Path)
}

func (e *IOError) Unwrap() error { return e.Err }

// ErrEmptyFile is wrapped by IOError when the file has no content.
var ErrEmptyFile = errors.New("empty file")

type rawDocument struct {
	Traces []rawTrace `json:"traces"`
}

type rawTrace struct {
	TraceID   *string   `json:"traceID"`
	TraceName *string   `json:"traceName"`
	Spans     []rawSpan `json:"spans"`
}

type rawSpan struct {
	SpanID        *string    `json:"spanID"`
	OperationName *string    `json:"operationName"`
	ServiceName   *string    `json:"serviceName"`
	StartTime     *float64   `json:"startTime"`
	Duration      *float64   `json:"duration"`
	Depth         *float64   `json:"depth"`
	Tags          []Tag      `json:"tags"`
	Attributes    attributes `json:"attributes"`
	Events        []rawEvent `json:"events"`
}

type rawEvent struct {
	Name      string   `json:"name"`
	Timestamp *float64 `json:"timestamp"`
}

// attributes decodes a flat string map while keeping document order,
// which a Go map would lose.
type attributes []Tag

func (a *attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("attributes must be an object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("attribute %q: %w", key, err)
		}
		*a = append(*a, Tag{Key: key, Value: value})
	}
	_, err = dec.Token()
	return err
}

// Parse decodes a trace document and returns its normalized traces.
// Any malformed span aborts the whole document; nothing partial is
// returned alongside an error.
func Parse(data []byte) ([]Trace, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Msg: "invalid trace JSON", Err: err}
	}

	traces := make([]Trace, 0, len(doc.Traces))
	for ti, rt := range doc.Traces {
		if rt.TraceID == nil {
			return nil, missingField("traceID", ti, -1)
		}
		if rt.TraceName == nil {
			return nil, missingField("traceName", ti, -1)
		}

		trace := Trace{
			TraceID:   *rt.TraceID,
			TraceName: *rt.TraceName,
			Spans:     make([]Span, 0, len(rt.Spans)),
		}
		for si, rs := range rt.Spans {
			span, err := rs.toSpan(ti, si)
			if err != nil {
				return nil, err
			}
			trace.Spans = append(trace.Spans, span)
		}
		trace.normalize()
		traces = append(traces, trace)
	}
	return traces, nil
}

func (rs rawSpan) toSpan(ti, si int) (Span, error) {
	switch {
	case rs.SpanID == nil:
		return Span{}, missingField("spanID", ti, si)
	case rs.OperationName == nil:
		return Span{}, missingField("operationName", ti, si)
	case rs.ServiceName == nil:
		return Span{}, missingField("serviceName", ti, si)
	case rs.StartTime == nil:
		return Span{}, missingField("startTime", ti, si)
	case rs.Duration == nil:
		return Span{}, missingField("duration", ti, si)
	}

	span := Span{
		SpanID:        *rs.SpanID,
		OperationName: *rs.OperationName,
		ServiceName:   *rs.ServiceName,
		StartTime:     *rs.StartTime,
		Duration:      *rs.Duration,
	}
	if rs.Depth != nil && *rs.Depth > 0 {
		span.Depth = uint32(min(*rs.Depth, math.MaxUint32))
	}

	span.Tags = make([]Tag, 0, len(rs.Tags)+len(rs.Attributes))
	span.Tags = append(span.Tags, rs.Tags...)
	span.Tags = append(span.Tags, rs.Attributes...)

	for _, ev := range rs.Events {
		span.Logs = append(span.Logs, EventLine(ev.Name, ev.Timestamp))
	}
	return span, nil
}

// EventLine formats a span event as a human readable log line.
func EventLine(name string, timestamp *float64) string {
	if timestamp == nil {
		return "Event: " + name
	}
	return fmt.Sprintf("Event: %s (timestamp: %d)", name, int64(*timestamp))
}

func missingField(name string, ti, si int) error {
	if si < 0 {
		return &ParseError{Msg: fmt.Sprintf("missing required field %q in trace %d", name, ti)}
	}
	return &ParseError{Msg: fmt.Sprintf("missing required field %q in trace %d span %d", name, ti, si)}
}

// LoadFile reads a trace document from disk and parses it.
func LoadFile(path string) ([]Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	if len(data) == 0 {
		return nil, &IOError{Path: path, Empty: true, Err: ErrEmptyFile}
	}
	return Parse(data)
}
