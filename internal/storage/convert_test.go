package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/tobert/traceview/internal/model"
)

func TestAnyValueString(t *testing.T) {
	tests := []struct {
		name  string
		value *commonpb.AnyValue
		want  string
	}{
		{"nil", nil, ""},
		{"string", &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: "hi"}}, "hi"},
		{"int", &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: 404}}, "404"},
		{"double", &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: 1.5}}, "1.5"},
		{"bool", &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: true}}, "true"},
		{"bytes", &commonpb.AnyValue{Value: &commonpb.AnyValue_BytesValue{BytesValue: []byte{0xbe, 0xef}}}, "beef"},
		{"array", &commonpb.AnyValue{Value: &commonpb.AnyValue_ArrayValue{ArrayValue: &commonpb.ArrayValue{
			Values: []*commonpb.AnyValue{
				{Value: &commonpb.AnyValue_IntValue{IntValue: 1}},
				{Value: &commonpb.AnyValue_StringValue{StringValue: "x"}},
			},
		}}}, "[1, x]"},
		{"kvlist", &commonpb.AnyValue{Value: &commonpb.AnyValue_KvlistValue{KvlistValue: &commonpb.KeyValueList{
			Values: []*commonpb.KeyValue{strAttr("k", "v")},
		}}}, "{k=v}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, anyValueString(tt.value))
		})
	}
}

func TestSpanRecords(t *testing.T) {
	span := makeSpan(7, 2, 1, "charge", 100, 250)
	span.Kind = tracepb.Span_SPAN_KIND_SERVER
	span.Attributes = []*commonpb.KeyValue{strAttr("http.route", "/pay")}
	span.Status = &tracepb.Status{Code: tracepb.Status_STATUS_CODE_ERROR, Message: "declined"}
	span.Events = []*tracepb.Span_Event{{Name: "retry", TimeUnixNano: 200}}

	recs := SpanRecords([]*tracepb.ResourceSpans{makeResourceSpans("payments", span)})
	require.Len(t, recs, 1)
	rec := recs[0]

	assert.Equal(t, "07000000000000000000000000000001", rec.TraceID)
	assert.Equal(t, "0200000000000001", rec.SpanID)
	assert.Equal(t, "0100000000000001", rec.ParentID)
	assert.Equal(t, "payments", rec.ServiceName)
	assert.Equal(t, []model.Tag{
		{Key: "span.kind", Value: "server"},
		{Key: "http.route", Value: "/pay"},
		{Key: "status.code", Value: "ERROR"},
		{Key: "status.message", Value: "declined"},
	}, rec.Attributes)
	assert.Equal(t, []model.EventRecord{{Name: "retry", TimeNano: 200}}, rec.Events)
}

func TestExtractServiceNameDefault(t *testing.T) {
	assert.Equal(t, "unknown", extractServiceName(nil))
	recs := SpanRecords([]*tracepb.ResourceSpans{{ScopeSpans: []*tracepb.ScopeSpans{{Spans: []*tracepb.Span{makeSpan(1, 1, 0, "x", 0, 1)}}}}})
	require.Len(t, recs, 1)
	assert.Equal(t, "unknown", recs[0].ServiceName)
}
