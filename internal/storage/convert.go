package storage

import (
	"encoding/hex"
	"strconv"
	"strings"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/tobert/traceview/internal/model"
)

// SpanRecords flattens OTLP resource spans into model records, one per
// span, with the resource's service.name attached.
func SpanRecords(resourceSpans []*tracepb.ResourceSpans) []model.SpanRecord {
	var out []model.SpanRecord
	for _, rs := range resourceSpans {
		service := extractServiceName(rs.GetResource())
		for _, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				out = append(out, spanRecord(service, span))
			}
		}
	}
	return out
}

func spanRecord(service string, span *tracepb.Span) model.SpanRecord {
	rec := model.SpanRecord{
		TraceID:     hex.EncodeToString(span.GetTraceId()),
		SpanID:      hex.EncodeToString(span.GetSpanId()),
		ParentID:    hex.EncodeToString(span.GetParentSpanId()),
		ServiceName: service,
		Name:        span.GetName(),
		StartNano:   span.GetStartTimeUnixNano(),
		EndNano:     span.GetEndTimeUnixNano(),
	}

	if kind := span.GetKind(); kind != tracepb.Span_SPAN_KIND_UNSPECIFIED {
		rec.Attributes = append(rec.Attributes, model.Tag{Key: "span.kind", Value: kindName(kind)})
	}
	for _, kv := range span.GetAttributes() {
		rec.Attributes = append(rec.Attributes, model.Tag{Key: kv.GetKey(), Value: anyValueString(kv.GetValue())})
	}
	if st := span.GetStatus(); st != nil && st.GetCode() != tracepb.Status_STATUS_CODE_UNSET {
		rec.Attributes = append(rec.Attributes, model.Tag{Key: "status.code", Value: statusName(st.GetCode())})
		if msg := st.GetMessage(); msg != "" {
			rec.Attributes = append(rec.Attributes, model.Tag{Key: "status.message", Value: msg})
		}
	}
	for _, ev := range span.GetEvents() {
		rec.Events = append(rec.Events, model.EventRecord{Name: ev.GetName(), TimeNano: ev.GetTimeUnixNano()})
	}
	return rec
}

// extractServiceName returns the service.name resource attribute, or
// "unknown".
func extractServiceName(resource *resourcepb.Resource) string {
	for _, attr := range resource.GetAttributes() {
		if attr.GetKey() == "service.name" {
			if sv := attr.GetValue().GetStringValue(); sv != "" {
				return sv
			}
		}
	}
	return "unknown"
}

// anyValueString renders an OTLP attribute value as display text.
func anyValueString(value *commonpb.AnyValue) string {
	if value == nil {
		return ""
	}
	switch v := value.Value.(type) {
	case *commonpb.AnyValue_StringValue:
		return v.StringValue
	case *commonpb.AnyValue_IntValue:
		return strconv.FormatInt(v.IntValue, 10)
	case *commonpb.AnyValue_DoubleValue:
		return strconv.FormatFloat(v.DoubleValue, 'g', -1, 64)
	case *commonpb.AnyValue_BoolValue:
		return strconv.FormatBool(v.BoolValue)
	case *commonpb.AnyValue_BytesValue:
		return hex.EncodeToString(v.BytesValue)
	case *commonpb.AnyValue_ArrayValue:
		parts := make([]string, 0, len(v.ArrayValue.GetValues()))
		for _, item := range v.ArrayValue.GetValues() {
			parts = append(parts, anyValueString(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *commonpb.AnyValue_KvlistValue:
		parts := make([]string, 0, len(v.KvlistValue.GetValues()))
		for _, kv := range v.KvlistValue.GetValues() {
			parts = append(parts, kv.GetKey()+"="+anyValueString(kv.GetValue()))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return ""
	}
}

func kindName(k tracepb.Span_SpanKind) string {
	return strings.ToLower(strings.TrimPrefix(k.String(), "SPAN_KIND_"))
}

func statusName(c tracepb.Status_StatusCode) string {
	return strings.TrimPrefix(c.String(), "STATUS_CODE_")
}
