package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestInjectTraceHeadersAppends(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0xaa},
		SpanID:     trace.SpanID{0xbb},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := InjectTraceHeaders(ctx, []kafka.Header{{Key: HeaderEventID, Value: []byte("e-1")}})
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatalf("traceparent header missing: %+v", headers)
	}
	if HeaderValue(headers, HeaderEventID) != "e-1" {
		t.Fatalf("existing headers must survive")
	}

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	if got.TraceID() != sc.TraceID() {
		t.Fatalf("trace id not extracted")
	}
}

func TestExtractEventMetaFallbacks(t *testing.T) {
	meta := ExtractEventMeta(kafka.Message{Topic: "booking.appointment.booked.v1", Key: []byte("k-1")})
	if meta.EventID != "k-1" || meta.EventType != "booking.appointment.booked.v1" {
		t.Fatalf("unexpected meta %+v", meta)
	}

	meta = ExtractEventMeta(kafka.Message{
		Topic: "t",
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte("e-9")},
			{Key: HeaderEventType, Value: []byte("booking.review.requested.v1")},
		},
	})
	if meta.EventID != "e-9" || meta.EventType != "booking.review.requested.v1" {
		t.Fatalf("unexpected meta %+v", meta)
	}
}
