package otelsink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-barney/pkg/activity"
	"github.com/goliatone/go-barney/pkg/activity/otelsink"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder() (*tracetest.SpanRecorder, otelsink.Hook) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return recorder, otelsink.Hook{Tracer: provider.Tracer("barney")}
}

func attr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestHookRecordsSpanPerEvent(t *testing.T) {
	recorder, hook := newRecorder()

	event := activity.BuildDispatchEvent(activity.DispatchEventInput{
		Reference: "./foo",
		Identity:  "/app/foo.js",
		Source:    "global",
		Index:     1,
	})
	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != activity.VerbModuleIntercepted {
		t.Fatalf("expected span named after verb, got %q", span.Name())
	}
	if v, ok := attr(span.Attributes(), "object.id"); !ok || v.AsString() != "/app/foo.js" {
		t.Fatalf("expected object.id attribute, got %v", span.Attributes())
	}
	if v, ok := attr(span.Attributes(), "module.index"); !ok || v.AsInt64() != 1 {
		t.Fatalf("expected module.index attribute, got %v", span.Attributes())
	}
	if span.Status().Code == codes.Error {
		t.Fatalf("expected non-error status")
	}
}

func TestHookMarksFailedDispatch(t *testing.T) {
	recorder, hook := newRecorder()

	event := activity.BuildDispatchEvent(activity.DispatchEventInput{
		Reference: "./foo",
		Source:    "global",
		Err:       errors.New("boom"),
	})
	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	span := recorder.Ended()[0]
	if span.Status().Code != codes.Error || span.Status().Description != "boom" {
		t.Fatalf("expected error status, got %+v", span.Status())
	}
}

func TestHookWithoutTracerIsNoop(t *testing.T) {
	hook := otelsink.Hook{}
	if err := hook.Notify(context.Background(), activity.Event{Verb: "x", ObjectType: "module", ObjectID: "a"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestHookSpanCoversDispatchDuration(t *testing.T) {
	recorder, hook := newRecorder()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	event := activity.BuildDispatchEvent(activity.DispatchEventInput{
		Reference:  "./foo",
		Source:     "fallback",
		Duration:   40 * time.Millisecond,
		OccurredAt: at,
	})
	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	span := recorder.Ended()[0]
	if !span.EndTime().Equal(at) {
		t.Fatalf("expected span to end at %v, got %v", at, span.EndTime())
	}
	if got := span.EndTime().Sub(span.StartTime()); got != 40*time.Millisecond {
		t.Fatalf("expected 40ms span, got %v", got)
	}
}
