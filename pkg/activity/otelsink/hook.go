// Package otelsink records module activity events as OpenTelemetry spans.
package otelsink

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-barney/pkg/activity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Hook emits one span per event, named after the event verb.
type Hook struct {
	Tracer trace.Tracer
}

// Notify records event as a span ending at its occurrence time. The span
// starts duration_ms earlier when the event carries one.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Tracer == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if !normalized.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	end := normalized.OccurredAt
	_, span := h.Tracer.Start(ctx, normalized.Verb,
		trace.WithTimestamp(end.Add(-duration(normalized.Metadata))),
		trace.WithAttributes(Attributes(normalized)...),
	)
	if msg, ok := normalized.Metadata["error"].(string); ok && msg != "" {
		span.SetStatus(codes.Error, msg)
	}
	span.End(trace.WithTimestamp(end))
	return nil
}

func duration(metadata map[string]any) time.Duration {
	ms, ok := metadata["duration_ms"].(float64)
	if !ok || ms <= 0 {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// Attributes flattens the event into span attributes. Metadata keys are
// prefixed with "module.".
func Attributes(event activity.Event) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("object.type", event.ObjectType),
		attribute.String("object.id", event.ObjectID),
	}
	if event.Channel != "" {
		attrs = append(attrs, attribute.String("channel", event.Channel))
	}
	if event.ActorID != "" {
		attrs = append(attrs, attribute.String("actor.id", event.ActorID))
	}
	for key, value := range event.Metadata {
		name := "module." + key
		switch v := value.(type) {
		case string:
			attrs = append(attrs, attribute.String(name, v))
		case bool:
			attrs = append(attrs, attribute.Bool(name, v))
		case int:
			attrs = append(attrs, attribute.Int(name, v))
		case int64:
			attrs = append(attrs, attribute.Int64(name, v))
		case float64:
			attrs = append(attrs, attribute.Float64(name, v))
		case nil:
		default:
			attrs = append(attrs, attribute.String(name, fmt.Sprint(v)))
		}
	}
	return attrs
}
