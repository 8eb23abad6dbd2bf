package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-barney/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts module activity events to a go-users ActivitySink. Actor and
// tenant IDs that are not UUIDs are kept in the record data as "actor" and
// "tenant".
type Hook struct {
	Sink usertypes.ActivitySink
	// Verbs restricts forwarding to the listed verbs when non-empty.
	Verbs []string
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}

	normalized := activity.NormalizeEvent(event)
	if !normalized.Valid() || !h.accepts(normalized.Verb) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	data := cloneMap(normalized.Metadata)
	actorID, ok := parseUUID(normalized.ActorID)
	if !ok && normalized.ActorID != "" {
		data = ensure(data)
		data["actor"] = normalized.ActorID
	}
	tenantID, ok := parseUUID(normalized.TenantID)
	if !ok && normalized.TenantID != "" {
		data = ensure(data)
		data["tenant"] = normalized.TenantID
	}

	record := usertypes.ActivityRecord{
		ActorID:    actorID,
		TenantID:   tenantID,
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       data,
		OccurredAt: normalized.OccurredAt,
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}

	return h.Sink.Log(ctx, record)
}

func (h Hook) accepts(verb string) bool {
	if len(h.Verbs) == 0 {
		return true
	}
	for _, allowed := range h.Verbs {
		if strings.TrimSpace(allowed) == verb {
			return true
		}
	}
	return false
}

func parseUUID(input string) (uuid.UUID, bool) {
	value := strings.TrimSpace(input)
	if value == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func ensure(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return data
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
