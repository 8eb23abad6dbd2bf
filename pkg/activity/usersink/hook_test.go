package usersink_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-barney/pkg/activity"
	"github.com/goliatone/go-barney/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsDispatchEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	tenantID := uuid.New()

	event := activity.BuildDispatchEvent(activity.DispatchEventInput{
		ActorID:    actorID.String(),
		TenantID:   tenantID.String(),
		Channel:    "modules",
		Reference:  "./foo",
		Identity:   "/app/foo.js",
		Source:     "override",
		OccurredAt: now,
	})

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID {
		t.Fatalf("expected actor %s got %s", actorID, record.ActorID)
	}
	if record.TenantID != tenantID {
		t.Fatalf("expected tenant %s got %s", tenantID, record.TenantID)
	}
	if record.Verb != activity.VerbModuleOverridden || record.ObjectType != "module" || record.ObjectID != "/app/foo.js" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "modules" {
		t.Fatalf("expected channel modules got %q", record.Channel)
	}
	if !record.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
	if record.Data["reference"] != "./foo" || record.Data["source"] != "override" {
		t.Fatalf("expected metadata passthrough got %v", record.Data)
	}
}

func TestHookNotifyKeepsNonUUIDActors(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	err := hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbModuleLoaded,
		ActorID:    "TestLoader",
		ObjectType: "module",
		ObjectID:   "/foo.js",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	record := sink.records[0]
	if record.ActorID != uuid.Nil {
		t.Fatalf("expected nil actor uuid, got %s", record.ActorID)
	}
	if record.Data["actor"] != "TestLoader" {
		t.Fatalf("expected actor name in data, got %v", record.Data)
	}
	if record.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
}

func TestHookNotifyFiltersVerbs(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink, Verbs: []string{activity.VerbModuleFailed}}

	_ = hook.Notify(context.Background(), activity.Event{Verb: activity.VerbModuleLoaded, ObjectType: "module", ObjectID: "a"})
	_ = hook.Notify(context.Background(), activity.Event{Verb: activity.VerbModuleFailed, ObjectType: "module", ObjectID: "b"})

	if len(sink.records) != 1 || sink.records[0].ObjectID != "b" {
		t.Fatalf("expected only failed events forwarded, got %+v", sink.records)
	}
}

func TestHookNotifySkipsInvalidEvents(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}
}
