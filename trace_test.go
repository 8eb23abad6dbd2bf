package barney

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTraceJSONRoundTrip(t *testing.T) {
	trace := DispatchTrace{
		Reference: "./foo",
		Identity:  "/app/foo.js",
		Parent:    "/app/main.js",
		Source:    SourceTarget,
		Index:     2,
		Duration:  3 * time.Millisecond,
		Error:     "boom",
	}
	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(trace, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	if !decoded.Failed() {
		t.Fatalf("expected failed trace")
	}
	if _, err := TraceFromJSON([]byte("{")); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestDispatchLoggerReceivesEvents(t *testing.T) {
	host := newTestHost(t)
	var events []DispatchLogEvent
	sys := MustNew(host, WithDispatchLogger(DispatchLoggerFunc(func(e DispatchLogEvent) {
		events = append(events, e)
	})))
	boom := errors.New("boom")
	_ = sys.InterceptTarget("/app/bar.js", Fails(boom))

	_, _ = host.Require("/app/foo.js", "")
	_, _ = host.Require("/app/bar.js", "")

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Source != SourceFallback || events[0].Err != nil {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].Source != SourceTarget || events[1].Index != 0 || !errors.Is(events[1].Err, boom) {
		t.Fatalf("unexpected second event %+v", events[1])
	}
}

func TestSlogLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.LogDispatch(DispatchLogEvent{Reference: "./a", Identity: "/a.js", Source: SourceOverride, Index: -1})
	logger.LogDispatch(DispatchLogEvent{Reference: "./b", Source: SourceGlobal, Err: errors.New("boom")})
	logger.LogEvaluation(EvaluatorLogEvent{Engine: "expr", Expr: "entry", Reference: "./a"})

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG msg=dispatch",
		"component=barney",
		"source=override",
		"level=WARN msg=\"dispatch failed\"",
		"error=boom",
		"msg=\"rule evaluated\"",
		"engine=expr",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}
