package barney

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-barney/pkg/activity"
)

type ctxKey struct{}

type ctxHook struct {
	seen []any
}

func (h *ctxHook) Notify(ctx context.Context, _ activity.Event) error {
	h.seen = append(h.seen, ctx.Value(ctxKey{}))
	return errors.New("hook failures are ignored")
}

func TestActivityHooksReceiveDispatchEvents(t *testing.T) {
	host := newTestHost(t)
	capture := &activity.CaptureHook{}
	sys := MustNew(host,
		WithActivityHooks(activity.Hooks{capture, nil}),
		WithActivityConfig(activity.Config{Channel: "tests", ActorID: "suite"}),
	)
	_ = sys.Intercept(Func(func(req Request) (Result, error) {
		if req.Reference == "intercepted" {
			return Some(1), nil
		}
		return None(), nil
	}))
	_ = sys.Hook("/app/foo.js", "hooked")

	_, _ = host.Require("intercepted", "")
	_, _ = host.Require("/app/foo.js", "")
	_, _ = host.Require("/app/bar.js", "")
	_, _ = host.Require("ghost", "")

	want := []string{
		activity.VerbModuleIntercepted,
		activity.VerbModuleOverridden,
		activity.VerbModuleLoaded,
		activity.VerbModuleFailed,
	}
	if diff := cmp.Diff(want, capture.Verbs()); diff != "" {
		t.Fatalf("unexpected verbs (-want +got):\n%s", diff)
	}
	first := capture.Events[0]
	if first.Channel != "tests" || first.ActorID != "suite" || first.ObjectType != activity.ObjectTypeModule {
		t.Fatalf("expected config defaults applied, got %+v", first)
	}
	if first.Metadata["index"] != 0 || first.Metadata["source"] != "global" {
		t.Fatalf("unexpected metadata %v", first.Metadata)
	}
}

func TestActivityHookErrorsDoNotChangeOutcome(t *testing.T) {
	host := newTestHost(t)
	hook := &ctxHook{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "marker")
	_ = MustNew(host, WithActivityHooks(activity.Hooks{hook}), WithContext(ctx))

	got, err := host.Require("/app/foo.js", "")
	if err != nil || got != "real foo" {
		t.Fatalf("expected normal load, got %v (%v)", got, err)
	}
	if diff := cmp.Diff([]any{"marker"}, hook.seen); diff != "" {
		t.Fatalf("expected configured context (-want +got):\n%s", diff)
	}
}

func TestWithRegistrySharesRegistrations(t *testing.T) {
	shared := NewRegistry()
	_ = shared.SetOverride("/app/foo.js", "shared")

	host := newTestHost(t)
	sys := MustNew(host, WithRegistry(shared))
	if sys.Registry() != shared || sys.Dispatcher().Registry() != shared {
		t.Fatalf("expected shared registry")
	}
	if got, _ := host.Require("/app/foo.js", ""); got != "shared" {
		t.Fatalf("expected shared override, got %v", got)
	}
	if sys.Dispatcher().Fallback() != Loader(host) {
		t.Fatalf("expected host's real loader as fallback")
	}
}
