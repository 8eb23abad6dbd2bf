package barney

import "testing"

func TestDefaultSystemPackageFunctions(t *testing.T) {
	ResetDefault()
	t.Cleanup(ResetDefault)

	host := DefaultHost()
	_ = host.DefineValue("/app/config.js", "real")
	if !IsActive() {
		t.Fatalf("expected default system active on first use")
	}

	if err := Hook("/app/config.js", "fake"); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if got, _ := host.Require("/app/config.js", ""); got != "fake" {
		t.Fatalf("expected override, got %v", got)
	}

	spy := &Spy{Result: Some("spied")}
	if err := InterceptAt(0, spy); err != nil {
		t.Fatalf("intercept: %v", err)
	}
	if got, _ := host.Require("/app/config.js", ""); got != "spied" {
		t.Fatalf("expected global interceptor, got %v", got)
	}
	RemoveInterceptor(spy)

	Restore()
	if IsActive() {
		t.Fatalf("expected inactive after Restore")
	}
	if got, _ := host.Require("/app/config.js", ""); got != "real" {
		t.Fatalf("expected real module, got %v", got)
	}
	Activate()
	if id, err := Canonical("/app/config"); err != nil || id != "/app/config.js" {
		t.Fatalf("expected /app/config.js, got %q (%v)", id, err)
	}
	if !host.Cached("/app/config.js") {
		t.Fatalf("expected real load to be cached")
	}
	UnloadIdentity("/app/config.js")
	if host.Cached("/app/config.js") {
		t.Fatalf("expected UnloadIdentity to drop the cache entry")
	}
	if err := Unload("/app/config.js"); err != nil {
		t.Fatalf("unload: %v", err)
	}
	Reset()
	if Default().Registry().Len() != 0 {
		t.Fatalf("expected empty registry after Reset")
	}
}

func TestSetDefaultInstallsCustomSystem(t *testing.T) {
	ResetDefault()
	t.Cleanup(ResetDefault)

	host := NewMemoryHost()
	custom := MustNew(host)
	SetDefault(custom)
	if Default() != custom {
		t.Fatalf("expected custom default")
	}
	if DefaultHost() != host {
		t.Fatalf("expected custom host")
	}
}
