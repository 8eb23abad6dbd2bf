package luahost

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	lua "github.com/yuin/gopher-lua"

	barney "github.com/goliatone/go-barney"
)

func newHost(t *testing.T) *Host {
	t.Helper()
	h := New()
	t.Cleanup(h.Close)
	sources := map[string]string{
		"util.math": `return { add = function(a, b) return a + b end }`,
		"app.main": `
			local math = require("util/math")
			return { sum = math.add(2, 3) }
		`,
		"app.flag": `flagged = true`,
	}
	for name, src := range sources {
		if err := h.Define(name, src); err != nil {
			t.Fatalf("define %s: %v", name, err)
		}
	}
	return h
}

func TestIdentityNormalizesSpellings(t *testing.T) {
	for _, name := range []string{"a.b", "a/b", "./a/b.lua", "a/b.lua"} {
		if got := Identity(name); got != "a.b" {
			t.Fatalf("Identity(%q): expected a.b, got %q", name, got)
		}
	}
}

func TestRequireLoadsModulesAndCaches(t *testing.T) {
	h := newHost(t)
	value, err := h.RunMain("app.main")
	if err != nil {
		t.Fatalf("run main: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"sum": int64(5)}, ToGo(value)); diff != "" {
		t.Fatalf("unexpected exports (-want +got):\n%s", diff)
	}
	if !h.Cached("util.math") {
		t.Fatalf("expected package.loaded entry for util.math")
	}
	if err := h.DoString(`assert(package.loaded["app.main"].sum == 5)`); err != nil {
		t.Fatalf("expected package.loaded to be the cache: %v", err)
	}
}

func TestModuleWithoutReturnLoadsAsTrue(t *testing.T) {
	h := newHost(t)
	value, err := h.Require("app.flag", "")
	if err != nil {
		t.Fatalf("require: %v", err)
	}
	if value != lua.LTrue {
		t.Fatalf("expected true, got %v", value)
	}
}

func TestBuiltinsAndPreload(t *testing.T) {
	h := newHost(t)
	h.Preload("native.greet", func(L *lua.LState) int {
		L.Push(lua.LString("hello"))
		return 1
	})
	if err := h.DoString(`
		assert(require("string") == string)
		assert(require("native.greet") == "hello")
	`); err != nil {
		t.Fatalf("do string: %v", err)
	}
	if h.Uncache("string") {
		t.Fatalf("builtins must not be uncached")
	}
}

func TestSystemInterceptsWithParent(t *testing.T) {
	h := newHost(t)
	sys := barney.MustNew(h)
	t.Cleanup(sys.Teardown)

	spy := &barney.Spy{}
	_ = sys.Intercept(spy)
	_ = sys.Hook("util.math", map[string]any{
		"add": func(args ...any) (any, error) {
			return args[0].(int64) * args[1].(int64), nil
		},
	})

	value, err := h.RunMain("app.main")
	if err != nil {
		t.Fatalf("run main: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"sum": int64(6)}, ToGo(value)); diff != "" {
		t.Fatalf("unexpected exports (-want +got):\n%s", diff)
	}
	want := []barney.Request{
		{Reference: "app.main", Identity: "app.main", Entry: true},
		{Reference: "util/math", Identity: "util.math", Parent: "app.main"},
	}
	if diff := cmp.Diff(want, spy.Calls()); diff != "" {
		t.Fatalf("unexpected requests (-want +got):\n%s", diff)
	}
}

func TestGoErrorsCrossLuaUnchanged(t *testing.T) {
	h := newHost(t)
	sys := barney.MustNew(h)
	t.Cleanup(sys.Teardown)

	boom := errors.New("boom")
	_ = sys.InterceptTarget("util.math", barney.Fails(boom))
	if _, err := h.RunMain("app.main"); err != boom {
		t.Fatalf("expected interceptor error, got %v", err)
	}
	if err := h.DoString(`require("util.math")`); err != boom {
		t.Fatalf("expected interceptor error from DoString, got %v", err)
	}
	if h.Cached("app.main") {
		t.Fatalf("failed module must not be cached")
	}
}

func TestMissingModuleIsNotFound(t *testing.T) {
	h := newHost(t)
	err := h.DoString(`require("ghost")`)
	if barney.ErrorCode(err) != barney.CodeModuleNotFound {
		t.Fatalf("expected %s, got %v", barney.CodeModuleNotFound, err)
	}
	if err := h.DoString(`error("lua failure")`); err == nil {
		t.Fatalf("expected Lua error")
	}
}

func TestUncacheForcesReload(t *testing.T) {
	h := newHost(t)
	_ = h.Define("counter", `count = (count or 0) + 1; return count`)
	first, _ := h.Require("counter", "")
	second, _ := h.Require("counter", "")
	if first != lua.LNumber(1) || second != lua.LNumber(1) {
		t.Fatalf("expected cached value, got %v %v", first, second)
	}
	if !h.Uncache("counter") {
		t.Fatalf("expected cached module")
	}
	third, _ := h.Require("counter", "")
	if third != lua.LNumber(2) {
		t.Fatalf("expected reload, got %v", third)
	}
}

func TestConversions(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	type point struct {
		X int `json:"x"`
		Y int
	}
	table := ToLua(L, map[string]any{
		"list":  []any{"a", int64(2)},
		"point": point{X: 1, Y: 2},
		"flag":  true,
	})
	want := map[string]any{
		"list":  []any{"a", int64(2)},
		"point": map[string]any{"x": int64(1), "Y": int64(2)},
		"flag":  true,
	}
	if diff := cmp.Diff(want, ToGo(table)); diff != "" {
		t.Fatalf("unexpected round trip (-want +got):\n%s", diff)
	}
	if ToLua(L, nil) != lua.LNil {
		t.Fatalf("expected nil to become LNil")
	}
	if ud, ok := ToLua(L, make(chan int)).(*lua.LUserData); !ok || ud.Value == nil {
		t.Fatalf("expected unsupported values wrapped in userdata")
	}
}
