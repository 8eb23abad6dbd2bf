// Package luahost layers barney onto gopher-lua. The host replaces the global
// require so every require call, including ones made from inside a module
// being loaded, enters the loader installed in the host.
//
// Module names may be written with dots or slashes; both spellings resolve to
// the dotted identity. package.loaded is the module cache.
package luahost

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	barney "github.com/goliatone/go-barney"
)

// Host is a Lua state whose require is routed through a barney.Loader. Like
// the underlying LState it is not safe for concurrent use.
type Host struct {
	L *lua.LState

	mu      sync.RWMutex
	sources map[string]string
	natives map[string]any
	owned   map[string]struct{}
	loader  barney.Loader
	loading []string
}

// Option configures a Host.
type Option func(*Host)

// WithState uses L instead of a fresh state with the standard libraries.
func WithState(L *lua.LState) Option {
	return func(h *Host) {
		if L != nil {
			h.L = L
		}
	}
}

// New constructs a host and installs its require.
func New(opts ...Option) *Host {
	h := &Host{
		sources: make(map[string]string),
		natives: make(map[string]any),
		owned:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.L == nil {
		h.L = lua.NewState()
	}
	h.loader = h
	h.L.SetGlobal("require", h.L.NewFunction(h.require))
	return h
}

// Close releases the Lua state.
func (h *Host) Close() {
	h.L.Close()
}

// Identity returns the canonical spelling of a module name.
func Identity(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".lua")
	name = strings.Trim(strings.ReplaceAll(name, "/", "."), ".")
	return name
}

// Define registers source as module name. Redefining a module drops it from
// package.loaded.
func (h *Host) Define(name, source string) error {
	identity := Identity(name)
	if identity == "" {
		return fmt.Errorf("luahost: define: %w", barney.ErrInvalidTarget)
	}
	h.mu.Lock()
	h.sources[identity] = source
	delete(h.natives, identity)
	h.mu.Unlock()
	h.Uncache(identity)
	return nil
}

// DefineValue registers a module whose value is value converted to Lua.
func (h *Host) DefineValue(name string, value any) error {
	identity := Identity(name)
	if identity == "" {
		return fmt.Errorf("luahost: define: %w", barney.ErrInvalidTarget)
	}
	h.mu.Lock()
	h.natives[identity] = value
	delete(h.sources, identity)
	h.mu.Unlock()
	h.Uncache(identity)
	return nil
}

// Preload registers loader in package.preload under name.
func (h *Host) Preload(name string, loader lua.LGFunction) {
	h.L.PreloadModule(Identity(name), loader)
}

// Defined returns the names of every module defined on the host, sorted.
func (h *Host) Defined() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.sources)+len(h.natives))
	for id := range h.sources {
		ids = append(ids, id)
	}
	for id := range h.natives {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve implements barney.Host. parent is ignored: Lua names are absolute.
func (h *Host) Resolve(reference, _ string) (string, error) {
	identity := Identity(reference)
	if identity == "" || !h.exists(identity) {
		return "", barney.NotFoundFor(reference)
	}
	return identity, nil
}

// Loader implements barney.Host.
func (h *Host) Loader() barney.Loader {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loader
}

// SetLoader implements barney.Host. A nil loader reinstalls the real loader.
func (h *Host) SetLoader(loader barney.Loader) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if loader == nil {
		loader = h
	}
	h.loader = loader
}

// Uncache implements barney.Host. Only modules loaded by this host are
// dropped from package.loaded; standard libraries stay.
func (h *Host) Uncache(identity string) bool {
	h.mu.Lock()
	_, owned := h.owned[identity]
	delete(h.owned, identity)
	h.mu.Unlock()
	if !owned {
		return false
	}
	loaded := h.loadedTable()
	if loaded.RawGetString(identity) == lua.LNil {
		return false
	}
	loaded.RawSetString(identity, lua.LNil)
	return true
}

// Cached reports whether identity has an entry in package.loaded.
func (h *Host) Cached(identity string) bool {
	return h.loadedTable().RawGetString(identity) != lua.LNil
}

// Require loads reference as requested from parent.
func (h *Host) Require(reference, parent string) (lua.LValue, error) {
	value, err := h.Loader().Load(barney.Request{Reference: reference, Parent: parent})
	if err != nil {
		return lua.LNil, err
	}
	return ToLua(h.L, value), nil
}

// RunMain loads reference as the program entry point.
func (h *Host) RunMain(reference string) (lua.LValue, error) {
	value, err := h.Loader().Load(barney.Request{Reference: reference, Entry: true})
	if err != nil {
		return lua.LNil, err
	}
	return ToLua(h.L, value), nil
}

// DoString runs source as a top-level chunk. A Go error raised by a require
// inside the chunk is returned unchanged.
func (h *Host) DoString(source string) error {
	return unwrapError(h.L.DoString(source))
}

// Load is the host's real loader: package.loaded, then package.preload, then
// native values, then Lua sources.
func (h *Host) Load(req barney.Request) (any, error) {
	identity := req.Identity
	if identity == "" {
		resolved, err := h.Resolve(req.Reference, req.Parent)
		if err != nil {
			return nil, err
		}
		identity = resolved
	}
	loaded := h.loadedTable()
	if value := loaded.RawGetString(identity); value != lua.LNil {
		return value, nil
	}

	h.mu.RLock()
	native, isNative := h.natives[identity]
	source, isSource := h.sources[identity]
	h.mu.RUnlock()

	var value lua.LValue
	switch {
	case isNative:
		value = ToLua(h.L, native)
	case h.preloaded(identity) != nil:
		result, err := h.call(identity, h.preloaded(identity))
		if err != nil {
			return nil, err
		}
		value = result
	case isSource:
		fn, err := h.L.LoadString(source)
		if err != nil {
			return nil, fmt.Errorf("luahost: compile %q: %w", identity, err)
		}
		result, err := h.call(identity, fn)
		if err != nil {
			return nil, err
		}
		value = result
	default:
		return nil, barney.NotFoundFor(req.Reference)
	}
	if value == lua.LNil {
		value = lua.LTrue
	}
	loaded.RawSetString(identity, value)
	h.mu.Lock()
	h.owned[identity] = struct{}{}
	h.mu.Unlock()
	return value, nil
}

// call runs a module chunk with identity on the loading stack, so requires
// it makes report identity as their parent.
func (h *Host) call(identity string, fn *lua.LFunction) (lua.LValue, error) {
	h.loading = append(h.loading, identity)
	defer func() { h.loading = h.loading[:len(h.loading)-1] }()
	if err := h.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LString(identity)); err != nil {
		return lua.LNil, unwrapError(err)
	}
	value := h.L.Get(-1)
	h.L.Pop(1)
	return value, nil
}

func (h *Host) require(L *lua.LState) int {
	reference := L.CheckString(1)
	value, err := h.Loader().Load(barney.Request{Reference: reference, Parent: h.parent()})
	if err != nil {
		ud := L.NewUserData()
		ud.Value = err
		L.Error(ud, 1)
		return 0
	}
	L.Push(ToLua(L, value))
	return 1
}

func (h *Host) parent() string {
	if len(h.loading) == 0 {
		return ""
	}
	return h.loading[len(h.loading)-1]
}

func (h *Host) exists(identity string) bool {
	h.mu.RLock()
	_, isSource := h.sources[identity]
	_, isNative := h.natives[identity]
	h.mu.RUnlock()
	if isSource || isNative {
		return true
	}
	if h.preloaded(identity) != nil {
		return true
	}
	return h.loadedTable().RawGetString(identity) != lua.LNil
}

func (h *Host) preloaded(identity string) *lua.LFunction {
	pkg, ok := h.L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return nil
	}
	preload, ok := pkg.RawGetString("preload").(*lua.LTable)
	if !ok {
		return nil
	}
	fn, _ := preload.RawGetString(identity).(*lua.LFunction)
	return fn
}

func (h *Host) loadedTable() *lua.LTable {
	if pkg, ok := h.L.GetGlobal("package").(*lua.LTable); ok {
		if loaded, ok := pkg.RawGetString("loaded").(*lua.LTable); ok {
			return loaded
		}
		loaded := h.L.NewTable()
		pkg.RawSetString("loaded", loaded)
		return loaded
	}
	pkg := h.L.NewTable()
	loaded := h.L.NewTable()
	pkg.RawSetString("loaded", loaded)
	h.L.SetGlobal("package", pkg)
	return loaded
}

// unwrapError returns the Go error carried by a Lua error raised from
// require, or err unchanged when Lua code raised it.
func unwrapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return err
	}
	if ud, ok := apiErr.Object.(*lua.LUserData); ok {
		if inner, ok := ud.Value.(error); ok {
			return inner
		}
	}
	return err
}
