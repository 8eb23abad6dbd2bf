// Package jshost is a CommonJS module system on top of goja that exposes its
// load path to barney. Scripts call require; every call enters the loader
// installed in the host, so a barney.System layered onto a Host can
// intercept, replace or fail any require made from JavaScript.
//
// A Host wraps a single goja.Runtime and, like the runtime, is not safe for
// concurrent use.
package jshost

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/dop251/goja"

	barney "github.com/goliatone/go-barney"
	"github.com/goliatone/go-barney/internal/modpath"
)

const wrapperHead = "(function (exports, require, module, __filename, __dirname) {\n"
const wrapperTail = "\n})"

// Host is a goja runtime with a CommonJS require.
type Host struct {
	vm *goja.Runtime

	mu         sync.RWMutex
	sources    map[string]string
	natives    map[string]any
	loader     barney.Loader
	cache      barney.ModuleCache
	programs   barney.ProgramCache
	extensions []string
}

// Option configures a Host.
type Option func(*Host)

// WithRuntime runs modules in vm instead of a fresh runtime.
func WithRuntime(vm *goja.Runtime) Option {
	return func(h *Host) {
		if vm != nil {
			h.vm = vm
		}
	}
}

// WithModuleCache replaces the cache holding module exports.
func WithModuleCache(cache barney.ModuleCache) Option {
	return func(h *Host) {
		if cache != nil {
			h.cache = cache
		}
	}
}

// WithProgramCache replaces the cache holding compiled module programs.
func WithProgramCache(cache barney.ProgramCache) Option {
	return func(h *Host) {
		if cache != nil {
			h.programs = cache
		}
	}
}

// WithExtensions sets the extensions probed for path references.
func WithExtensions(extensions ...string) Option {
	return func(h *Host) {
		h.extensions = append([]string(nil), extensions...)
	}
}

// New constructs a host and installs a global require resolving from the top
// level.
func New(opts ...Option) *Host {
	h := &Host{
		sources:    make(map[string]string),
		natives:    make(map[string]any),
		extensions: modpath.DefaultExtensions,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.vm == nil {
		h.vm = goja.New()
	}
	if h.cache == nil {
		h.cache = barney.NewModuleCache()
	}
	if h.programs == nil {
		h.programs = barney.NewProgramCache(0)
	}
	h.loader = h
	_ = h.vm.Set("require", h.requireFrom(""))
	return h
}

// Runtime returns the underlying goja runtime.
func (h *Host) Runtime() *goja.Runtime {
	return h.vm
}

// Define registers source as the CommonJS module id. Redefining a module
// drops its cached exports and compiled program.
func (h *Host) Define(id, source string) error {
	if id == "" {
		return fmt.Errorf("jshost: define: %w", barney.ErrInvalidTarget)
	}
	identity := modpath.Normalize(id)
	h.mu.Lock()
	h.sources[identity] = source
	delete(h.natives, identity)
	h.mu.Unlock()
	h.forget(identity)
	return nil
}

// DefineValue registers a native module whose exports are value.
func (h *Host) DefineValue(id string, value any) error {
	if id == "" {
		return fmt.Errorf("jshost: define: %w", barney.ErrInvalidTarget)
	}
	identity := modpath.Normalize(id)
	h.mu.Lock()
	h.natives[identity] = value
	delete(h.sources, identity)
	h.mu.Unlock()
	h.forget(identity)
	return nil
}

// Defined returns the identities of every defined module, sorted.
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

// Resolve implements barney.Host.
func (h *Host) Resolve(reference, parent string) (string, error) {
	identity, ok := modpath.Resolve(reference, parent, h.exists, h.extensions)
	if !ok {
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

// Uncache implements barney.Host. The compiled program is kept, so the
// module source runs again without being reparsed.
func (h *Host) Uncache(identity string) bool {
	return h.cache.Delete(identity)
}

// Cached reports whether the exports of identity are memoized.
func (h *Host) Cached(identity string) bool {
	_, ok := h.cache.Get(identity)
	return ok
}

// Require loads reference as requested from parent and returns its exports.
func (h *Host) Require(reference, parent string) (goja.Value, error) {
	value, err := h.Loader().Load(barney.Request{Reference: reference, Parent: parent})
	if err != nil {
		return nil, err
	}
	return h.vm.ToValue(value), nil
}

// RunMain loads reference as the program entry point.
func (h *Host) RunMain(reference string) (goja.Value, error) {
	value, err := h.Loader().Load(barney.Request{Reference: reference, Entry: true})
	if err != nil {
		return nil, err
	}
	return h.vm.ToValue(value), nil
}

// RunString evaluates source as a top-level script. A Go error raised by a
// require inside the script is returned unchanged.
func (h *Host) RunString(source string) (goja.Value, error) {
	value, err := h.vm.RunString(source)
	if err != nil {
		return nil, unwrapException(err)
	}
	return value, nil
}

// Load is the host's real loader. Exports are cached before the module body
// runs so require cycles observe partial exports, and evicted again when the
// body fails.
func (h *Host) Load(req barney.Request) (any, error) {
	identity := req.Identity
	if identity == "" {
		resolved, err := h.Resolve(req.Reference, req.Parent)
		if err != nil {
			return nil, err
		}
		identity = resolved
	}
	if value, ok := h.cache.Get(identity); ok {
		return value, nil
	}

	h.mu.RLock()
	native, isNative := h.natives[identity]
	source, isSource := h.sources[identity]
	h.mu.RUnlock()

	switch {
	case isNative:
		value := h.vm.ToValue(native)
		h.cache.Set(identity, value)
		return value, nil
	case !isSource:
		return nil, barney.NotFoundFor(req.Reference)
	}

	program, err := h.compile(identity, source)
	if err != nil {
		return nil, err
	}
	wrapper, err := h.vm.RunProgram(program)
	if err != nil {
		return nil, unwrapException(err)
	}
	fn, ok := goja.AssertFunction(wrapper)
	if !ok {
		return nil, fmt.Errorf("jshost: module %q did not compile to a function", identity)
	}

	module := h.vm.NewObject()
	exports := h.vm.NewObject()
	_ = module.Set("id", identity)
	_ = module.Set("exports", exports)
	h.cache.Set(identity, exports)

	if _, err := fn(goja.Undefined(),
		exports,
		h.vm.ToValue(h.requireFrom(identity)),
		module,
		h.vm.ToValue(identity),
		h.vm.ToValue(path.Dir(identity)),
	); err != nil {
		h.cache.Delete(identity)
		return nil, unwrapException(err)
	}
	result := module.Get("exports")
	h.cache.Set(identity, result)
	return result, nil
}

func (h *Host) compile(identity, source string) (*goja.Program, error) {
	if cached, ok := h.programs.Get(identity); ok {
		if program, ok := cached.(*goja.Program); ok {
			return program, nil
		}
	}
	program, err := goja.Compile(identity, wrapperHead+source+wrapperTail, false)
	if err != nil {
		return nil, fmt.Errorf("jshost: compile %q: %w", identity, err)
	}
	h.programs.Set(identity, program)
	return program, nil
}

// requireFrom builds the require function handed to code whose module
// identity is parent.
func (h *Host) requireFrom(parent string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		reference := call.Argument(0)
		if goja.IsUndefined(reference) || goja.IsNull(reference) {
			panic(h.vm.NewTypeError("require: module name must be a string"))
		}
		value, err := h.Loader().Load(barney.Request{Reference: reference.String(), Parent: parent})
		if err != nil {
			panic(h.throwable(err))
		}
		return h.vm.ToValue(value)
	}
}

// throwable turns err into a JS error carrying err itself, so it can be
// recovered once the exception reaches Go, and its code, so scripts can test
// e.code === "MODULE_NOT_FOUND".
func (h *Host) throwable(err error) *goja.Object {
	obj := h.vm.NewGoError(err)
	if code := barney.ErrorCode(err); code != "" {
		_ = obj.Set("code", code)
	}
	return obj
}

func (h *Host) exists(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.sources[identity]; ok {
		return true
	}
	_, ok := h.natives[identity]
	return ok
}

func (h *Host) forget(identity string) {
	h.cache.Delete(identity)
	h.programs.Set(identity, nil)
}

// unwrapException returns the Go error carried by a goja exception, or err
// unchanged when the exception was raised by script code.
func unwrapException(err error) error {
	var exception *goja.Exception
	if !errors.As(err, &exception) {
		return err
	}
	obj, ok := exception.Value().(*goja.Object)
	if !ok {
		return err
	}
	inner := obj.Get("value")
	if inner == nil {
		return err
	}
	if goErr, ok := inner.Export().(error); ok {
		return goErr
	}
	return err
}
