package barney

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goliatone/go-barney/internal/modpath"
)

// ModuleFactory produces the value of a module defined in a MemoryHost. It
// runs on the first real load of the module and again after every Uncache.
type ModuleFactory func(m *Module) (any, error)

// Module is the handle a factory receives while its module loads.
type Module struct {
	ID   string
	host *MemoryHost
}

// Require loads reference with this module as the parent, through whatever
// loader the host currently has installed.
func (m *Module) Require(reference string) (any, error) {
	return m.host.Require(reference, m.ID)
}

// MemoryHost is an in-process module system: modules are registered as
// factories, resolved with path semantics and memoized after their first real
// load. A module required again while its factory is still running fails
// with ErrRequireCycle, so the first load of a module must not race another
// first load of the same module.
type MemoryHost struct {
	mu         sync.RWMutex
	factories  map[string]ModuleFactory
	loading    map[string]bool
	cache      ModuleCache
	loader     Loader
	extensions []string
}

// MemoryHostOption configures a MemoryHost.
type MemoryHostOption func(*MemoryHost)

// WithModuleCache replaces the cache used for real loads.
func WithModuleCache(cache ModuleCache) MemoryHostOption {
	return func(h *MemoryHost) {
		if cache != nil {
			h.cache = cache
		}
	}
}

// WithExtensions sets the extensions probed for path references. The default
// is .js then .json.
func WithExtensions(extensions ...string) MemoryHostOption {
	return func(h *MemoryHost) {
		h.extensions = append([]string(nil), extensions...)
	}
}

// NewMemoryHost constructs an empty host whose installed loader is its own
// real loader.
func NewMemoryHost(opts ...MemoryHostOption) *MemoryHost {
	h := &MemoryHost{
		factories:  make(map[string]ModuleFactory),
		extensions: modpath.DefaultExtensions,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.cache == nil {
		h.cache = NewModuleCache()
	}
	h.loader = h
	return h
}

// Define registers factory under id. Path ids are rooted and cleaned; bare
// ids name packages. Redefining a module drops its cached value.
func (h *MemoryHost) Define(id string, factory ModuleFactory) error {
	if id == "" {
		return registrationError("define", id, ErrInvalidTarget)
	}
	if factory == nil {
		return fmt.Errorf("barney: define %q: factory is nil", id)
	}
	identity := modpath.Normalize(id)
	h.mu.Lock()
	h.factories[identity] = factory
	h.mu.Unlock()
	h.cache.Delete(identity)
	return nil
}

// DefineValue registers a module whose value is value.
func (h *MemoryHost) DefineValue(id string, value any) error {
	return h.Define(id, func(*Module) (any, error) {
		return value, nil
	})
}

// Defined returns the identities of every defined module, sorted.
func (h *MemoryHost) Defined() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.factories))
	for id := range h.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve implements Host.
func (h *MemoryHost) Resolve(reference, parent string) (string, error) {
	identity, ok := modpath.Resolve(reference, parent, h.exists, h.extensions)
	if !ok {
		return "", NotFoundFor(reference)
	}
	return identity, nil
}

// Loader implements Host.
func (h *MemoryHost) Loader() Loader {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loader
}

// SetLoader implements Host. A nil loader reinstalls the real loader.
func (h *MemoryHost) SetLoader(loader Loader) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if loader == nil {
		loader = h
	}
	h.loader = loader
}

// Uncache implements Host.
func (h *MemoryHost) Uncache(identity string) bool {
	return h.cache.Delete(identity)
}

// Cached reports whether the real load result for identity is memoized.
func (h *MemoryHost) Cached(identity string) bool {
	_, ok := h.cache.Get(identity)
	return ok
}

// Require loads reference as requested from parent. Every call enters the
// installed loader; only the real loader consults the cache.
func (h *MemoryHost) Require(reference, parent string) (any, error) {
	return h.Loader().Load(Request{Reference: reference, Parent: parent})
}

// RequireMain loads reference as the program entry point.
func (h *MemoryHost) RequireMain(reference string) (any, error) {
	return h.Loader().Load(Request{Reference: reference, Entry: true})
}

// Load is the host's real loader. It resolves req, returns the memoized value
// when present and otherwise runs the module factory, caching its value on
// success.
func (h *MemoryHost) Load(req Request) (any, error) {
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
	factory, ok := h.factories[identity]
	h.mu.RUnlock()
	if !ok {
		return nil, NotFoundFor(req.Reference)
	}
	if err := h.enter(identity); err != nil {
		return nil, err
	}
	defer h.leave(identity)

	value, err := factory(&Module{ID: identity, host: h})
	if err != nil {
		return nil, err
	}
	h.cache.Set(identity, value)
	return value, nil
}

func (h *MemoryHost) enter(identity string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loading[identity] {
		return fmt.Errorf("%w at %q", ErrRequireCycle, identity)
	}
	if h.loading == nil {
		h.loading = make(map[string]bool)
	}
	h.loading[identity] = true
	return nil
}

func (h *MemoryHost) leave(identity string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.loading, identity)
}

func (h *MemoryHost) exists(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.factories[identity]
	return ok
}
