package barney

import (
	"slices"
	"sort"
	"sync"
)

// Registry stores the global interceptor chain, the per-identity chains and
// the static overrides consulted by a Dispatcher.
//
// Chains are copy-on-write: every mutation installs a fresh slice, so a chain
// handed to an in-flight dispatch is never modified underneath it. No lock is
// held while callers iterate a chain, which lets interceptors mutate the
// registry from inside a dispatch.
type Registry struct {
	mu        sync.RWMutex
	globals   []Interceptor
	targets   map[string][]Interceptor
	overrides map[string]any
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		targets:   make(map[string][]Interceptor),
		overrides: make(map[string]any),
	}
}

// AddGlobal inserts i into the global chain at index, or appends it when no
// index is given. Indexes are clamped to the valid range. Adding an
// interceptor already in the chain is a no-op.
func (r *Registry) AddGlobal(i Interceptor, index ...int) error {
	if !validInterceptor(i) {
		return registrationError("intercept", "", ErrInvalidInterceptor)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.globals = insertInterceptor(r.globals, i, index)
	return nil
}

// AddTarget inserts i into the chain for identity using the AddGlobal rules.
func (r *Registry) AddTarget(identity string, i Interceptor, index ...int) error {
	if identity == "" {
		return registrationError("intercept", identity, ErrInvalidTarget)
	}
	if !validInterceptor(i) {
		return registrationError("intercept", identity, ErrInvalidInterceptor)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensure()
	r.targets[identity] = insertInterceptor(r.targets[identity], i, index)
	return nil
}

// RemoveGlobal drops i from the global chain when present.
func (r *Registry) RemoveGlobal(i Interceptor) {
	if !validInterceptor(i) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.globals = removeInterceptor(r.globals, i)
}

// RemoveTarget drops i from the chain for identity when present. A chain left
// empty is discarded.
func (r *Registry) RemoveTarget(identity string, i Interceptor) {
	if !validInterceptor(i) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	chain, ok := r.targets[identity]
	if !ok {
		return
	}
	chain = removeInterceptor(chain, i)
	if len(chain) == 0 {
		delete(r.targets, identity)
		return
	}
	r.targets[identity] = chain
}

// ClearAll empties the global chain, every target chain and every override.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.globals = nil
	r.targets = make(map[string][]Interceptor)
	r.overrides = make(map[string]any)
}

// ClearTarget removes the chain and the override registered for identity.
func (r *Registry) ClearTarget(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.targets, identity)
	delete(r.overrides, identity)
}

// SetOverride replaces the static override for identity.
func (r *Registry) SetOverride(identity string, value any) error {
	if identity == "" {
		return registrationError("hook", identity, ErrInvalidTarget)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensure()
	r.overrides[identity] = value
	return nil
}

// RemoveOverride drops the static override for identity.
func (r *Registry) RemoveOverride(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.overrides, identity)
}

// Override returns the static override for identity.
func (r *Registry) Override(identity string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.overrides[identity]
	return value, ok
}

// Globals returns a snapshot of the global chain.
func (r *Registry) Globals() []Interceptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.globals)
}

// Targets returns a snapshot of the chain registered for identity.
func (r *Registry) Targets(identity string) []Interceptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.targets[identity])
}

// Identities returns every identity with a chain or an override, sorted.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.targets)+len(r.overrides))
	for id := range r.targets {
		seen[id] = struct{}{}
	}
	for id := range r.overrides {
		seen[id] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered interceptors and overrides.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.globals) + len(r.overrides)
	for _, chain := range r.targets {
		n += len(chain)
	}
	return n
}

// globalChain and targetChain hand out the live copy-on-write slice; callers
// must not modify it.
func (r *Registry) globalChain() []Interceptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.globals
}

func (r *Registry) targetChain(identity string) []Interceptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.targets[identity]
}

func (r *Registry) ensure() {
	if r.targets == nil {
		r.targets = make(map[string][]Interceptor)
	}
	if r.overrides == nil {
		r.overrides = make(map[string]any)
	}
}

func insertInterceptor(chain []Interceptor, i Interceptor, index []int) []Interceptor {
	if slices.Contains(chain, i) {
		return chain
	}
	at := len(chain)
	if len(index) > 0 {
		at = clampIndex(index[0], len(chain))
	}
	next := make([]Interceptor, 0, len(chain)+1)
	next = append(next, chain[:at]...)
	next = append(next, i)
	return append(next, chain[at:]...)
}

func removeInterceptor(chain []Interceptor, i Interceptor) []Interceptor {
	idx := slices.Index(chain, i)
	if idx < 0 {
		return chain
	}
	next := make([]Interceptor, 0, len(chain)-1)
	next = append(next, chain[:idx]...)
	return append(next, chain[idx+1:]...)
}

func clampIndex(index, length int) int {
	if index < 0 {
		return 0
	}
	if index > length {
		return length
	}
	return index
}
