package barney

import (
	"fmt"
	"strings"
	"sync"
)

// System owns a registry and the dispatcher layered onto one host. It is the
// handle tests use to substitute, intercept or fail module loads.
type System struct {
	host       Host
	registry   *Registry
	dispatcher *Dispatcher
	original   Loader
	baseParent string

	mu sync.Mutex
}

// New layers a dispatcher onto host. The loader installed in host at this
// point is captured once and becomes both the fallback and the loader
// Deactivate restores. The dispatcher is activated unless
// WithAutoActivate(false) is passed.
func New(host Host, opts ...Option) (*System, error) {
	if host == nil {
		return nil, fmt.Errorf("barney: host is required")
	}
	cfg := applyOptions(opts)
	registry := cfg.registry
	if registry == nil {
		registry = NewRegistry()
	}
	original := host.Loader()
	s := &System{
		host:       host,
		registry:   registry,
		original:   original,
		baseParent: cfg.baseParent,
	}
	s.dispatcher = NewDispatcher(registry, host, original, opts...)
	if !cfg.manualActivate {
		s.Activate()
	}
	return s, nil
}

// MustNew is New for fixtures that cannot fail.
func MustNew(host Host, opts ...Option) *System {
	s, err := New(host, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Host returns the host the system is layered onto.
func (s *System) Host() Host {
	return s.host
}

// Registry returns the system's registry.
func (s *System) Registry() *Registry {
	return s.registry
}

// Dispatcher returns the loader installed while the system is active.
func (s *System) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Activate installs the dispatcher as the host's loader. Activating an active
// system is a no-op.
func (s *System) Activate() *System {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !sameLoader(s.host.Loader(), s.dispatcher) {
		s.host.SetLoader(s.dispatcher)
	}
	return s
}

// Deactivate reinstalls the loader captured by New. Registered interceptors
// and overrides are kept and apply again after Activate.
func (s *System) Deactivate() *System {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host.SetLoader(s.original)
	return s
}

// Restore is an alias of Deactivate.
func (s *System) Restore() *System {
	return s.Deactivate()
}

// IsActive reports whether the host currently routes loads through this
// system's dispatcher.
func (s *System) IsActive() bool {
	return sameLoader(s.host.Loader(), s.dispatcher)
}

// Canonical returns the canonical identity of target as seen from the
// system's base parent.
func (s *System) Canonical(target string) (string, error) {
	return canonicalize(s.host, target, s.baseParent)
}

// Hook registers value as the static override for target, replacing any
// previous override.
func (s *System) Hook(target string, value any) error {
	identity, err := s.identity("hook", target)
	if err != nil {
		return err
	}
	return s.registry.SetOverride(identity, value)
}

// Unhook removes the static override for target.
func (s *System) Unhook(target string) error {
	identity, err := s.identity("unhook", target)
	if err != nil {
		return err
	}
	s.registry.RemoveOverride(identity)
	return nil
}

// Intercept appends i to the global chain.
func (s *System) Intercept(i Interceptor) error {
	return s.registry.AddGlobal(i)
}

// InterceptAt inserts i into the global chain before the entry currently at
// index.
func (s *System) InterceptAt(index int, i Interceptor) error {
	return s.registry.AddGlobal(i, index)
}

// InterceptTarget appends i to the chain for target.
func (s *System) InterceptTarget(target string, i Interceptor) error {
	identity, err := s.identity("intercept", target)
	if err != nil {
		return err
	}
	return s.registry.AddTarget(identity, i)
}

// InterceptTargetAt inserts i into the chain for target before the entry
// currently at index.
func (s *System) InterceptTargetAt(target string, index int, i Interceptor) error {
	identity, err := s.identity("intercept", target)
	if err != nil {
		return err
	}
	return s.registry.AddTarget(identity, i, index)
}

// RemoveInterceptor drops i from the global chain.
func (s *System) RemoveInterceptor(i Interceptor) *System {
	s.registry.RemoveGlobal(i)
	return s
}

// RemoveTargetInterceptor drops i from the chain for target.
func (s *System) RemoveTargetInterceptor(target string, i Interceptor) error {
	identity, err := s.identity("unintercept", target)
	if err != nil {
		return err
	}
	s.registry.RemoveTarget(identity, i)
	return nil
}

// Use routes to Hook or Intercept based on its arguments:
//   - an empty target registers value, which must be an Interceptor, globally;
//   - an Interceptor value with cache explicitly false is registered for
//     target;
//   - anything else, including an Interceptor with the default cache of true,
//     becomes the static override for target.
func (s *System) Use(target string, value any, cache ...bool) error {
	if strings.TrimSpace(target) == "" {
		i, ok := value.(Interceptor)
		if !ok || !validInterceptor(i) {
			return registrationError("use", target, ErrInvalidInterceptor)
		}
		return s.Intercept(i)
	}
	cached := true
	if len(cache) > 0 {
		cached = cache[0]
	}
	if i, ok := value.(Interceptor); ok && !cached {
		return s.InterceptTarget(target, i)
	}
	return s.Hook(target, value)
}

// Reset clears every interceptor and override.
func (s *System) Reset() *System {
	s.registry.ClearAll()
	return s
}

// ResetTarget clears the interceptors and the override registered for
// target only.
func (s *System) ResetTarget(target string) error {
	identity, err := s.identity("reset", target)
	if err != nil {
		return err
	}
	s.registry.ClearTarget(identity)
	return nil
}

// Unload drops the host's cached load result for target so the next request
// runs the real loader again.
func (s *System) Unload(target string) error {
	identity, err := s.identity("unload", target)
	if err != nil {
		return err
	}
	s.host.Uncache(identity)
	return nil
}

// UnloadIdentity drops the cached load result for identity without resolving
// it first.
func (s *System) UnloadIdentity(identity string) *System {
	s.host.Uncache(identity)
	return s
}

// Teardown deactivates the system and clears its registry.
func (s *System) Teardown() {
	s.Deactivate()
	s.Reset()
}

func (s *System) identity(op, target string) (string, error) {
	if strings.TrimSpace(target) == "" {
		return "", registrationError(op, target, ErrInvalidTarget)
	}
	identity, err := s.Canonical(target)
	if err != nil {
		return "", fmt.Errorf("barney: %s %q: %w", op, target, err)
	}
	return identity, nil
}
