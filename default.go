package barney

import "sync"

var (
	defaultSystem *System
	defaultHost   *MemoryHost
	defaultOnce   sync.Once
)

// Default returns the process-wide system. On first use it layers an active
// dispatcher onto a fresh MemoryHost.
func Default() *System {
	defaultOnce.Do(func() {
		if defaultSystem != nil {
			return
		}
		defaultHost = NewMemoryHost()
		defaultSystem = MustNew(defaultHost)
	})
	return defaultSystem
}

// DefaultHost returns the MemoryHost behind Default, or nil when SetDefault
// installed a system over another host.
func DefaultHost() *MemoryHost {
	Default()
	return defaultHost
}

// SetDefault installs s as the process-wide system. Only the first call made
// before Default has any effect.
func SetDefault(s *System) {
	defaultOnce.Do(func() {
		defaultSystem = s
		if host, ok := s.Host().(*MemoryHost); ok {
			defaultHost = host
		}
	})
}

// ResetDefault tears down the process-wide system and forgets it. It is not
// safe for concurrent use and exists for tests.
func ResetDefault() {
	if defaultSystem != nil {
		defaultSystem.Teardown()
	}
	defaultOnce = sync.Once{}
	defaultSystem = nil
	defaultHost = nil
}

// Use calls Use on the default system.
func Use(target string, value any, cache ...bool) error {
	return Default().Use(target, value, cache...)
}

// Hook calls Hook on the default system.
func Hook(target string, value any) error {
	return Default().Hook(target, value)
}

// Unhook calls Unhook on the default system.
func Unhook(target string) error {
	return Default().Unhook(target)
}

// Intercept calls Intercept on the default system.
func Intercept(i Interceptor) error {
	return Default().Intercept(i)
}

// InterceptAt calls InterceptAt on the default system.
func InterceptAt(index int, i Interceptor) error {
	return Default().InterceptAt(index, i)
}

// InterceptTarget calls InterceptTarget on the default system.
func InterceptTarget(target string, i Interceptor) error {
	return Default().InterceptTarget(target, i)
}

// InterceptTargetAt calls InterceptTargetAt on the default system.
func InterceptTargetAt(target string, index int, i Interceptor) error {
	return Default().InterceptTargetAt(target, index, i)
}

// RemoveInterceptor calls RemoveInterceptor on the default system.
func RemoveInterceptor(i Interceptor) *System {
	return Default().RemoveInterceptor(i)
}

// RemoveTargetInterceptor calls RemoveTargetInterceptor on the default system.
func RemoveTargetInterceptor(target string, i Interceptor) error {
	return Default().RemoveTargetInterceptor(target, i)
}

// UnloadIdentity calls UnloadIdentity on the default system.
func UnloadIdentity(identity string) *System {
	return Default().UnloadIdentity(identity)
}

// Canonical calls Canonical on the default system.
func Canonical(target string) (string, error) {
	return Default().Canonical(target)
}

// Reset clears the default system's registry.
func Reset() *System {
	return Default().Reset()
}

// ResetTarget calls ResetTarget on the default system.
func ResetTarget(target string) error {
	return Default().ResetTarget(target)
}

// Activate activates the default system.
func Activate() *System {
	return Default().Activate()
}

// Deactivate deactivates the default system.
func Deactivate() *System {
	return Default().Deactivate()
}

// Restore is an alias of Deactivate.
func Restore() *System {
	return Default().Restore()
}

// IsActive reports whether the default system is active.
func IsActive() bool {
	return Default().IsActive()
}

// Unload calls Unload on the default system.
func Unload(target string) error {
	return Default().Unload(target)
}
