package barney

import (
	"fmt"
	"maps"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-barney/internal/modpath"
)

// Function is a helper callable from rule expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry stores custom functions. Lookups ignore case; Names
// reports the spelling used at registration.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]registeredFunction
}

type registeredFunction struct {
	name string
	fn   Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]registeredFunction),
	}
}

// Register stores fn under name guarding against duplicates.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("barney: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("barney: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]registeredFunction)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("barney: function %q already registered", name)
	}
	r.functions[key] = registeredFunction{name: name, fn: fn}
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &FunctionRegistry{functions: maps.Clone(r.functions)}
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("barney: function registry is nil")
	}
	r.mu.RLock()
	entry, ok := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("barney: function %q not registered", name)
	}
	return entry.fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for _, entry := range r.functions {
		names = append(names, entry.name)
	}
	sort.Strings(names)
	return names
}

// ModuleFunctions returns a registry preloaded with helpers for matching
// module references: isRelative(ref), isPath(ref), basename(id), dirname(id),
// extname(id) and glob(pattern, id).
func ModuleFunctions() *FunctionRegistry {
	r := NewFunctionRegistry()
	unary := map[string]func(string) any{
		"isRelative": func(s string) any { return modpath.IsRelative(s) },
		"isPath":     func(s string) any { return modpath.IsPath(s) },
		"basename":   func(s string) any { return path.Base(s) },
		"dirname":    func(s string) any { return path.Dir(s) },
		"extname":    func(s string) any { return path.Ext(s) },
	}
	for name, fn := range unary {
		_ = r.Register(name, func(args ...any) (any, error) {
			s, err := stringArg(name, args, 0)
			if err != nil {
				return nil, err
			}
			return fn(s), nil
		})
	}
	_ = r.Register("glob", func(args ...any) (any, error) {
		pattern, err := stringArg("glob", args, 0)
		if err != nil {
			return nil, err
		}
		id, err := stringArg("glob", args, 1)
		if err != nil {
			return nil, err
		}
		matched, err := path.Match(pattern, id)
		if err != nil {
			return nil, fmt.Errorf("barney: glob %q: %w", pattern, err)
		}
		return matched, nil
	})
	return r
}

func stringArg(fn string, args []any, index int) (string, error) {
	if index >= len(args) {
		return "", fmt.Errorf("barney: %s expects %d argument(s), got %d", fn, index+1, len(args))
	}
	s, ok := args[index].(string)
	if !ok {
		return "", fmt.Errorf("barney: %s argument %d must be a string, got %T", fn, index+1, args[index])
	}
	return s, nil
}
