package barney

import (
	"reflect"
	"sync"
)

// Request describes a single module request flowing through a host's load
// path.
type Request struct {
	// Reference is the name exactly as the dependent wrote it.
	Reference string
	// Identity is the canonical identity of Reference. The dispatcher fills it
	// before any interceptor runs; hosts leave it empty.
	Identity string
	// Parent is the identity of the requesting module, empty at top level.
	Parent string
	// Entry reports whether the request loads the program entry point.
	Entry bool
}

// Result is the outcome of an interceptor. The zero value means the
// interceptor has no opinion and evaluation continues.
type Result struct {
	value   any
	defined bool
}

// Some returns a defined result. Any value is legal, including nil, zero,
// empty strings and false.
func Some(value any) Result {
	return Result{value: value, defined: true}
}

// None returns the "no opinion" result.
func None() Result {
	return Result{}
}

// Get returns the value and whether the result is defined.
func (r Result) Get() (any, bool) {
	return r.value, r.defined
}

// Defined reports whether r carries a value.
func (r Result) Defined() bool {
	return r.defined
}

// Interceptor is consulted during dispatch and may supply a result, defer by
// returning None, or abort the dispatch by returning an error.
//
// Registries compare interceptors with ==, so implementations must be
// comparable. Use Func to register a plain function.
type Interceptor interface {
	Intercept(req Request) (Result, error)
}

type funcInterceptor struct {
	fn func(Request) (Result, error)
}

func (f *funcInterceptor) Intercept(req Request) (Result, error) {
	if f == nil || f.fn == nil {
		return None(), nil
	}
	return f.fn(req)
}

// Func adapts fn to an Interceptor. Each call returns a distinct identity, so
// keep the returned value around to remove or re-register it.
func Func(fn func(Request) (Result, error)) Interceptor {
	if fn == nil {
		return nil
	}
	return &funcInterceptor{fn: fn}
}

// Returns builds an interceptor that always yields value.
func Returns(value any) Interceptor {
	return Func(func(Request) (Result, error) {
		return Some(value), nil
	})
}

// Fails builds an interceptor that always aborts with err.
func Fails(err error) Interceptor {
	return Func(func(Request) (Result, error) {
		return None(), err
	})
}

// Spy records every request it sees and answers with the configured Result
// and Err. The zero value records and defers.
type Spy struct {
	Result Result
	Err    error

	mu    sync.Mutex
	calls []Request
}

// Intercept records req.
func (s *Spy) Intercept(req Request) (Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	result, err := s.Result, s.Err
	s.mu.Unlock()
	return result, err
}

// Calls returns a copy of the recorded requests.
func (s *Spy) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}

// CallCount returns the number of recorded requests.
func (s *Spy) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Loader performs a load for a request. Hosts expose the currently installed
// loader through Host.Loader.
type Loader interface {
	Load(req Request) (any, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(req Request) (any, error)

// Load implements Loader.
func (f LoaderFunc) Load(req Request) (any, error) {
	if f == nil {
		return nil, NotFound()
	}
	return f(req)
}

// Host is the module system the dispatcher is layered onto. It owns
// resolution, the module cache and a single interception point: the
// installed Loader.
type Host interface {
	// Resolve maps a reference requested from parent to its canonical
	// identity. Unresolvable references must fail with an error matching
	// ErrNotFound.
	Resolve(reference, parent string) (string, error)
	// Loader returns the loader currently used for every request.
	Loader() Loader
	// SetLoader installs loader as the host's load hook.
	SetLoader(loader Loader)
	// Uncache drops any memoized load result for identity and reports
	// whether an entry existed.
	Uncache(identity string) bool
}

func validInterceptor(i Interceptor) bool {
	if i == nil {
		return false
	}
	rv := reflect.ValueOf(i)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		if rv.IsNil() {
			return false
		}
	}
	return rv.Type().Comparable()
}

func sameLoader(a, b Loader) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
