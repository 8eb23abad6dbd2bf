package barney

import (
	"context"
	"time"

	"github.com/goliatone/go-barney/pkg/activity"
)

// Dispatcher is the Loader installed into a host while a System is active.
// For every request it consults, in order, the global chain, the chain for
// the request's canonical identity, the static override for that identity
// and finally the fallback loader.
type Dispatcher struct {
	registry *Registry
	host     Host
	fallback Loader
	logger   DispatchLogger
	emitter  *activity.Emitter
	ctx      context.Context
}

// NewDispatcher wires registry in front of fallback. host is only used to
// canonicalize references.
func NewDispatcher(registry *Registry, host Host, fallback Loader, opts ...Option) *Dispatcher {
	cfg := applyOptions(opts)
	if registry == nil {
		registry = NewRegistry()
	}
	return &Dispatcher{
		registry: registry,
		host:     host,
		fallback: fallback,
		logger:   cfg.dispatchLogger(),
		emitter:  cfg.emitter(),
		ctx:      cfg.context(),
	}
}

// Registry returns the registry the dispatcher reads.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Fallback returns the loader used when no interceptor or override answers.
func (d *Dispatcher) Fallback() Loader {
	return d.fallback
}

// Load implements Loader.
func (d *Dispatcher) Load(req Request) (any, error) {
	value, _, err := d.Trace(req)
	return value, err
}

// Trace dispatches req and reports which tier produced the outcome. An error
// returned by an interceptor is passed through unchanged and stops the
// dispatch: no later interceptor and no fallback runs.
func (d *Dispatcher) Trace(req Request) (any, DispatchTrace, error) {
	start := time.Now()
	trace := DispatchTrace{
		Reference: req.Reference,
		Parent:    req.Parent,
		Index:     -1,
	}
	value, err := d.dispatch(&req, &trace)
	trace.Identity = req.Identity
	trace.Duration = time.Since(start)
	if err != nil {
		trace.Error = err.Error()
	}
	d.record(req, trace, err)
	return value, trace, err
}

func (d *Dispatcher) dispatch(req *Request, trace *DispatchTrace) (any, error) {
	identity, err := canonicalize(d.host, req.Reference, req.Parent)
	if err != nil {
		trace.Source = SourceResolve
		return nil, err
	}
	req.Identity = identity

	if value, index, done, err := runChain(d.registry.globalChain(), *req); done {
		trace.Source, trace.Index = SourceGlobal, index
		return value, err
	}
	if value, index, done, err := runChain(d.registry.targetChain(identity), *req); done {
		trace.Source, trace.Index = SourceTarget, index
		return value, err
	}
	if value, ok := d.registry.Override(identity); ok {
		trace.Source = SourceOverride
		return value, nil
	}

	trace.Source = SourceFallback
	if d.fallback == nil {
		return nil, NotFoundFor(req.Reference)
	}
	return d.fallback.Load(*req)
}

// runChain evaluates chain in order. The slice is a copy-on-write snapshot,
// so registry mutations made by an interceptor only affect later chains.
func runChain(chain []Interceptor, req Request) (any, int, bool, error) {
	for i, interceptor := range chain {
		result, err := interceptor.Intercept(req)
		if err != nil {
			return nil, i, true, err
		}
		if value, ok := result.Get(); ok {
			return value, i, true, nil
		}
	}
	return nil, -1, false, nil
}

func (d *Dispatcher) record(req Request, trace DispatchTrace, err error) {
	d.logger.LogDispatch(DispatchLogEvent{
		Reference: trace.Reference,
		Identity:  trace.Identity,
		Parent:    trace.Parent,
		Source:    trace.Source,
		Index:     trace.Index,
		Duration:  trace.Duration,
		Err:       err,
	})
	if !d.emitter.Enabled() {
		return
	}
	// Hook failures never change the dispatch outcome.
	_ = d.emitter.Emit(d.ctx, activity.BuildDispatchEvent(activity.DispatchEventInput{
		Reference: trace.Reference,
		Identity:  trace.Identity,
		Parent:    trace.Parent,
		Entry:     req.Entry,
		Source:    string(trace.Source),
		Index:     trace.Index,
		Duration:  trace.Duration,
		Err:       err,
	}))
}
