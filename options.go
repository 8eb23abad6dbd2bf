package barney

import (
	"context"

	"github.com/goliatone/go-barney/pkg/activity"
)

// Option configures a System or a Dispatcher.
type Option func(*systemConfig)

type systemConfig struct {
	registry       *Registry
	baseParent     string
	manualActivate bool
	logger         DispatchLogger
	activityHooks  activity.Hooks
	activityCfg    activity.Config
	ctx            context.Context
}

func applyOptions(opts []Option) systemConfig {
	cfg := systemConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithRegistry shares registry instead of creating a fresh one.
func WithRegistry(registry *Registry) Option {
	return func(cfg *systemConfig) {
		cfg.registry = registry
	}
}

// WithBaseParent sets the calling context used to canonicalize targets passed
// to registration calls and Unload. The default is the host's top level.
func WithBaseParent(parent string) Option {
	return func(cfg *systemConfig) {
		cfg.baseParent = parent
	}
}

// WithAutoActivate controls whether New installs the dispatcher immediately.
// Systems activate on creation by default.
func WithAutoActivate(enabled bool) Option {
	return func(cfg *systemConfig) {
		cfg.manualActivate = !enabled
	}
}

// WithDispatchLogger attaches a dispatch logger. Nil restores the noop logger.
func WithDispatchLogger(logger DispatchLogger) Option {
	return func(cfg *systemConfig) {
		cfg.logger = logger
	}
}

// WithActivityHooks attaches activity hooks notified after every dispatch.
// Hooks are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *systemConfig) {
		cfg.activityHooks = normalized
		cfg.activityCfg.Enabled = len(normalized) > 0
	}
}

// WithActivityConfig overrides the channel and actor stamped on emitted
// events.
func WithActivityConfig(config activity.Config) Option {
	return func(cfg *systemConfig) {
		enabled := cfg.activityCfg.Enabled
		cfg.activityCfg = config
		cfg.activityCfg.Enabled = enabled
	}
}

// WithContext sets the context handed to activity hooks.
func WithContext(ctx context.Context) Option {
	return func(cfg *systemConfig) {
		cfg.ctx = ctx
	}
}

func (cfg systemConfig) dispatchLogger() DispatchLogger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return noopLogger{}
}

func (cfg systemConfig) emitter() *activity.Emitter {
	return activity.NewEmitter(cfg.activityHooks, cfg.activityCfg)
}

func (cfg systemConfig) context() context.Context {
	if cfg.ctx != nil {
		return cfg.ctx
	}
	return context.Background()
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
