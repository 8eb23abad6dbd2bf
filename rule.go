package barney

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

// Rule is an interceptor guarded by an expression. When the expression
// evaluates to true for a request, Rule delegates to its inner interceptor;
// when false it has no opinion.
type Rule struct {
	expression string
	engine     string
	compiled   CompiledRule
	then       Interceptor
	args       map[string]any
	metadata   map[string]any
	logger     EvaluatorLogger
	now        func() time.Time
}

// RuleOption configures a Rule.
type RuleOption func(*ruleConfig)

type ruleConfig struct {
	evaluator Evaluator
	engine    string
	cache     ProgramCache
	functions *FunctionRegistry
	args      map[string]any
	metadata  map[string]any
	logger    EvaluatorLogger
	now       func() time.Time
}

// WithRuleEvaluator evaluates the rule with evaluator instead of an engine
// built from the other options.
func WithRuleEvaluator(evaluator Evaluator) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.evaluator = evaluator
	}
}

// WithRuleEngine selects a built-in engine: expr (the default), cel or js.
func WithRuleEngine(engine string) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.engine = strings.ToLower(strings.TrimSpace(engine))
	}
}

// WithRuleProgramCache caches compiled programs across rules sharing cache.
func WithRuleProgramCache(cache ProgramCache) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.cache = cache
	}
}

// WithRuleFunctions exposes registry functions to the expression.
func WithRuleFunctions(registry *FunctionRegistry) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.functions = registry
	}
}

// WithRuleArgs binds args as the expression's args variable.
func WithRuleArgs(args map[string]any) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.args = maps.Clone(args)
	}
}

// WithRuleMetadata binds metadata as the expression's metadata variable.
func WithRuleMetadata(metadata map[string]any) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.metadata = maps.Clone(metadata)
	}
}

// WithRuleLogger records every evaluation.
func WithRuleLogger(logger EvaluatorLogger) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.logger = logger
	}
}

// WithRuleClock overrides the source of the now variable.
func WithRuleClock(now func() time.Time) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.now = now
	}
}

// NewRule compiles expression and returns an interceptor that delegates to
// then whenever the expression is true. Compilation errors are returned
// here, never during dispatch.
func NewRule(expression string, then Interceptor, opts ...RuleOption) (*Rule, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("barney: rule expression must not be empty")
	}
	if !validInterceptor(then) {
		return nil, registrationError("rule", "", ErrInvalidInterceptor)
	}
	cfg := ruleConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	evaluator, err := cfg.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	engine := evaluatorEngineName(evaluator)
	compiled, err := evaluator.Compile(expression)
	if err != nil {
		return nil, wrapEvaluationError(engine, expression, "", err)
	}
	rule := &Rule{
		expression: expression,
		engine:     engine,
		compiled:   compiled,
		then:       then,
		args:       cfg.args,
		metadata:   cfg.metadata,
		logger:     cfg.logger,
		now:        cfg.now,
	}
	if rule.logger == nil {
		rule.logger = noopLogger{}
	}
	return rule, nil
}

// MustRule is NewRule for expressions known to compile.
func MustRule(expression string, then Interceptor, opts ...RuleOption) *Rule {
	rule, err := NewRule(expression, then, opts...)
	if err != nil {
		panic(err)
	}
	return rule
}

// Expression returns the rule's source expression.
func (r *Rule) Expression() string {
	return r.expression
}

// Engine returns the name of the engine evaluating the rule.
func (r *Rule) Engine() string {
	return r.engine
}

// Matches evaluates the expression for req.
func (r *Rule) Matches(req Request) (bool, error) {
	ctx := RuleContext{Request: req, Args: r.args, Metadata: r.metadata}
	if r.now != nil {
		now := r.now()
		ctx.Now = &now
	}
	ctx = ctx.withDefaults()

	start := time.Now()
	value, err := r.compiled.Evaluate(ctx)
	if err == nil {
		if _, ok := value.(bool); !ok {
			err = fmt.Errorf("%w, got %T", ErrRuleNotBool, value)
		}
	}
	err = wrapEvaluationError(r.engine, r.expression, ctx.referenceLabel(), err)
	r.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:    r.engine,
		Expr:      r.expression,
		Reference: req.Reference,
		Duration:  time.Since(start),
		Err:       err,
	})
	if err != nil {
		return false, err
	}
	return value.(bool), nil
}

// Intercept implements Interceptor.
func (r *Rule) Intercept(req Request) (Result, error) {
	matched, err := r.Matches(req)
	if err != nil {
		return None(), err
	}
	if !matched {
		return None(), nil
	}
	return r.then.Intercept(req)
}

func (cfg ruleConfig) resolveEvaluator() (Evaluator, error) {
	if cfg.evaluator != nil {
		return cfg.evaluator, nil
	}
	switch cfg.engine {
	case "", "expr":
		var opts []ExprEvaluatorOption
		if cfg.cache != nil {
			opts = append(opts, ExprWithProgramCache(cfg.cache))
		}
		if cfg.functions != nil {
			opts = append(opts, ExprWithFunctionRegistry(cfg.functions))
		}
		return NewExprEvaluator(opts...), nil
	case "cel":
		var opts []CELEvaluatorOption
		if cfg.cache != nil {
			opts = append(opts, CELWithProgramCache(cfg.cache))
		}
		if cfg.functions != nil {
			opts = append(opts, CELWithFunctionRegistry(cfg.functions))
		}
		return NewCELEvaluator(opts...), nil
	case "js":
		var opts []JSEvaluatorOption
		if cfg.cache != nil {
			opts = append(opts, JSWithProgramCache(cfg.cache))
		}
		if cfg.functions != nil {
			opts = append(opts, JSWithFunctionRegistry(cfg.functions))
		}
		return NewJSEvaluator(opts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ErrNoEvaluator, cfg.engine)
	}
}
