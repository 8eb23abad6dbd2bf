package barney

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoEvaluator reports a rule whose engine has no evaluator.
var ErrNoEvaluator = errors.New("barney: evaluator not configured")

// RuleContext carries the inputs a rule expression is evaluated against.
type RuleContext struct {
	Request  Request
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) referenceLabel() string {
	if ctx.Request.Reference != "" {
		return ctx.Request.Reference
	}
	return "unknown"
}

// variables is the environment every engine exposes to expressions.
func (ctx RuleContext) variables() map[string]any {
	return map[string]any{
		"reference": ctx.Request.Reference,
		"identity":  ctx.Request.Identity,
		"parent":    ctx.Request.Parent,
		"entry":     ctx.Request.Entry,
		"now":       ctx.timestamp(),
		"args":      ctx.Args,
		"metadata":  ctx.Metadata,
	}
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*barney.exprEvaluator":
		return "expr"
	case "*barney.celEvaluator":
		return "cel"
	case "*barney.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
