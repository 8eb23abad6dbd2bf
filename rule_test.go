package barney

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var ruleEngines = []string{"expr", "cel", "js"}

func TestRuleDelegatesWhenTrue(t *testing.T) {
	expressions := map[string]string{
		"expr": `reference == "fs" && !entry`,
		"cel":  `reference == "fs" && !entry`,
		"js":   `reference === "fs" && !entry`,
	}
	for _, engine := range ruleEngines {
		t.Run(engine, func(t *testing.T) {
			rule, err := NewRule(expressions[engine], Returns("stub"), WithRuleEngine(engine))
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if rule.Engine() != engine {
				t.Fatalf("expected engine %s, got %s", engine, rule.Engine())
			}

			result, err := rule.Intercept(Request{Reference: "fs"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v, ok := result.Get(); !ok || v != "stub" {
				t.Fatalf("expected delegated result, got %v %v", v, ok)
			}

			result, err = rule.Intercept(Request{Reference: "path"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Defined() {
				t.Fatalf("expected no opinion when the rule is false")
			}
		})
	}
}

func TestRuleArgsMetadataAndClock(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	expressions := map[string]string{
		"expr": `identity == args.target && metadata.env == "test" && parent == "/main.js"`,
		"cel":  `identity == args.target && metadata.env == "test" && now.getFullYear() == 2024`,
		"js":   `identity === args.target && metadata.env === "test" && parent === "/main.js"`,
	}
	for _, engine := range ruleEngines {
		t.Run(engine, func(t *testing.T) {
			rule := MustRule(expressions[engine], Returns(true),
				WithRuleEngine(engine),
				WithRuleArgs(map[string]any{"target": "/db.js"}),
				WithRuleMetadata(map[string]any{"env": "test"}),
				WithRuleClock(func() time.Time { return fixed }),
			)
			matched, err := rule.Matches(Request{Reference: "./db", Identity: "/db.js", Parent: "/main.js"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !matched {
				t.Fatalf("expected rule to match")
			}
		})
	}
}

func TestRuleRejectsNonBoolResults(t *testing.T) {
	for _, engine := range ruleEngines {
		t.Run(engine, func(t *testing.T) {
			rule := MustRule(`reference`, Returns(1), WithRuleEngine(engine))
			_, err := rule.Intercept(Request{Reference: "fs"})
			if !errors.Is(err, ErrRuleNotBool) {
				t.Fatalf("expected ErrRuleNotBool, got %v", err)
			}
			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) || evalErr.Engine != engine || evalErr.Reference != "fs" {
				t.Fatalf("expected EvaluationError metadata, got %#v", err)
			}
		})
	}
}

func TestRuleCompileErrorsSurfaceAtConstruction(t *testing.T) {
	for _, engine := range ruleEngines {
		t.Run(engine, func(t *testing.T) {
			if _, err := NewRule(`reference ==`, Returns(1), WithRuleEngine(engine)); err == nil {
				t.Fatalf("expected compile error")
			}
		})
	}
	if _, err := NewRule(" ", Returns(1)); err == nil {
		t.Fatalf("expected error for empty expression")
	}
	if _, err := NewRule("true", nil); !errors.Is(err, ErrInvalidInterceptor) {
		t.Fatalf("expected ErrInvalidInterceptor, got %v", err)
	}
	if _, err := NewRule("true", Returns(1), WithRuleEngine("lisp")); !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}
}

func TestRuleFunctionsAndProgramCache(t *testing.T) {
	cache := NewProgramCache(0)
	expressions := map[string]string{
		"expr": `isRelative(reference) && glob("/app/*.js", identity)`,
		"cel":  `call("isRelative", reference) == true && call("glob", "/app/*.js", identity) == true`,
		"js":   `isRelative(reference) && glob("/app/*.js", identity)`,
	}
	for _, engine := range ruleEngines {
		t.Run(engine, func(t *testing.T) {
			rule, err := NewRule(expressions[engine], Returns("local"),
				WithRuleEngine(engine),
				WithRuleFunctions(ModuleFunctions()),
				WithRuleProgramCache(cache),
			)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			matched, err := rule.Matches(Request{Reference: "./db", Identity: "/app/db.js"})
			if err != nil || !matched {
				t.Fatalf("expected match, got %v (%v)", matched, err)
			}
			matched, err = rule.Matches(Request{Reference: "lodash", Identity: "lodash"})
			if err != nil || matched {
				t.Fatalf("expected no match, got %v (%v)", matched, err)
			}
			if _, ok := cache.Get(engine + ":" + expressions[engine]); !ok {
				t.Fatalf("expected compiled program cached under %s", engine)
			}
		})
	}
}

func TestRuleLogsEvaluations(t *testing.T) {
	var events []EvaluatorLogEvent
	rule := MustRule(`entry`, Returns("main"), WithRuleLogger(EvaluatorLoggerFunc(func(e EvaluatorLogEvent) {
		events = append(events, e)
	})))
	_, _ = rule.Intercept(Request{Reference: "./main", Entry: true})
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].Engine != "expr" || events[0].Expr != "entry" || events[0].Reference != "./main" || events[0].Err != nil {
		t.Fatalf("unexpected event %+v", events[0])
	}
}

func TestRuleAsRegisteredInterceptor(t *testing.T) {
	host := newTestHost(t)
	sys := MustNew(host)
	rule := MustRule(`identity startsWith "/app/" && parent == ""`, Fails(NotFound("blocked")))
	if err := sys.Intercept(rule); err != nil {
		t.Fatalf("intercept: %v", err)
	}
	_, err := host.Require("/app/foo.js", "")
	if !IsNotFound(err) || !strings.Contains(err.Error(), "blocked") {
		t.Fatalf("expected blocked not found, got %v", err)
	}
}

func TestEvaluatorEvaluateDirect(t *testing.T) {
	evaluators := map[string]Evaluator{
		"expr": NewExprEvaluator(),
		"cel":  NewCELEvaluator(),
		"js":   NewJSEvaluator(),
	}
	for name, evaluator := range evaluators {
		t.Run(name, func(t *testing.T) {
			got, err := evaluator.Evaluate(RuleContext{Request: Request{Entry: true}}, "entry")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != true {
				t.Fatalf("expected true, got %v", got)
			}
			if _, err := evaluator.Evaluate(RuleContext{}, ""); err == nil {
				t.Fatalf("expected error for empty expression")
			}
			if evaluatorEngineName(evaluator) != name {
				t.Fatalf("expected engine name %s, got %s", name, evaluatorEngineName(evaluator))
			}
		})
	}
}

func TestFunctionRegistry(t *testing.T) {
	r := NewFunctionRegistry()
	if err := r.Register("Upper", func(args ...any) (any, error) {
		return strings.ToUpper(args[0].(string)), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("upper", func(...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	got, err := r.Call("UPPER", "x")
	if err != nil || got != "X" {
		t.Fatalf("expected X, got %v (%v)", got, err)
	}
	if names := r.Names(); len(names) != 1 || names[0] != "Upper" {
		t.Fatalf("expected registration spelling preserved, got %v", names)
	}
	if _, err := r.Call("missing"); err == nil {
		t.Fatalf("expected error for unregistered function")
	}

	fns := ModuleFunctions()
	if v, _ := fns.Call("basename", "/a/b.js"); v != "b.js" {
		t.Fatalf("unexpected basename %v", v)
	}
	if _, err := fns.Call("extname", 3); err == nil {
		t.Fatalf("expected type error for non-string argument")
	}
}
