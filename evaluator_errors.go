package barney

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRuleNotBool reports a rule expression that produced a non-boolean.
var ErrRuleNotBool = errors.New("barney: rule must evaluate to a bool")

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine    string
	Expr      string
	Reference string
	Err       error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("barney: %s evaluator %s reference=%s: %v", e.Engine, describeExpression(e.Expr), e.Reference, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "barney:") {
		return err
	}
	return fmt.Errorf("barney: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, reference string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Reference == "" {
			evalErr.Reference = reference
		}
		return evalErr
	}

	return &EvaluationError{
		Engine:    engine,
		Expr:      expr,
		Reference: reference,
		Err:       err,
	}
}
