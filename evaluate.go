package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoEvaluator is returned when no evaluator could be resolved.
var ErrNoEvaluator = errors.New("store: evaluator not configured")

// WithEvaluator sets the evaluator used by CompileSelector and Evaluate.
// Without it the store builds an expr evaluator on first use.
func WithEvaluator(evaluator Evaluator) Option {
	return func(cfg *storeConfig) {
		cfg.evaluator = evaluator
	}
}

// Evaluate runs expr against a snapshot of the current state. The loading
// overlay is not visible to expressions.
func (s *Store) Evaluate(expr string, args ...any) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("store: expression must not be empty")
	}
	evaluator, err := s.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	snapshot := s.State()
	now := s.cfg.now()
	return s.evaluate(evaluator, EvalContext{State: snapshot.Root(), Args: args, Now: &now}, expr)
}

func (s *Store) evaluate(evaluator Evaluator, ctx EvalContext, expr string) (any, error) {
	start := time.Now()
	value, err := evaluator.Evaluate(ctx, expr)
	err = wrapEvaluationError(evaluatorEngineName(evaluator), expr, err)
	s.cfg.evaluatorLogger.LogEvaluation(EvaluatorLogEvent{
		Engine:   evaluatorEngineName(evaluator),
		Expr:     expr,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) resolveEvaluator() (Evaluator, error) {
	s.evalOnce.Do(func() {
		if s.cfg.evaluator != nil {
			return
		}
		var exprOpts []ExprEvaluatorOption
		if s.cfg.programCache != nil {
			exprOpts = append(exprOpts, ExprWithProgramCache(s.cfg.programCache))
		}
		if s.cfg.functions != nil {
			exprOpts = append(exprOpts, ExprWithFunctionRegistry(s.cfg.functions))
		}
		s.cfg.evaluator = NewExprEvaluator(exprOpts...)
	})
	if s.cfg.evaluator == nil {
		return nil, ErrNoEvaluator
	}
	return s.cfg.evaluator, nil
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	default:
		if jsEvaluatorAvailable() && fmt.Sprintf("%T", e) == "*store.jsEvaluator" {
			return "js"
		}
		return "custom"
	}
}

// baseEnvironment exposes every top-level state key, then the reserved
// names, then Vars. Later entries shadow earlier ones.
func baseEnvironment(ctx EvalContext) map[string]any {
	env := make(map[string]any, len(ctx.State)+len(ctx.Vars)+3)
	for key, value := range ctx.State {
		env[key] = value
	}
	env["now"] = ctx.timestamp()
	env["args"] = ctx.Args
	env["state"] = ctx.State
	for key, value := range ctx.Vars {
		env[key] = value
	}
	return env
}
