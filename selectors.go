package store

import (
	"fmt"
	"time"

	"github.com/goliatone/go-store/tree"
)

// ArgRef stands for the i-th execution argument inside a Path.
type ArgRef int

// Arg refers to the i-th argument a modifier was executed with.
func Arg(i int) ArgRef {
	return ArgRef(i)
}

// Path returns a selector that follows object keys (string) and sequence
// indexes (int) from the root. Steps given as Arg(i) are replaced by the
// execution arguments. An empty path selects the root. A path that does not
// resolve selects nothing.
func Path(steps ...any) Selector {
	return pathSelector{steps: append([]any(nil), steps...)}
}

type pathSelector struct {
	steps []any
}

func (p pathSelector) Select(state map[string]any, args ...any) (any, error) {
	resolved := make([]any, len(p.steps))
	for i, step := range p.steps {
		ref, ok := step.(ArgRef)
		if !ok {
			resolved[i] = step
			continue
		}
		if int(ref) < 0 || int(ref) >= len(args) {
			return nil, fmt.Errorf("store: path step %d refers to argument %d, got %d arguments", i, int(ref), len(args))
		}
		resolved[i] = args[ref]
	}
	if len(resolved) == 0 {
		return state, nil
	}
	return tree.Lookup(state, resolved...), nil
}

// MatchFunc reports whether item belongs to a match set.
type MatchFunc func(item any, args ...any) bool

// Where selects the elements of the sequence chosen by seq for which match
// holds. The result is a match set: it can be patched with Each and its
// elements show as loading, but it cannot be replaced as a whole.
func Where(seq Selector, match MatchFunc) Selector {
	return whereSelector{seq: seq, match: match}
}

type whereSelector struct {
	seq   Selector
	match MatchFunc
}

func (w whereSelector) Select(state map[string]any, args ...any) (any, error) {
	items, err := selectSequence(w.seq, state, args)
	if err != nil || items == nil {
		return nil, err
	}
	matches := make([]any, 0, len(items))
	for _, item := range items {
		if w.match == nil || w.match(item, args...) {
			matches = append(matches, item)
		}
	}
	return matches, nil
}

// First selects the first element of the sequence chosen by seq for which
// match holds, or nothing.
func First(seq Selector, match MatchFunc) Selector {
	return firstSelector{seq: seq, match: match}
}

type firstSelector struct {
	seq   Selector
	match MatchFunc
}

func (f firstSelector) Select(state map[string]any, args ...any) (any, error) {
	items, err := selectSequence(f.seq, state, args)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if f.match == nil || f.match(item, args...) {
			return item, nil
		}
	}
	return nil, nil
}

func selectSequence(seq Selector, state map[string]any, args []any) ([]any, error) {
	if seq == nil {
		return nil, fmt.Errorf("store: sequence selector is nil")
	}
	selected, err := seq.Select(state, args...)
	if err != nil || selected == nil {
		return nil, err
	}
	items, ok := selected.([]any)
	if !ok {
		return nil, fmt.Errorf("store: expected a sequence, got %s", describeNode(selected))
	}
	return items, nil
}

// CompileSelector turns expr into a selector evaluated by evaluator. Every
// top-level state key is a variable, next to state, args and now. Container
// results are live references, so the expression must return a node of the
// state (or a filter of its elements) rather than build a new one.
func CompileSelector(evaluator Evaluator, expr string) (Selector, error) {
	return compileSelector(evaluator, expr, noopEvaluatorLogger{}, time.Now)
}

// CompileSelector compiles expr with the store's evaluator. Evaluations are
// reported to the store's evaluator logger.
func (s *Store) CompileSelector(expr string) (Selector, error) {
	evaluator, err := s.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	return compileSelector(evaluator, expr, s.cfg.evaluatorLogger, s.cfg.now)
}

func compileSelector(evaluator Evaluator, expr string, logger EvaluatorLogger, now func() time.Time) (Selector, error) {
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	engine := evaluatorEngineName(evaluator)
	compiled, err := evaluator.Compile(expr)
	if err != nil {
		return nil, wrapEvaluationError(engine, expr, err)
	}
	return &expressionSelector{
		compiled: compiled,
		expr:     expr,
		engine:   engine,
		logger:   logger,
		now:      now,
	}, nil
}

type expressionSelector struct {
	compiled CompiledExpression
	expr     string
	engine   string
	logger   EvaluatorLogger
	now      func() time.Time
}

func (e *expressionSelector) Select(state map[string]any, args ...any) (any, error) {
	now := e.now()
	start := time.Now()
	value, err := e.compiled.Evaluate(EvalContext{State: state, Args: args, Now: &now})
	err = wrapEvaluationError(e.engine, e.expr, err)
	e.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   e.engine,
		Expr:     e.expr,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// String returns the source expression.
func (e *expressionSelector) String() string {
	return e.expr
}
