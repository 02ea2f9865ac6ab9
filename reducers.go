package store

import (
	"fmt"
	"time"
)

// Set returns a reducer that merges fields computed from the action result
// into an object selection.
func Set(fields func(result any) map[string]any) ReducerFunc {
	return func(_ any, result any) (Patch, error) {
		if fields == nil {
			return Keep(), nil
		}
		return Merge(fields(result)), nil
	}
}

// MergeResult is a reducer that merges an object result into an object
// selection.
func MergeResult(_ any, result any) (Patch, error) {
	fields, ok := result.(map[string]any)
	if !ok {
		return Patch{}, fmt.Errorf("store: merge needs an object result, got %s", describeNode(result))
	}
	return Merge(fields), nil
}

// ReplaceWithResult is a reducer that replaces a sequence selection with a
// sequence result.
func ReplaceWithResult(_ any, result any) (Patch, error) {
	items, ok := result.([]any)
	if !ok {
		return Patch{}, fmt.Errorf("store: replace needs a sequence result, got %s", describeNode(result))
	}
	return Replace(items), nil
}

// CompileReducer turns expr into a reducer evaluated by evaluator. The
// expression sees the variables selected and result; when the selection is
// an object its fields are variables too. Its value becomes a patch of kind:
//   - PatchMerge: an object of fields to overwrite.
//   - PatchReplace: the replacement sequence.
//   - PatchEach: a sequence with one entry per selected element, objects
//     merged, sequences replaced, null kept.
//
// PatchKeep ignores expr and changes nothing.
func CompileReducer(evaluator Evaluator, kind PatchKind, expr string) (ReducerFunc, error) {
	return compileReducer(evaluator, kind, expr, noopEvaluatorLogger{}, time.Now)
}

// CompileReducer compiles expr with the store's evaluator.
func (s *Store) CompileReducer(kind PatchKind, expr string) (ReducerFunc, error) {
	evaluator, err := s.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	return compileReducer(evaluator, kind, expr, s.cfg.evaluatorLogger, s.cfg.now)
}

func compileReducer(evaluator Evaluator, kind PatchKind, expr string, logger EvaluatorLogger, now func() time.Time) (ReducerFunc, error) {
	if kind == PatchKeep {
		return func(any, any) (Patch, error) { return Keep(), nil }, nil
	}
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	engine := evaluatorEngineName(evaluator)
	compiled, err := evaluator.Compile(expr)
	if err != nil {
		return nil, wrapEvaluationError(engine, expr, err)
	}
	return func(selected any, result any) (Patch, error) {
		state, _ := selected.(map[string]any)
		ts := now()
		start := time.Now()
		value, err := compiled.Evaluate(EvalContext{
			State: state,
			Vars:  map[string]any{"selected": selected, "result": result},
			Now:   &ts,
		})
		err = wrapEvaluationError(engine, expr, err)
		logger.LogEvaluation(EvaluatorLogEvent{
			Engine:   engine,
			Expr:     expr,
			Duration: time.Since(start),
			Err:      err,
		})
		if err != nil {
			return Patch{}, err
		}
		return patchFromValue(kind, value)
	}, nil
}

func patchFromValue(kind PatchKind, value any) (Patch, error) {
	switch kind {
	case PatchMerge:
		return MergeResult(nil, value)
	case PatchReplace:
		return ReplaceWithResult(nil, value)
	case PatchEach:
		items, ok := value.([]any)
		if !ok {
			return Patch{}, fmt.Errorf("store: each needs a sequence, got %s", describeNode(value))
		}
		patches := make([]Patch, 0, len(items))
		for i, item := range items {
			switch typed := item.(type) {
			case nil:
				patches = append(patches, Keep())
			case map[string]any:
				patches = append(patches, Merge(typed))
			case []any:
				patches = append(patches, Replace(typed))
			default:
				return Patch{}, fmt.Errorf("store: each entry %d must be an object, a sequence or null, got %s", i, describeNode(item))
			}
		}
		return Each(patches...), nil
	default:
		return Patch{}, fmt.Errorf("store: unknown patch kind %d", int(kind))
	}
}
