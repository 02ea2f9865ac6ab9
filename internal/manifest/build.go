package manifest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	store "github.com/goliatone/go-store"
	"github.com/goliatone/go-store/tree"
)

// Engine names accepted by the engine fields.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

var (
	// ErrEngineUnavailable is returned for the js engine when the binary was
	// built without the js_eval tag.
	ErrEngineUnavailable = errors.New("manifest: engine not built in")
	// ErrActionFailed is wrapped by the error of a modifier with an error
	// field.
	ErrActionFailed = errors.New("manifest: action failed")
)

func knownEngine(name string) bool {
	switch name {
	case "", EngineExpr, EngineCEL, EngineJS:
		return true
	}
	return false
}

// Evaluator returns a fresh evaluator for the named engine backed by cache,
// which may be nil. An empty name is the expr engine.
func Evaluator(name string, cache store.ProgramCache) (store.Evaluator, error) {
	var evaluator store.Evaluator
	switch name {
	case "", EngineExpr:
		evaluator = store.NewExprEvaluator(store.ExprWithProgramCache(cache))
	case EngineCEL:
		evaluator = store.NewCELEvaluator(store.CELWithProgramCache(cache))
	case EngineJS:
		evaluator = store.NewJSEvaluator(store.JSWithProgramCache(cache))
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ErrInvalid, name)
	}
	if evaluator == nil {
		return nil, fmt.Errorf("%w: %s", ErrEngineUnavailable, name)
	}
	return evaluator, nil
}

type builder struct {
	engine     string
	fallback   store.Evaluator
	evaluators map[string]store.Evaluator
}

func (b *builder) evaluator(name string) (store.Evaluator, error) {
	if name == "" {
		name = b.engine
	}
	if name == "" && b.fallback != nil {
		return b.fallback, nil
	}
	if ev, ok := b.evaluators[name]; ok {
		return ev, nil
	}
	ev, err := Evaluator(name, store.NewMemoryProgramCache())
	if err != nil {
		return nil, err
	}
	b.evaluators[name] = ev
	return ev, nil
}

// Build compiles every expression of m into modifiers. fallback evaluates
// modifiers when neither the manifest nor the modifier names an engine; nil
// means the expr engine.
func Build(m *Manifest, fallback store.Evaluator) ([]store.Modifier, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil manifest", ErrInvalid)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	b := &builder{
		engine:     m.Engine,
		fallback:   fallback,
		evaluators: make(map[string]store.Evaluator),
	}

	out := make([]store.Modifier, 0, len(m.Modifiers))
	for _, def := range m.Modifiers {
		mod, err := b.modifier(def)
		if err != nil {
			return nil, fmt.Errorf("manifest: modifier %q: %w", def.Name, err)
		}
		out = append(out, mod)
	}
	return out, nil
}

func (b *builder) modifier(def Modifier) (store.Modifier, error) {
	ev, err := b.evaluator(def.Engine)
	if err != nil {
		return store.Modifier{}, err
	}

	var compute store.CompiledExpression
	if def.Compute != "" {
		compute, err = ev.Compile(def.Compute)
		if err != nil {
			return store.Modifier{}, fmt.Errorf("compute: %w", err)
		}
	}

	reducers := make([]store.ReducerBinding, 0, len(def.Reducers))
	for i, red := range def.Reducers {
		binding, err := reducerBinding(ev, red)
		if err != nil {
			return store.Modifier{}, fmt.Errorf("reducers[%d]: %w", i, err)
		}
		reducers = append(reducers, binding)
	}

	return store.Modifier{
		Name:     def.Name,
		Reducers: reducers,
		Action:   action(def, compute),
	}, nil
}

func reducerBinding(ev store.Evaluator, red Reducer) (store.ReducerBinding, error) {
	var (
		selector store.Selector
		err      error
	)
	if red.Selector != "" {
		selector, err = store.CompileSelector(ev, red.Selector)
		if err != nil {
			return store.ReducerBinding{}, fmt.Errorf("selector: %w", err)
		}
	} else {
		steps, err := pathSteps(red.Path)
		if err != nil {
			return store.ReducerBinding{}, err
		}
		selector = store.Path(steps...)
	}

	kind, expr := red.patch()
	reduce, err := store.CompileReducer(ev, kind, expr)
	if err != nil {
		return store.ReducerBinding{}, fmt.Errorf("%s: %w", kind, err)
	}
	return store.ReducerBinding{Selector: selector, Reduce: reduce}, nil
}

func (r Reducer) patch() (store.PatchKind, string) {
	switch {
	case r.Merge != "":
		return store.PatchMerge, r.Merge
	case r.Replace != "":
		return store.PatchReplace, r.Replace
	case r.Each != "":
		return store.PatchEach, r.Each
	default:
		return store.PatchKeep, ""
	}
}

// pathSteps turns manifest path entries into Path steps. "$N" refers to
// argument N.
func pathSteps(raw []any) ([]any, error) {
	steps := make([]any, 0, len(raw))
	for i, step := range raw {
		switch typed := step.(type) {
		case int:
			steps = append(steps, typed)
		case string:
			if ref, ok := strings.CutPrefix(typed, "$"); ok {
				n, err := strconv.Atoi(ref)
				if err != nil || n < 0 {
					return nil, fmt.Errorf("path[%d]: bad argument reference %q", i, typed)
				}
				steps = append(steps, store.Arg(n))
				continue
			}
			steps = append(steps, typed)
		default:
			return nil, fmt.Errorf("path[%d]: expected a key or an index, got %T", i, step)
		}
	}
	return steps, nil
}

func action(def Modifier, compute store.CompiledExpression) store.Action {
	return func(ctx context.Context, args ...any) (any, error) {
		if def.Delay > 0 {
			timer := time.NewTimer(def.Delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if def.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrActionFailed, def.Error)
		}
		if compute != nil {
			return compute.Evaluate(store.EvalContext{Args: args})
		}
		return tree.Clone(def.Result), nil
	}
}

// Open loads the manifest state into a new store and registers its
// modifiers.
func Open(m *Manifest, opts ...store.Option) (*store.Store, error) {
	mods, err := Build(m, nil)
	if err != nil {
		return nil, err
	}
	s, err := store.Load(m.State, opts...)
	if err != nil {
		return nil, err
	}
	for _, mod := range mods {
		if err := s.Register(mod); err != nil {
			return nil, err
		}
	}
	return s, nil
}
