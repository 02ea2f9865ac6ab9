package store

import (
	"context"
	"time"

	"github.com/goliatone/go-store/pkg/activity"
)

// LoadingKey is the conventional key used when the loading flag has to be
// serialized next to the data, see Snapshot.Annotated.
const LoadingKey = "_loading"

// Selector locates a node of a state tree. Implementations must be pure and
// must return a live reference into the tree they are given, so that the
// same selector finds the corresponding node in the canonical state and in
// any snapshot of it. A nil result means nothing was selected.
type Selector interface {
	Select(state map[string]any, args ...any) (any, error)
}

// SelectorFunc adapts a plain function to Selector.
type SelectorFunc func(state map[string]any, args ...any) any

// Select implements Selector.
func (f SelectorFunc) Select(state map[string]any, args ...any) (any, error) {
	if f == nil {
		return nil, nil
	}
	return f(state, args...), nil
}

// ReducerFunc computes the patch to apply to the node a selector returned,
// given the value the modifier's action resolved to.
type ReducerFunc func(selected any, result any) (Patch, error)

// ReducerBinding pairs a selector with the reducer applied to its selection.
type ReducerBinding struct {
	Selector Selector
	Reduce   ReducerFunc
}

// Action is the long running step of a modifier. It receives the arguments
// the modifier was executed with.
type Action func(ctx context.Context, args ...any) (any, error)

// Modifier is a named unit combining one action with the reducers that apply
// its result. Reducers run in the order they are listed.
type Modifier struct {
	Name     string
	Reducers []ReducerBinding
	Action   Action
}

// ActionInstance records one in-flight execution of a modifier.
type ActionInstance struct {
	ID        string
	Modifier  string
	Args      []any
	StartedAt time.Time

	seq uint64
}

func (i ActionInstance) clone() ActionInstance {
	out := i
	if i.Args != nil {
		out.Args = append([]any(nil), i.Args...)
	}
	return out
}

// Option configures a Store.
type Option func(*storeConfig)

type storeConfig struct {
	evaluator       Evaluator
	programCache    ProgramCache
	functions       *FunctionRegistry
	evaluatorLogger EvaluatorLogger
	logger          ExecutionLogger
	activityHooks   activity.Hooks
	activityConfig  activity.Config
	newID           func() string
	now             func() time.Time
}

func applyOptions(opts []Option) storeConfig {
	cfg := storeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopExecutionLogger{}
	}
	if cfg.evaluatorLogger == nil {
		cfg.evaluatorLogger = noopEvaluatorLogger{}
	}
	if cfg.newID == nil {
		cfg.newID = newInstanceID
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return cfg
}

// WithClock overrides the clock used to stamp action instances and events.
func WithClock(now func() time.Time) Option {
	return func(cfg *storeConfig) {
		cfg.now = now
	}
}

// EvalContext carries the inputs of one expression evaluation.
type EvalContext struct {
	State map[string]any
	Args  []any
	Vars  map[string]any
	Now   *time.Time
}

func (ctx EvalContext) withDefaultNow() EvalContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx EvalContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx EvalContext) withDefaults() EvalContext {
	ctx = ctx.withDefaultNow()
	if ctx.State == nil {
		ctx.State = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = []any{}
	}
	if ctx.Vars == nil {
		ctx.Vars = map[string]any{}
	}
	return ctx
}

// reserved names shadow state keys of the same name in expression
// environments.
var reservedNames = map[string]struct{}{
	"now":   {},
	"args":  {},
	"state": {},
	"call":  {},
}

func isReserved(name string) bool {
	_, ok := reservedNames[name]
	return ok
}

// Evaluator executes expressions against an evaluation context.
type Evaluator interface {
	Evaluate(ctx EvalContext, expr string) (any, error)
	Compile(expr string) (CompiledExpression, error)
}

// CompiledExpression is a reusable expression program.
type CompiledExpression interface {
	Evaluate(ctx EvalContext) (any, error)
}
