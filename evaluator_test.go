package store

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-store/tree"
)

var evaluatorFactories = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) Evaluator
	// expressions keyed by intent, in the engine's own syntax
	exprs map[string]string
}{
	{
		name: "expr",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []ExprEvaluatorOption{}
			if cache != nil {
				opts = append(opts, ExprWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, ExprWithFunctionRegistry(registry))
			}
			return NewExprEvaluator(opts...)
		},
		exprs: map[string]string{
			"object":   "part1",
			"nested":   "state.part1",
			"index":    "users[args[0]]",
			"filter":   "filter(users, .role == args[0])",
			"scalar":   "len(users) + 1",
			"function": `shout(part1.right)`,
			"reserved": "now",
		},
	},
	{
		name: "cel",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []CELEvaluatorOption{}
			if cache != nil {
				opts = append(opts, CELWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, CELWithFunctionRegistry(registry))
			}
			return NewCELEvaluator(opts...)
		},
		exprs: map[string]string{
			"object":   "part1",
			"nested":   "state.part1",
			"index":    "users[args[0]]",
			"filter":   "users.filter(u, u.role == args[0])",
			"scalar":   "size(users) + 1",
			"function": `call("shout", part1.right)`,
			"reserved": "now",
		},
	},
	{
		name: "js",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []JSEvaluatorOption{}
			if cache != nil {
				opts = append(opts, JSWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, JSWithFunctionRegistry(registry))
			}
			return NewJSEvaluator(opts...)
		},
		exprs: map[string]string{
			"object":   "part1",
			"nested":   "state.part1",
			"index":    "users[args[0]]",
			"scalar":   "users.length + 1",
			"function": `call("shout", part1.right)`,
		},
	},
}

func evaluatorState() map[string]any {
	return map[string]any{
		"part1": map[string]any{"right": "left"},
		"part2": map[string]any{},
		"users": []any{
			map[string]any{"id": "a", "role": "admin"},
			map[string]any{"id": "b", "role": "user"},
			map[string]any{"id": "c", "role": "admin"},
		},
	}
}

func TestEvaluatorsReturnLiveNodes(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skip("engine not built in")
			}
			state := evaluatorState()
			users := state["users"].([]any)

			got, err := evaluator.Evaluate(EvalContext{State: state}, factory.exprs["object"])
			if err != nil {
				t.Fatalf("object: %v", err)
			}
			if !tree.Same(got, state["part1"]) {
				t.Fatalf("expected the live part1 node, got %#v", got)
			}

			got, err = evaluator.Evaluate(EvalContext{State: state}, factory.exprs["nested"])
			if err != nil {
				t.Fatalf("nested: %v", err)
			}
			if !tree.Same(got, state["part1"]) {
				t.Fatalf("expected state.part1 to be the live node, got %#v", got)
			}

			got, err = evaluator.Evaluate(EvalContext{State: state, Args: []any{1}}, factory.exprs["index"])
			if err != nil {
				t.Fatalf("index: %v", err)
			}
			if !tree.Same(got, users[1]) {
				t.Fatalf("expected users[1], got %#v", got)
			}

			expr, ok := factory.exprs["filter"]
			if !ok {
				return
			}
			got, err = evaluator.Evaluate(EvalContext{State: state, Args: []any{"admin"}}, expr)
			if err != nil {
				t.Fatalf("filter: %v", err)
			}
			matches, ok := got.([]any)
			if !ok || len(matches) != 2 {
				t.Fatalf("expected two matches, got %#v", got)
			}
			if !tree.Same(matches[0], users[0]) || !tree.Same(matches[1], users[2]) {
				t.Fatalf("expected matches to be the live elements, got %#v", matches)
			}
		})
	}
}

func TestEvaluatorsScalarsAndReservedNames(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skip("engine not built in")
			}
			got, err := evaluator.Evaluate(EvalContext{State: evaluatorState()}, factory.exprs["scalar"])
			if err != nil {
				t.Fatalf("scalar: %v", err)
			}
			if fmt.Sprint(got) != "4" {
				t.Fatalf("expected 4, got %#v", got)
			}

			expr, ok := factory.exprs["reserved"]
			if !ok {
				return
			}
			state := evaluatorState()
			state["now"] = "shadowed"
			got, err = evaluator.Evaluate(EvalContext{State: state, Now: &fixed}, expr)
			if err != nil {
				t.Fatalf("reserved: %v", err)
			}
			ts, ok := got.(time.Time)
			if !ok || !ts.Equal(fixed) {
				t.Fatalf("expected reserved now to win over state, got %#v", got)
			}
		})
	}
}

func TestEvaluatorProgramCache(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := &fakeProgramCache{}
			evaluator := factory.new(cache, nil)
			if evaluator == nil {
				t.Skip("engine not built in")
			}
			for i := 0; i < 3; i++ {
				if _, err := evaluator.Evaluate(EvalContext{State: evaluatorState()}, factory.exprs["scalar"]); err != nil {
					t.Fatalf("unexpected error on iteration %d: %v", i, err)
				}
			}
			if cache.misses != 1 || cache.hits != 2 {
				t.Fatalf("expected 1 miss and 2 hits, got %d misses and %d hits", cache.misses, cache.hits)
			}
		})
	}
}

func TestCustomFunctionsAcrossEvaluators(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("shout", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("shout expects 1 arg")
		}
		s, _ := args[0].(string)
		return strings.ToUpper(s), nil
	}); err != nil {
		t.Fatalf("register shout: %v", err)
	}

	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, registry)
			if evaluator == nil {
				t.Skip("engine not built in")
			}
			got, err := evaluator.Evaluate(EvalContext{State: evaluatorState()}, factory.exprs["function"])
			if err != nil {
				t.Fatalf("function: %v", err)
			}
			if got != "LEFT" {
				t.Fatalf("expected LEFT, got %#v", got)
			}
		})
	}
}

func TestEvaluatorErrorsAreWrapped(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skip("engine not built in")
			}
			if _, err := evaluator.Evaluate(EvalContext{}, ""); err == nil {
				t.Fatalf("expected error for empty expression")
			}
			_, err := evaluator.Compile("part1 +* )")
			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) {
				t.Fatalf("expected EvaluationError, got %T %v", err, err)
			}
			if evalErr.Engine != factory.name || evalErr.Expr != "part1 +* )" {
				t.Fatalf("unexpected error fields: %+v", evalErr)
			}
		})
	}
}

func TestFunctionRegistryRules(t *testing.T) {
	registry := NewFunctionRegistry()
	fn := func(...any) (any, error) { return nil, nil }

	if err := registry.Register("Lookup", fn); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("lookup", fn); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	for _, name := range []string{"", "now", "args", "state", "call"} {
		if err := registry.Register(name, fn); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
	if err := registry.Register("nilfn", nil); err == nil {
		t.Fatalf("expected nil function to be rejected")
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected missing function error")
	}

	clone := registry.Clone()
	_ = clone.Register("extra", fn)
	if len(registry.Names()) != 1 || len(clone.Names()) != 2 {
		t.Fatalf("expected clone to be independent, got %v and %v", registry.Names(), clone.Names())
	}
}

func TestMemoryProgramCache(t *testing.T) {
	cache := NewMemoryProgramCache()
	if _, ok := cache.Get("x"); ok {
		t.Fatalf("expected empty cache")
	}
	cache.Set("x", 1)
	if value, ok := cache.Get("x"); !ok || value != 1 {
		t.Fatalf("expected cached value, got %v %v", value, ok)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected one entry, got %d", cache.Len())
	}

	var nilCache *MemoryProgramCache
	nilCache.Set("x", 1)
	if _, ok := nilCache.Get("x"); ok || nilCache.Len() != 0 {
		t.Fatalf("expected nil cache to stay empty")
	}
}

type fakeProgramCache struct {
	values map[string]any
	hits   int
	misses int
}

func (c *fakeProgramCache) Get(key string) (any, bool) {
	if c.values == nil {
		c.misses++
		return nil, false
	}
	value, ok := c.values[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return value, ok
}

func (c *fakeProgramCache) Set(key string, value any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = value
}
