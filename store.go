package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-store/pkg/activity"
	"github.com/goliatone/go-store/tree"
)

// Store owns a state tree and the modifiers allowed to change it.
//
// Writes are serialized: a call applies all of its reducers and leaves the
// in-flight set in one critical section, so calls land in the order they
// settle. Snapshots are computed under the read lock and never observe a call
// half applied.
type Store struct {
	mu        sync.RWMutex
	state     map[string]any
	modifiers map[string]*registration
	live      map[string]struct{}
	seq       uint64

	cfg      storeConfig
	emitter  *activity.Emitter
	evalOnce sync.Once
}

type registration struct {
	modifier Modifier
	live     map[string]*ActionInstance
}

// New creates a store holding a deep copy of initial. A nil initial state
// starts the store empty.
func New(initial map[string]any, opts ...Option) *Store {
	state, _ := tree.Clone(initial).(map[string]any)
	if state == nil {
		state = map[string]any{}
	}
	return newStore(state, opts)
}

// Load creates a store from any value that normalizes to an object: generic
// maps, typed maps, or structs (through their JSON encoding).
func Load(initial any, opts ...Option) (*Store, error) {
	state, err := tree.NormalizeObject(initial)
	if err != nil {
		return nil, fmt.Errorf("store: load initial state: %w", err)
	}
	return newStore(state, opts), nil
}

func newStore(state map[string]any, opts []Option) *Store {
	cfg := applyOptions(opts)
	return &Store{
		state:     state,
		modifiers: make(map[string]*registration),
		live:      make(map[string]struct{}),
		cfg:       cfg,
		emitter:   activity.NewEmitter(cfg.activityHooks, cfg.activityConfig),
	}
}

// Register stores m under its name, replacing any previous registration.
// Instances of a replaced modifier that are still running keep applying
// their own reducers when they settle but no longer show in the loading
// overlay.
func (s *Store) Register(m Modifier) error {
	if m.Name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidModifier)
	}
	m.Reducers = append([]ReducerBinding(nil), m.Reducers...)

	s.mu.Lock()
	s.modifiers[m.Name] = &registration{
		modifier: m,
		live:     make(map[string]*ActionInstance),
	}
	s.mu.Unlock()

	s.cfg.logger.LogExecution(ExecutionLogEvent{Phase: PhaseRegistered, Modifier: m.Name})
	s.emitRegistered(m.Name, len(m.Reducers))
	return nil
}

// Modifiers returns the registered names sorted alphabetically.
func (s *Store) Modifiers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.modifiers))
	for name := range s.modifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named modifier and blocks until its reducers were applied
// or the call failed. An unknown name fails with a *LookupError before
// anything is recorded. A failing action yields an *ActionError and leaves
// the state untouched; a failing reducer yields a *ReducerError and leaves
// the reducers before it applied. Either way the call leaves the in-flight
// set.
//
// ctx is handed to the action. Cancelling it does not abandon the call.
func (s *Store) Execute(ctx context.Context, name string, args ...any) error {
	reg, inst, err := s.begin(ctx, name, args)
	if err != nil {
		return err
	}
	return s.run(ctx, reg, inst)
}

// Dispatch starts the named modifier in its own goroutine and returns a
// handle to await it. The call is in flight by the time Dispatch returns, so
// a snapshot taken right after already shows it loading.
func (s *Store) Dispatch(ctx context.Context, name string, args ...any) (*Call, error) {
	reg, inst, err := s.begin(ctx, name, args)
	if err != nil {
		return nil, err
	}
	call := newCall(inst)
	go func() {
		var runErr error
		defer func() {
			if r := recover(); r != nil {
				runErr = panicError(inst, r)
			}
			call.settle(runErr)
		}()
		runErr = s.run(ctx, reg, inst)
	}()
	return call, nil
}

// Instances returns the in-flight calls of every registered modifier in the
// order they started.
func (s *Store) Instances() []ActionInstance {
	s.mu.RLock()
	out := make([]ActionInstance, 0, len(s.live))
	for _, reg := range s.modifiers {
		for _, inst := range reg.live {
			out = append(out, inst.clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// State returns a private deep copy of the current state together with the
// loading overlay of every in-flight call. Selectors that fail while
// computing the overlay are logged and skipped.
func (s *Store) State() Snapshot {
	var failures []ExecutionLogEvent

	s.mu.RLock()
	root := tree.Clone(s.state).(map[string]any)
	marks := tree.NewMarks()
	for _, reg := range s.modifiers {
		for _, inst := range reg.live {
			for _, binding := range reg.modifier.Reducers {
				if binding.Selector == nil {
					continue
				}
				selected, err := safeSelect(binding.Selector, root, inst.Args)
				if err != nil {
					failures = append(failures, ExecutionLogEvent{
						Phase:      PhaseOverlay,
						Modifier:   inst.Modifier,
						InstanceID: inst.ID,
						Err:        err,
					})
					continue
				}
				marks.Mark(selected)
			}
		}
	}
	s.mu.RUnlock()

	for _, event := range failures {
		s.cfg.logger.LogExecution(event)
	}
	return Snapshot{root: root, marks: marks}
}

func (s *Store) begin(ctx context.Context, name string, args []any) (*registration, ActionInstance, error) {
	s.mu.Lock()
	reg, ok := s.modifiers[name]
	if !ok {
		s.mu.Unlock()
		return nil, ActionInstance{}, &LookupError{Name: name}
	}
	s.seq++
	id := s.cfg.newID()
	if _, taken := s.live[id]; taken || id == "" {
		id = fmt.Sprintf("%s-%d", id, s.seq)
	}
	inst := &ActionInstance{
		ID:        id,
		Modifier:  name,
		Args:      append([]any(nil), args...),
		StartedAt: s.cfg.now(),
		seq:       s.seq,
	}
	reg.live[id] = inst
	s.live[id] = struct{}{}
	started := inst.clone()
	s.mu.Unlock()

	s.cfg.logger.LogExecution(ExecutionLogEvent{
		Phase:      PhaseStarted,
		Modifier:   name,
		InstanceID: id,
		Args:       len(args),
	})
	s.emitStarted(ctx, started)
	return reg, started, nil
}

// run settles inst and reports the outcome. A panic is reported as a failed
// call before it continues to unwind.
func (s *Store) run(ctx context.Context, reg *registration, inst ActionInstance) error {
	start := time.Now()
	reported := false
	defer func() {
		if reported {
			return
		}
		if r := recover(); r != nil {
			s.reportSettled(ctx, inst, time.Since(start), panicError(inst, r))
			panic(r)
		}
	}()
	err := s.settle(ctx, reg, inst)
	reported = true
	s.reportSettled(ctx, inst, time.Since(start), err)
	return err
}

func (s *Store) reportSettled(ctx context.Context, inst ActionInstance, duration time.Duration, err error) {
	s.logSettled(inst, duration, err)
	s.emitSettled(ctx, inst, duration, err)
}

func panicError(inst ActionInstance, r any) error {
	return &ActionError{
		Modifier:   inst.Modifier,
		InstanceID: inst.ID,
		Err:        fmt.Errorf("%w: %v", ErrModifierPanic, r),
	}
}

func (s *Store) logSettled(inst ActionInstance, duration time.Duration, err error) {
	phase := PhaseCompleted
	if err != nil {
		phase = PhaseFailed
	}
	s.cfg.logger.LogExecution(ExecutionLogEvent{
		Phase:      phase,
		Modifier:   inst.Modifier,
		InstanceID: inst.ID,
		Args:       len(inst.Args),
		Duration:   duration,
		Err:        err,
	})
}

// settle awaits the action and applies the reducers. The instance leaves the
// in-flight set on every path, panics included.
func (s *Store) settle(ctx context.Context, reg *registration, inst ActionInstance) error {
	committing := false
	defer func() {
		if !committing {
			s.mu.Lock()
			s.release(reg, inst.ID)
			s.mu.Unlock()
		}
	}()

	mod := reg.modifier
	if mod.Action == nil {
		return &ActionError{
			Modifier:   mod.Name,
			InstanceID: inst.ID,
			Err:        fmt.Errorf("%w: modifier %q has no action", ErrInvalidModifier, mod.Name),
		}
	}
	result, err := mod.Action(ctx, inst.Args...)
	if err != nil {
		return &ActionError{Modifier: mod.Name, InstanceID: inst.ID, Err: err}
	}

	s.mu.Lock()
	committing = true
	defer s.mu.Unlock()
	defer s.release(reg, inst.ID)

	for i, binding := range mod.Reducers {
		if err := s.reduce(binding, inst.Args, result); err != nil {
			return &ReducerError{Modifier: mod.Name, InstanceID: inst.ID, Index: i, Err: err}
		}
	}
	return nil
}

// reduce runs one reducer binding against the canonical state. Callers hold
// the write lock.
func (s *Store) reduce(binding ReducerBinding, args []any, result any) error {
	if binding.Selector == nil || binding.Reduce == nil {
		return fmt.Errorf("%w: reducer binding needs a selector and a reducer", ErrInvalidModifier)
	}
	selected, err := binding.Selector.Select(s.state, args...)
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}
	if absent(selected) {
		return ErrSelectorResultAbsent
	}
	patch, err := binding.Reduce(selected, result)
	if err != nil {
		return fmt.Errorf("reduce: %w", err)
	}
	return patch.apply(s.state, selected)
}

// release drops id from the in-flight set. Callers hold the write lock.
func (s *Store) release(reg *registration, id string) {
	delete(reg.live, id)
	delete(s.live, id)
}

func absent(v any) bool {
	switch v.(type) {
	case nil:
		return true
	case map[string]any:
		return !tree.IsObject(v)
	case []any:
		return !tree.IsSequence(v)
	}
	return false
}

func safeSelect(selector Selector, root map[string]any, args []any) (selected any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("selector panicked: %v", r)
		}
	}()
	return selector.Select(root, args...)
}
