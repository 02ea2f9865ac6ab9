package store

import (
	"context"
	"time"

	"github.com/goliatone/go-store/pkg/activity"
)

// WithActivityHooks attaches activity hooks notified of the modifier
// lifecycle. Hooks are cloned and nil entries dropped. Emission is enabled
// whenever at least one hook remains, cfg.Enabled notwithstanding.
func WithActivityHooks(hooks activity.Hooks, cfg activity.Config) Option {
	normalized := activity.CloneHooks(hooks)
	return func(c *storeConfig) {
		c.activityHooks = normalized
		cfg.Enabled = len(normalized) > 0
		c.activityConfig = cfg
	}
}

// ActivityHooks returns a copy of the hooks configured on the store.
func (s *Store) ActivityHooks() activity.Hooks {
	if s == nil {
		return nil
	}
	return activity.CloneHooks(s.cfg.activityHooks)
}

func (s *Store) emitRegistered(name string, reducers int) {
	s.emit(context.Background(), name, "", activity.BuildModifierRegisteredEvent(activity.ModifierEventInput{
		Modifier:   name,
		Reducers:   reducers,
		OccurredAt: s.cfg.now(),
	}))
}

func (s *Store) emitStarted(ctx context.Context, inst ActionInstance) {
	s.emit(ctx, inst.Modifier, inst.ID, activity.BuildModifierStartedEvent(activity.ModifierEventInput{
		Modifier:   inst.Modifier,
		InstanceID: inst.ID,
		Args:       len(inst.Args),
		OccurredAt: inst.StartedAt,
	}))
}

func (s *Store) emitSettled(ctx context.Context, inst ActionInstance, duration time.Duration, err error) {
	input := activity.ModifierEventInput{
		Modifier:   inst.Modifier,
		InstanceID: inst.ID,
		Args:       len(inst.Args),
		Duration:   duration,
		Err:        err,
		OccurredAt: s.cfg.now(),
	}
	event := activity.BuildModifierCompletedEvent(input)
	if err != nil {
		event = activity.BuildModifierFailedEvent(input)
	}
	s.emit(ctx, inst.Modifier, inst.ID, event)
}

func (s *Store) emit(ctx context.Context, modifier, instanceID string, event activity.Event) {
	if !s.emitter.Enabled() {
		return
	}
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.cfg.logger.LogExecution(ExecutionLogEvent{
			Phase:      PhaseActivity,
			Modifier:   modifier,
			InstanceID: instanceID,
			Err:        err,
		})
	}
}
