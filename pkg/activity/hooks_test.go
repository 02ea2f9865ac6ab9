package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	evt := Event{
		Verb:       " modifier.started ",
		ActorID:    " actor ",
		TenantID:   " tenant ",
		ObjectType: " modifier.instance ",
		ObjectID:   " 42 ",
		Channel:    " store ",
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "modifier.started" || got.ObjectType != "modifier.instance" || got.ObjectID != "42" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.TenantID != "tenant" || got.Channel != "store" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["k"] = "changed"
	if evt.Metadata["k"] != "v" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
}

func TestHooksNotifyShortCircuitsMissingRequired(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	if err := hooks.Notify(context.Background(), Event{Verb: "modifier.started"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Snapshot()) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Snapshot()))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(_ context.Context, _ Event) error { return boom1 }),
		nil,
		HookFunc(func(_ context.Context, _ Event) error { return boom2 }),
	}

	//nolint:staticcheck // nil context is part of the contract
	err := hooks.Notify(nil, Event{Verb: "modifier.completed", ObjectType: "modifier.instance", ObjectID: "1"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Snapshot()) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Snapshot()))
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}
	evt := Event{Verb: "modifier.started", ObjectType: "modifier.instance", ObjectID: "1"}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), evt); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Snapshot()) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true})
	if err := enabled.Emit(context.Background(), evt); err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Snapshot()
	if len(events) != 1 {
		t.Fatalf("expected one event captured, got %d", len(events))
	}
	if events[0].Channel != DefaultChannel {
		t.Fatalf("expected default channel applied, got %q", events[0].Channel)
	}
}

func TestEmitterPreservesExplicitChannelAndTimestamp(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default"})
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := emitter.Emit(context.Background(), Event{
		Verb:       "modifier.started",
		ObjectType: "modifier.instance",
		ObjectID:   "1",
		Channel:    "custom",
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Snapshot()
	if events[0].Channel != "custom" {
		t.Fatalf("expected explicit channel preserved, got %q", events[0].Channel)
	}
	if !events[0].OccurredAt.Equal(at) {
		t.Fatalf("expected occurred_at preserved, got %v", events[0].OccurredAt)
	}
}

func TestEmitterFillsActorAndTenantFromContext(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true})
	ctx := WithTenant(WithActor(context.Background(), " user-1 "), "acme")

	if err := emitter.Emit(ctx, Event{Verb: "modifier.started", ObjectType: "modifier.instance", ObjectID: "1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Snapshot()
	if events[0].ActorID != "user-1" || events[0].TenantID != "acme" {
		t.Fatalf("expected actor and tenant from context, got %+v", events[0])
	}

	if err := emitter.Emit(ctx, Event{Verb: "modifier.started", ObjectType: "modifier.instance", ObjectID: "2", ActorID: "explicit"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if got := capture.Snapshot()[1].ActorID; got != "explicit" {
		t.Fatalf("expected explicit actor preserved, got %q", got)
	}
}

func TestNormalizeEventDerivesObjectFromModifierMetadata(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		wantType string
		wantID   string
		wantMeta map[string]any
	}{
		{
			name: "instance wins",
			event: Event{Verb: VerbModifierStarted, Metadata: map[string]any{
				MetadataModifier: " load ", MetadataInstanceID: " abc ",
			}},
			wantType: ObjectTypeInstance,
			wantID:   "abc",
			wantMeta: map[string]any{MetadataModifier: "load", MetadataInstanceID: "abc"},
		},
		{
			name: "modifier only",
			event: Event{Verb: VerbModifierRegistered, Metadata: map[string]any{
				MetadataModifier: "load", MetadataInstanceID: "  ",
			}},
			wantType: ObjectTypeModifier,
			wantID:   "load",
			wantMeta: map[string]any{MetadataModifier: "load"},
		},
		{
			name: "explicit object kept",
			event: Event{Verb: VerbModifierStarted, ObjectType: "custom", ObjectID: "1", Metadata: map[string]any{
				MetadataInstanceID: "abc",
			}},
			wantType: "custom",
			wantID:   "1",
			wantMeta: map[string]any{MetadataInstanceID: "abc"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeEvent(tt.event)
			if got.ObjectType != tt.wantType || got.ObjectID != tt.wantID {
				t.Fatalf("expected %s/%s, got %s/%s", tt.wantType, tt.wantID, got.ObjectType, got.ObjectID)
			}
			if len(got.Metadata) != len(tt.wantMeta) {
				t.Fatalf("expected metadata %v, got %v", tt.wantMeta, got.Metadata)
			}
			for key, want := range tt.wantMeta {
				if got.Metadata[key] != want {
					t.Fatalf("expected %s=%v, got %v", key, want, got.Metadata[key])
				}
			}
		})
	}
}

func TestHooksNotifyAcceptsEventsNamedByMetadata(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	err := hooks.Notify(context.Background(), Event{
		Verb:     VerbModifierCompleted,
		Metadata: map[string]any{MetadataInstanceID: "abc"},
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	events := capture.Snapshot()
	if len(events) != 1 || events[0].ObjectID != "abc" {
		t.Fatalf("expected the event to be delivered for instance abc, got %+v", events)
	}
}
