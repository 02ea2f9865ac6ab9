package activity

import (
	"strings"
	"time"
)

// Verbs emitted for modifier lifecycle events.
const (
	VerbModifierRegistered = "modifier.registered"
	VerbModifierStarted    = "modifier.started"
	VerbModifierCompleted  = "modifier.completed"
	VerbModifierFailed     = "modifier.failed"
)

// Object types used by modifier events.
const (
	ObjectTypeModifier = "modifier"
	ObjectTypeInstance = "modifier.instance"
)

// Metadata keys naming the modifier and the instance an event is about.
const (
	MetadataModifier   = "modifier"
	MetadataInstanceID = "instance_id"
)

// ModifierEventInput carries the fields needed to build a modifier event.
type ModifierEventInput struct {
	ActorID    string
	TenantID   string
	Channel    string
	Modifier   string
	InstanceID string
	Args       int
	Reducers   int
	Duration   time.Duration
	Err        error
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildModifierRegisteredEvent describes a modifier being (re)registered.
// The object is the modifier itself.
func BuildModifierRegisteredEvent(input ModifierEventInput) Event {
	meta := baseMetadata(input)
	meta["reducers"] = input.Reducers
	return Event{
		Verb:       VerbModifierRegistered,
		ActorID:    input.ActorID,
		TenantID:   input.TenantID,
		ObjectType: ObjectTypeModifier,
		ObjectID:   strings.TrimSpace(input.Modifier),
		Channel:    input.Channel,
		Metadata:   meta,
		OccurredAt: input.OccurredAt,
	}
}

// BuildModifierStartedEvent describes an action instance entering the
// in-flight set.
func BuildModifierStartedEvent(input ModifierEventInput) Event {
	meta := baseMetadata(input)
	meta["args"] = input.Args
	return instanceEvent(VerbModifierStarted, input, meta)
}

// BuildModifierCompletedEvent describes an action instance whose reducers
// were all applied.
func BuildModifierCompletedEvent(input ModifierEventInput) Event {
	meta := baseMetadata(input)
	meta["args"] = input.Args
	meta["duration"] = input.Duration
	return instanceEvent(VerbModifierCompleted, input, meta)
}

// BuildModifierFailedEvent describes an action instance that settled with an
// error, either from the action or from one of its reducers.
func BuildModifierFailedEvent(input ModifierEventInput) Event {
	meta := baseMetadata(input)
	meta["args"] = input.Args
	meta["duration"] = input.Duration
	if input.Err != nil {
		meta["error"] = input.Err.Error()
	}
	return instanceEvent(VerbModifierFailed, input, meta)
}

func instanceEvent(verb string, input ModifierEventInput, meta map[string]any) Event {
	objectID := strings.TrimSpace(input.InstanceID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Modifier)
	}
	if input.InstanceID != "" {
		meta[MetadataInstanceID] = input.InstanceID
	}
	return Event{
		Verb:       verb,
		ActorID:    input.ActorID,
		TenantID:   input.TenantID,
		ObjectType: ObjectTypeInstance,
		ObjectID:   objectID,
		Channel:    input.Channel,
		Metadata:   meta,
		OccurredAt: input.OccurredAt,
	}
}

func baseMetadata(input ModifierEventInput) map[string]any {
	meta := make(map[string]any, len(input.Metadata)+4)
	for key, value := range input.Metadata {
		meta[key] = value
	}
	if input.Modifier != "" {
		meta[MetadataModifier] = input.Modifier
	}
	return meta
}
