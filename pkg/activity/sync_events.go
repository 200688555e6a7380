package activity

import (
	"strings"
	"time"
)

const (
	VerbChangeSetApplied = "objsync.changeset.applied"
	VerbLayerUpdated     = "objsync.layer.updated"

	ObjectTypeChangeSet = "objsync.changeset"
	ObjectTypeLayer     = "objsync.layer"
)

// ScopeContext captures scope metadata associated with a resolver layer.
type ScopeContext struct {
	Name       string
	Label      string
	Priority   int
	Metadata   map[string]any
	SnapshotID string
}

// SyncEventInput describes the common fields for synchronization events.
type SyncEventInput struct {
	ActorID  string
	UserID   string
	TenantID string
	ObjectID string
	Channel  string
	Metadata map[string]any
	// Paths lists the changed property paths.
	Paths      []string
	LayerIndex int
	Scope      ScopeContext
	OccurredAt time.Time
}

// BuildChangeSetAppliedEvent describes a diff whose changes were merged into
// a target graph. ObjectID is normally the change set id.
func BuildChangeSetAppliedEvent(input SyncEventInput) Event {
	event := buildSyncEvent(VerbChangeSetApplied, ObjectTypeChangeSet, input)
	event.Metadata = ensureMetadata(event.Metadata)
	event.Metadata["change_count"] = len(input.Paths)
	return event
}

// BuildLayerUpdatedEvent describes a resolver layer whose data was replaced.
func BuildLayerUpdatedEvent(input SyncEventInput) Event {
	event := buildSyncEvent(VerbLayerUpdated, ObjectTypeLayer, input)
	event.Metadata = ensureMetadata(event.Metadata)
	event.Metadata["layer_index"] = input.LayerIndex
	return event
}

func buildSyncEvent(verb, objectType string, input SyncEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if scope := input.Scope; scope.Name != "" {
		metadata = ensureMetadata(metadata)
		metadata["scope_name"] = scope.Name
		metadata["scope_priority"] = scope.Priority
		if scope.Label != "" {
			metadata["scope_label"] = scope.Label
		}
		if len(scope.Metadata) > 0 {
			metadata["scope_metadata"] = cloneMap(scope.Metadata)
		}
	}
	if input.Scope.SnapshotID != "" {
		metadata = ensureMetadata(metadata)
		metadata["snapshot_id"] = input.Scope.SnapshotID
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   firstNonBlank(input.ObjectID, input.Scope.SnapshotID, input.Scope.Name, objectType),
		Channel:    strings.TrimSpace(input.Channel),
		Paths:      sortedPaths(input.Paths),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
