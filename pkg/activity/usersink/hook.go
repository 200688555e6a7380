// Package usersink forwards synchronization events to a go-users activity
// sink.
package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-objsync/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
}

var _ activity.ActivityHook = Hook{}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
// Changed paths travel in the record data under "paths".
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if !normalized.Complete() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, Record(normalized))
}

// Record converts a normalized event into the go-users record shape.
// Identifiers that are not UUIDs map to uuid.Nil.
func Record(event activity.Event) usertypes.ActivityRecord {
	var data map[string]any
	if len(event.Metadata) > 0 || len(event.Paths) > 0 {
		data = make(map[string]any, len(event.Metadata)+1)
		for key, value := range event.Metadata {
			data[key] = value
		}
	}
	if len(event.Paths) > 0 {
		data["paths"] = append([]string(nil), event.Paths...)
	}
	return usertypes.ActivityRecord{
		ActorID:    parseUUID(event.ActorID),
		UserID:     parseUUID(event.UserID),
		TenantID:   parseUUID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	}
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
