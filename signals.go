package objsync

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals emitted by the engine and resolver.
var (
	SignalCopyComplete    = capitan.NewSignal("objsync.copy.complete", "Mapped copy finished")
	SignalDiffComplete    = capitan.NewSignal("objsync.diff.complete", "Diff merge finished")
	SignalResolverUpdated = capitan.NewSignal("objsync.resolver.updated", "Resolver layer replaced")
)

// Signal field keys.
var (
	KeyEntryCount  = capitan.NewIntKey("entry_count")
	KeySkipped     = capitan.NewIntKey("skipped")
	KeyChangeCount = capitan.NewIntKey("change_count")
	KeyChangeSetID = capitan.NewStringKey("changeset_id")
	KeyLayerIndex  = capitan.NewIntKey("layer_index")
	KeyScope       = capitan.NewStringKey("scope")
	KeyDuration    = capitan.NewDurationKey("duration")
	KeyError       = capitan.NewErrorKey("error")
)

func emitCopyComplete(ctx context.Context, entries, skipped int, duration time.Duration) {
	capitan.Emit(ctx, SignalCopyComplete,
		KeyEntryCount.Field(entries),
		KeySkipped.Field(skipped),
		KeyDuration.Field(duration),
	)
}

func emitDiffComplete(ctx context.Context, changes *ChangeSet, duration time.Duration) {
	capitan.Emit(ctx, SignalDiffComplete,
		KeyChangeCount.Field(changes.Len()),
		KeyChangeSetID.Field(changes.ID()),
		KeyDuration.Field(duration),
	)
}

func emitResolverUpdated(ctx context.Context, index int, scope string, err error) {
	fields := []capitan.Field{
		KeyLayerIndex.Field(index),
		KeyScope.Field(scope),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalResolverUpdated, fields...)
		return
	}
	capitan.Emit(ctx, SignalResolverUpdated, fields...)
}
