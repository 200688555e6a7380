package objsync

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/goliatone/go-objsync/pkg/activity"
)

// DiffMerge compares source against target and returns target with every
// differing leaf of source merged in, along with the recorded changes.
//
// target is never mutated. The returned root and every container on a
// changed path are shallow copies, so untouched subtrees keep their identity.
// When nothing differs the original root is returned. Arrays are compared
// index by index unless skipArray treats them as leaves.
func DiffMerge(target, source any, skipArray bool) (any, *ChangeSet) {
	return diffMerge(target, source, skipArray)
}

// DiffMerge diffs with the engine's skip-array setting.
func (e *Engine) DiffMerge(target, source any) (any, *ChangeSet) {
	return e.DiffMergeContext(context.Background(), target, source)
}

// DiffMergeContext is DiffMerge that also reports the change set to the
// configured activity hooks.
func (e *Engine) DiffMergeContext(ctx context.Context, target, source any) (any, *ChangeSet) {
	start := time.Now()
	merged, changes := diffMerge(target, source, e.cfg.skipArray)
	emitDiffComplete(ctx, changes, time.Since(start))
	e.cfg.log().Debug("diff merged",
		slog.String("changeset_id", changes.ID()),
		slog.Int("changes", changes.Len()),
	)
	if changes.Len() > 0 && e.cfg.activityHooks.Enabled() {
		event := activity.BuildChangeSetAppliedEvent(activity.SyncEventInput{
			ObjectID: changes.ID(),
			Paths:    changes.Paths(),
		})
		if err := e.cfg.activityHooks.Notify(ctx, event); err != nil {
			e.cfg.log().Warn("activity hook failed", slog.Any("error", err))
		}
	}
	return merged, changes
}

func diffMerge(target, source any, skipArray bool) (any, *ChangeSet) {
	changes := newChangeSet()
	changes.before = target
	changes.after = target

	sourceKind := KindOf(source)
	if sourceKind != KindObject && sourceKind != KindArray {
		return target, changes
	}
	base := target
	switch KindOf(target) {
	case KindObject, KindArray:
		if KindOf(target) != sourceKind {
			return target, changes
		}
	default:
		base = nil
	}
	changes.kinds[""] = sourceKind

	root := &diffMark{kind: sourceKind}
	WalkShape(source, skipArray, func(node ShapeNode) bool {
		current, found := lookupLive(base, node.Path)
		if node.Leaf {
			if !found || !leafEqual(current, node.Value) {
				value := Clone(node.Value)
				changes.record(node.Path, current, value)
				changes.markAt(root, node.Path).replaceWith(value)
			}
			return false
		}

		changes.kinds[node.Path] = node.Kind
		switch typed := current.(type) {
		case map[string]any:
			return node.Kind == KindObject
		case []any:
			if node.Kind != KindArray {
				return false
			}
			want := len(node.Value.([]any))
			if len(typed) != want {
				changes.record(joinPath(node.Path, lengthSegment), len(typed), want)
				mark := changes.markAt(root, node.Path)
				mark.resize = true
				mark.length = want
			}
			return true
		default:
			value := Clone(node.Value)
			changes.record(node.Path, current, value)
			changes.markAt(root, node.Path).replaceWith(value)
			return false
		}
	})

	if changes.Len() == 0 {
		return target, changes
	}
	changes.after = root.apply(base)
	return changes.after, changes
}

// lengthSegment addresses the synthetic array length entry of a change set.
const lengthSegment = "length"

// diffMark records which positions of the target must be rewritten.
type diffMark struct {
	kind     Kind
	children map[string]*diffMark
	replace  bool
	value    any
	resize   bool
	length   int
}

func (m *diffMark) replaceWith(value any) {
	m.replace = true
	m.value = value
}

func (m *diffMark) child(segment string, kind Kind) *diffMark {
	if m.children == nil {
		m.children = map[string]*diffMark{}
	}
	next, ok := m.children[segment]
	if !ok {
		next = &diffMark{kind: kind}
		m.children[segment] = next
	}
	return next
}

// apply returns a copy of current with the marked positions rewritten.
func (m *diffMark) apply(current any) any {
	if m.replace {
		return m.value
	}
	if m.kind == KindArray {
		arr, _ := current.([]any)
		n := len(arr)
		if m.resize {
			n = m.length
		}
		out := make([]any, n)
		copy(out, arr)
		for segment, child := range m.children {
			idx, ok := parseIndex(segment)
			if !ok || idx >= n {
				continue
			}
			out[idx] = child.apply(out[idx])
		}
		return out
	}
	obj, _ := current.(map[string]any)
	out := make(map[string]any, len(obj)+len(m.children))
	maps.Copy(out, obj)
	for segment, child := range m.children {
		out[segment] = child.apply(out[segment])
	}
	return out
}

// markAt returns the mark for path, creating intermediate marks with the
// container kinds observed in the source.
func (c *ChangeSet) markAt(root *diffMark, path string) *diffMark {
	mark := root
	prefix := ""
	for _, segment := range splitPath(path) {
		prefix = joinPath(prefix, segment)
		mark = mark.child(segment, c.kinds[prefix])
	}
	return mark
}
