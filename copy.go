package objsync

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"
)

// Engine runs mapped copies and diffs with a shared configuration.
// The zero Engine is ready to use and logs nothing.
type Engine struct {
	cfg config
}

// NewEngine builds an Engine from opts.
func NewEngine(opts ...Option) *Engine {
	return &Engine{cfg: applyOptions(opts)}
}

var defaultEngine = &Engine{}

// CopyTo copies source into target with the default engine.
func CopyTo(target, source any, spec MappingSpec) any {
	return defaultEngine.CopyTo(target, source, spec)
}

// ExtendsTo fills target's existing positions from source with the default
// engine.
func ExtendsTo(target, source any) any {
	return defaultEngine.ExtendsTo(target, source)
}

// CopyTo copies source into target according to spec and returns the target
// root, which is replaced when target is nil or a grown root array. A nil
// spec deep-merges source into target.
func (e *Engine) CopyTo(target, source any, spec MappingSpec) any {
	return e.CopyToContext(context.Background(), target, source, spec)
}

// CopyToContext is CopyTo with a context for the completion signal.
func (e *Engine) CopyToContext(ctx context.Context, target, source any, spec MappingSpec) any {
	start := time.Now()
	if spec == nil {
		merged := Merge(target, source)
		emitCopyComplete(ctx, 0, 0, time.Since(start))
		return merged
	}
	dst := NewAccessor(target)
	run := copyRun{engine: e}
	run.copyEntries(NewAccessor(source), dst, spec)
	emitCopyComplete(ctx, run.entries, run.skipped, time.Since(start))
	return dst.Root()
}

// ExtendsTo copies from source only the positions target already defines.
// Nested objects and array elements of target are followed; arrays keep
// their length and elements gain no keys.
func (e *Engine) ExtendsTo(target, source any) any {
	spec := ShapeSpec(target)
	if spec == nil {
		spec = MappingSpec{}
	}
	return e.CopyTo(target, source, spec)
}

type copyRun struct {
	engine  *Engine
	entries int
	skipped int
}

func (r *copyRun) log() *slog.Logger {
	return r.engine.cfg.log()
}

// copyEntries runs the collect then apply phases for one mapping scope.
func (r *copyRun) copyEntries(source, target PathAccessor, spec MappingSpec) {
	entries := Normalize(spec)
	if len(entries) == 0 {
		return
	}
	r.entries += len(entries)

	sort.SliceStable(entries, func(i, j int) bool {
		return shallower(entries[i].SourcePath, entries[j].SourcePath)
	})
	for i := range entries {
		entries[i].sourceValue = source.Get(entries[i].SourcePath)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return shallower(entries[i].TargetPath, entries[j].TargetPath)
	})
	for i := range entries {
		entry := &entries[i]
		switch value := entry.sourceValue.(type) {
		case invalidAccess:
			r.skip("source path unresolved", entry.SourcePath, SetSkippedInvalidParent)
		case []any:
			r.applyArray(source, target, entry, value)
		case map[string]any:
			r.applyObject(source, target, entry, value)
		default:
			r.applyLeaf(source, target, entry, value)
		}
	}
}

func (r *copyRun) applyLeaf(source, target PathAccessor, entry *Entry, value any) {
	out := value
	if entry.Converter != nil {
		out = entry.Converter(value, source, target)
	}
	if IsInvalid(out) {
		r.skip("converter returned invalid access", entry.SourcePath, SetSkippedInvalidParent)
		return
	}
	if entry.SkipSetter {
		return
	}
	r.set(target, entry.TargetPath, out)
}

func (r *copyRun) applyObject(source, target PathAccessor, entry *Entry, value map[string]any) {
	var resolved any
	if entry.Converter != nil {
		resolved = entry.Converter(value, source, target)
		if IsInvalid(resolved) {
			r.skip("converter returned invalid access", entry.SourcePath, SetSkippedInvalidParent)
			return
		}
	} else {
		resolved = target.Get(entry.TargetPath)
	}
	obj, ok := resolved.(map[string]any)
	if !ok || obj == nil {
		obj = map[string]any{}
	}
	if !entry.SkipSetter && !r.set(target, entry.TargetPath, obj) {
		return
	}

	if entry.Sub == nil || entry.Sub.Merge {
		mergeObject(obj, value)
		return
	}
	var sub PathAccessor
	if entry.SkipSetter {
		sub = NewAccessor(obj)
	} else {
		sub = target.Sub(entry.TargetPath)
	}
	r.copyEntries(source.Sub(entry.SourcePath), sub, entry.Sub.Spec)
}

func (r *copyRun) applyArray(source, target PathAccessor, entry *Entry, value []any) {
	var resolved any
	if entry.Converter != nil {
		resolved = entry.Converter(value, source, target)
		if IsInvalid(resolved) {
			r.skip("converter returned invalid access", entry.SourcePath, SetSkippedInvalidParent)
			return
		}
	} else {
		resolved = target.Get(entry.TargetPath)
	}
	arr, _ := resolved.([]any)

	n := len(value)
	var items *Accessor
	if entry.SkipSetter {
		// not reattached, so only the existing length can be written
		n = min(n, len(arr))
		items = NewAccessor(arr)
	} else {
		arr = growSlice(arr, n)[:n]
		if arr == nil {
			arr = []any{}
		}
		if !r.set(target, entry.TargetPath, arr) {
			return
		}
	}

	for i := 0; i < n; i++ {
		obj, ok := value[i].(map[string]any)
		if !ok {
			arr[i] = Clone(value[i])
			continue
		}
		slot, ok := arr[i].(map[string]any)
		if !ok || slot == nil {
			slot = map[string]any{}
			arr[i] = slot
		}
		if entry.Items == nil || entry.Items.Merge {
			mergeObject(slot, obj)
			continue
		}
		idx := strconv.Itoa(i)
		var dst PathAccessor
		if items != nil {
			dst = items.Sub(idx)
		} else {
			dst = target.Sub(joinPath(entry.TargetPath, idx))
		}
		r.copyEntries(source.Sub(joinPath(entry.SourcePath, idx)), dst, entry.Items.Spec)
	}
}

func (r *copyRun) set(target PathAccessor, path string, value any) bool {
	res := target.Set(path, value)
	if res.OK() {
		return true
	}
	r.skip("target write skipped", path, res)
	return false
}

func (r *copyRun) skip(msg, path string, res SetResult) {
	r.skipped++
	r.log().Debug(msg, slog.String("path", path), slog.String("result", res.String()))
}

// shallower orders paths by depth, then length, then lexically.
func shallower(a, b string) bool {
	da, db := pathDepth(a), pathDepth(b)
	if da != db {
		return da < db
	}
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
