package objsync

import (
	"encoding/json"
	"fmt"
	"sort"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
)

// ChangeSet is the record produced by one DiffMerge call: every changed path
// with its old and new value. Only leaf paths and synthetic "<array>.length"
// entries are recorded; containing branches are implied. A ChangeSet is
// read-only once returned.
type ChangeSet struct {
	id        string
	newValues map[string]any
	oldValues map[string]any
	kinds     map[string]Kind
	before    any
	after     any
}

func newChangeSet() *ChangeSet {
	return &ChangeSet{
		id:        uuid.NewString(),
		newValues: map[string]any{},
		oldValues: map[string]any{},
		kinds:     map[string]Kind{},
	}
}

func (c *ChangeSet) record(path string, oldValue, newValue any) {
	c.oldValues[path] = oldValue
	c.newValues[path] = newValue
}

// ID identifies the change set in logs and activity events.
func (c *ChangeSet) ID() string {
	return c.id
}

// Len returns the number of recorded paths.
func (c *ChangeSet) Len() int {
	return len(c.newValues)
}

// Paths returns the recorded paths in sorted order.
func (c *ChangeSet) Paths() []string {
	paths := make([]string, 0, len(c.newValues))
	for path := range c.newValues {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Has reports whether path was recorded or contains a recorded path.
func (c *ChangeSet) Has(path string) bool {
	if _, ok := c.newValues[path]; ok {
		return true
	}
	for recorded := range c.newValues {
		if hasPathPrefix(recorded, path) {
			return true
		}
	}
	return false
}

// AndHas reports whether every path is present.
func (c *ChangeSet) AndHas(paths ...string) bool {
	for _, path := range paths {
		if !c.Has(path) {
			return false
		}
	}
	return true
}

// OrHas reports whether any path is present.
func (c *ChangeSet) OrHas(paths ...string) bool {
	for _, path := range paths {
		if c.Has(path) {
			return true
		}
	}
	return false
}

// NewValue returns the value written at path.
func (c *ChangeSet) NewValue(path string) (any, bool) {
	value, ok := c.newValues[path]
	return value, ok
}

// OldValue returns the value path held before the merge; nil when the path
// did not exist.
func (c *ChangeSet) OldValue(path string) (any, bool) {
	value, ok := c.oldValues[path]
	return value, ok
}

// ForEach calls fn for each recorded path in sorted order.
func (c *ChangeSet) ForEach(fn func(path string, newValue, oldValue any)) {
	for _, path := range c.Paths() {
		fn(path, c.newValues[path], c.oldValues[path])
	}
}

// ForEachSub calls fn for the paths strictly below prefix, with paths made
// relative to prefix.
func (c *ChangeSet) ForEachSub(prefix string, fn func(path string, newValue, oldValue any)) {
	for _, path := range c.Paths() {
		if path == prefix || !hasPathPrefix(path, prefix) {
			continue
		}
		fn(trimPathPrefix(path, prefix), c.newValues[path], c.oldValues[path])
	}
}

// ToActual rebuilds the new values under prefix as a nested tree. Containers
// take the kind they had in the diffed source; length entries resize arrays.
// A prefix that is itself a recorded path returns its value.
func (c *ChangeSet) ToActual(prefix string) any {
	if value, ok := c.newValues[prefix]; ok && prefix != "" {
		return Clone(value)
	}
	var root any = map[string]any{}
	if c.kinds[prefix] == KindArray {
		root = []any{}
	}
	acc := NewAccessor(root)
	c.ForEachSub(prefix, func(path string, value, _ any) {
		segments := splitPath(path)
		partial := ""
		for _, segment := range segments[:len(segments)-1] {
			partial = joinPath(partial, segment)
			if c.kinds[joinPath(prefix, partial)] == KindArray {
				acc.GetOrCreate(partial, []any{})
			}
		}
		parent, last := splitLast(path)
		if last == lengthSegment && c.kinds[joinPath(prefix, parent)] == KindArray {
			n, _ := value.(int)
			arr, _ := acc.GetOrCreate(parent, []any{}).([]any)
			acc.Set(parent, growSlice(arr, n)[:n])
			return
		}
		acc.Set(path, Clone(value))
	})
	return acc.Root()
}

// Before returns the target root passed to DiffMerge.
func (c *ChangeSet) Before() any {
	return c.before
}

// After returns the merged root returned by DiffMerge.
func (c *ChangeSet) After() any {
	return c.after
}

// MergePatch returns the RFC 7386 merge patch turning the JSON form of
// Before into that of After.
func (c *ChangeSet) MergePatch() ([]byte, error) {
	before, err := json.Marshal(c.rootOrEmpty(c.before))
	if err != nil {
		return nil, fmt.Errorf("objsync: marshal change set origin: %w", err)
	}
	after, err := json.Marshal(c.rootOrEmpty(c.after))
	if err != nil {
		return nil, fmt.Errorf("objsync: marshal change set result: %w", err)
	}
	patch, err := jsonpatch.CreateMergePatch(before, after)
	if err != nil {
		return nil, fmt.Errorf("objsync: create merge patch: %w", err)
	}
	return patch, nil
}

// ApplyTo applies the change set's merge patch to a JSON document.
func (c *ChangeSet) ApplyTo(doc []byte) ([]byte, error) {
	patch, err := c.MergePatch()
	if err != nil {
		return nil, err
	}
	out, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return nil, fmt.Errorf("objsync: apply merge patch: %w", err)
	}
	return out, nil
}

func (c *ChangeSet) rootOrEmpty(root any) any {
	if root != nil {
		return root
	}
	if c.kinds[""] == KindArray {
		return []any{}
	}
	return map[string]any{}
}
