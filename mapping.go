package objsync

import (
	"sort"
	"strconv"
	"strings"
)

// IgnoreTarget marks a rule whose property is handled by the caller.
const IgnoreTarget = "-"

// Converter transforms a source value before it is written to the target.
// For array and object values it returns the target container to populate.
type Converter func(value any, source, target PathAccessor) any

// MappingSpec describes, per source property, how values are copied into a
// target. Keys may be dotted paths relative to the current scope.
type MappingSpec map[string]Rule

// Rule is one sparse mapping declaration. The zero Rule copies the
// same-named property verbatim.
type Rule struct {
	// Target is the target property; empty means the source key.
	Target string
	// Converter is applied to the source value when set.
	Converter Converter
	// SkipSetter computes the value without assigning it to Target.
	SkipSetter bool
	// Sub controls nested copies when the source value is an object.
	Sub *Nested
	// Items controls element copies when the source value is an array.
	Items *Nested
}

// Nested is a recursive mapping for object or array values: either a full
// deep merge or a nested MappingSpec.
type Nested struct {
	Merge bool
	Spec  MappingSpec
}

// MergeAll deep-merges the whole subtree.
func MergeAll() *Nested {
	return &Nested{Merge: true}
}

// Nest recurses into the subtree with spec.
func Nest(spec MappingSpec) *Nested {
	return &Nested{Spec: spec}
}

// Rename copies the property into target.
func Rename(target string) Rule {
	return Rule{Target: target}
}

// Convert copies the property through fn.
func Convert(fn Converter) Rule {
	return Rule{Converter: fn}
}

// Ignore drops the property from normalisation.
func Ignore() Rule {
	return Rule{Target: IgnoreTarget}
}

// Entry is a normalised mapping rule with absolute paths for its scope.
type Entry struct {
	SourcePath string
	TargetPath string
	Converter  Converter
	SkipSetter bool
	Sub        *Nested
	Items      *Nested

	sourceValue any
}

// Normalize expands spec into entries with all fields defaulted, ordered by
// source path. Rules marked IgnoreTarget without a converter are dropped.
func Normalize(spec MappingSpec) []Entry {
	if len(spec) == 0 {
		return nil
	}
	keys := make([]string, 0, len(spec))
	for key := range spec {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		rule := spec[key]
		target := strings.TrimSpace(rule.Target)
		if target == IgnoreTarget {
			if rule.Converter == nil {
				continue
			}
			target = ""
		}
		if target == "" {
			target = key
		}
		entries = append(entries, Entry{
			SourcePath: key,
			TargetPath: target,
			Converter:  rule.Converter,
			SkipSetter: rule.SkipSetter,
			Sub:        rule.Sub,
			Items:      rule.Items,
		})
	}
	return entries
}

// ShapeSpec derives a mapping from value's current shape: every object key
// maps to itself, nested objects recurse and array elements are addressed by
// index, so only positions already present in value are written.
func ShapeSpec(value any) MappingSpec {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	spec := make(MappingSpec, len(obj))
	for key, child := range obj {
		addShape(spec, key, child)
	}
	return spec
}

func addShape(spec MappingSpec, path string, value any) {
	switch typed := value.(type) {
	case map[string]any:
		spec[path] = Rule{Sub: Nest(ShapeSpec(typed))}
	case []any:
		for i, elem := range typed {
			addShape(spec, joinPath(path, strconv.Itoa(i)), elem)
		}
	default:
		spec[path] = Rule{}
	}
}

// MappingPaths lists the source paths addressed by spec, nested rules
// included, using dotted absolute paths. Array item rules are reported
// under the array path with a "*" segment.
func MappingPaths(spec MappingSpec) []string {
	var out []string
	collectMappingPaths(spec, "", &out)
	sort.Strings(out)
	return out
}

func collectMappingPaths(spec MappingSpec, prefix string, out *[]string) {
	for _, entry := range Normalize(spec) {
		path := joinPath(prefix, entry.SourcePath)
		switch {
		case entry.Sub != nil && !entry.Sub.Merge && len(entry.Sub.Spec) > 0:
			collectMappingPaths(entry.Sub.Spec, path, out)
		case entry.Items != nil && !entry.Items.Merge && len(entry.Items.Spec) > 0:
			collectMappingPaths(entry.Items.Spec, joinPath(path, "*"), out)
		default:
			*out = append(*out, path)
		}
	}
}
