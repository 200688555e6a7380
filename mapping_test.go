package objsync

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeDefaultsAndDrops(t *testing.T) {
	convert := func(value any, _, _ PathAccessor) any { return value }
	spec := MappingSpec{
		"b":       Rename(" title "),
		"a":       {},
		"ignored": Ignore(),
		"manual":  {Target: IgnoreTarget, Converter: convert},
		"nested":  {Sub: MergeAll(), SkipSetter: true},
	}

	entries := Normalize(spec)
	got := make([][2]string, len(entries))
	for i, entry := range entries {
		got[i] = [2]string{entry.SourcePath, entry.TargetPath}
	}
	want := [][2]string{
		{"a", "a"},
		{"b", "title"},
		{"manual", "manual"},
		{"nested", "nested"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected entries (-want +got):\n%s", diff)
	}
	if entries[2].Converter == nil {
		t.Fatalf("converter must survive normalisation")
	}
	if !entries[3].SkipSetter || entries[3].Sub == nil || !entries[3].Sub.Merge {
		t.Fatalf("nested flags lost: %+v", entries[3])
	}

	if Normalize(nil) != nil || Normalize(MappingSpec{}) != nil {
		t.Fatalf("empty specs normalise to nil")
	}
}

func TestShapeSpecFollowsObjects(t *testing.T) {
	spec := ShapeSpec(map[string]any{
		"a":    1,
		"list": []any{1, map[string]any{"x": 1}},
		"b":    map[string]any{"c": 2},
		"none": []any{},
	})
	if len(spec) != 4 {
		t.Fatalf("expected 4 rules, got %d", len(spec))
	}
	if _, ok := spec["list"]; ok {
		t.Fatalf("arrays are addressed by element, not as a whole")
	}
	if rule, ok := spec["list.0"]; !ok || rule.Sub != nil {
		t.Fatalf("expected leaf rule for list.0, got %+v", rule)
	}
	if rule := spec["list.1"]; rule.Sub == nil || len(rule.Sub.Spec) != 1 {
		t.Fatalf("expected nested shape for list.1, got %+v", rule)
	}
	sub := spec["b"].Sub
	if sub == nil || sub.Merge || len(sub.Spec) != 1 {
		t.Fatalf("expected nested shape for b, got %+v", sub)
	}
	if ShapeSpec([]any{}) != nil || ShapeSpec("x") != nil {
		t.Fatalf("non-object values have no shape spec")
	}
}

func TestMappingPaths(t *testing.T) {
	spec := MappingSpec{
		"a":      {},
		"b":      {Sub: Nest(MappingSpec{"c": {}, "d": Ignore()})},
		"list":   {Items: Nest(MappingSpec{"x": {}})},
		"merged": {Sub: MergeAll()},
	}
	want := []string{"a", "b.c", "list.*.x", "merged"}
	if diff := cmp.Diff(want, MappingPaths(spec)); diff != "" {
		t.Fatalf("unexpected paths (-want +got):\n%s", diff)
	}
}
