package objsync

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAccessorGet(t *testing.T) {
	root := map[string]any{
		"a":    map[string]any{"b": map[string]any{"c": 1}},
		"list": []any{map[string]any{"name": "x"}, nil},
		"leaf": "text",
		"null": nil,
	}
	acc := NewAccessor(root)

	cases := []struct {
		path  string
		want  any
		found bool
	}{
		{path: "a.b.c", want: 1, found: true},
		{path: "list.0.name", want: "x", found: true},
		{path: "list.1", want: nil, found: true},
		{path: "null", want: nil, found: true},
		{path: "a.missing.c", found: false},
		{path: "list.9", found: false},
		{path: "list.name", found: false},
		{path: "leaf.length", found: false},
		{path: "list.-1", found: false},
	}
	for _, tc := range cases {
		got, found := acc.Lookup(tc.path)
		if found != tc.found {
			t.Fatalf("%s: want found=%v, got %v (%v)", tc.path, tc.found, found, got)
		}
		if found && got != tc.want {
			t.Fatalf("%s: want %v, got %v", tc.path, tc.want, got)
		}
		if !found && !IsInvalid(acc.Get(tc.path)) {
			t.Fatalf("%s: expected InvalidAccess", tc.path)
		}
	}

	if acc.Get("") == nil {
		t.Fatalf("empty path returns the root")
	}
	if _, ok := root["a"].(map[string]any)["missing"]; ok {
		t.Fatalf("Get must never create parents")
	}
}

func TestAccessorSetCreatesParents(t *testing.T) {
	acc := NewAccessor(nil)

	if res := acc.Set("a.b.c", 1); !res.OK() {
		t.Fatalf("set: %s", res)
	}
	if res := acc.Set("a.b.d", 2); !res.OK() {
		t.Fatalf("set: %s", res)
	}
	want := map[string]any{"a": map[string]any{"b": map[string]any{"c": 1, "d": 2}}}
	if diff := cmp.Diff(want, acc.Root()); diff != "" {
		t.Fatalf("unexpected tree (-want +got):\n%s", diff)
	}

	if res := acc.Set("a.b.c.x", 3); res != SetSkippedTypeConflict {
		t.Fatalf("expected type conflict below a leaf, got %s", res)
	}
}

func TestAccessorArrays(t *testing.T) {
	root := map[string]any{"list": []any{"a"}}
	acc := NewAccessor(root)

	if res := acc.Set("list.2", "c"); !res.OK() {
		t.Fatalf("set: %s", res)
	}
	list := acc.Get("list").([]any)
	if diff := cmp.Diff([]any{"a", nil, "c"}, list); diff != "" {
		t.Fatalf("array did not grow (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"a", nil, "c"}, root["list"]); diff != "" {
		t.Fatalf("grown array not re-attached to parent:\n%s", diff)
	}

	if res := acc.Set("list.name", "x"); res != SetSkippedInvalidParent {
		t.Fatalf("expected invalid parent, got %s", res)
	}

	rootArr := NewAccessor([]any{})
	rootArr.Set("1.k", "v")
	if diff := cmp.Diff([]any{nil, map[string]any{"k": "v"}}, rootArr.Root()); diff != "" {
		t.Fatalf("root array not replaced (-want +got):\n%s", diff)
	}
}

func TestAccessorGetOrCreate(t *testing.T) {
	acc := NewAccessor(map[string]any{"a": map[string]any{"x": 1}})

	if got := acc.GetOrCreate("a.x", 5); got != 1 {
		t.Fatalf("existing value must win, got %v", got)
	}
	created := acc.GetOrCreate("b.c", []any{})
	if _, ok := created.([]any); !ok {
		t.Fatalf("expected default value, got %T", created)
	}
	if _, ok := acc.Lookup("b.c"); !ok {
		t.Fatalf("created value must be stored")
	}
	if got := acc.GetOrCreate("a.x.y", 1); !IsInvalid(got) {
		t.Fatalf("expected InvalidAccess below a leaf, got %v", got)
	}
}

func TestAccessorMemoConsistentAfterSet(t *testing.T) {
	acc := NewAccessor(map[string]any{"a": map[string]any{"b": 1}})
	_ = acc.Get("a")

	acc.Set("a", map[string]any{"b": 2})
	if got := acc.Get("a.b"); got != 2 {
		t.Fatalf("memo not invalidated, got %v", got)
	}
}

func TestAccessorUnionAndSub(t *testing.T) {
	acc := NewAccessor(map[string]any{"a": 1, "nested": map[string]any{"b": 2}})

	values := acc.Union("a", "missing", "nested.b")
	if values[0] != 1 || !IsInvalid(values[1]) || values[2] != 2 {
		t.Fatalf("unexpected union %v", values)
	}

	sub := acc.Sub("nested")
	if sub.Prefix() != "nested" || sub.Host() != acc {
		t.Fatalf("unexpected scoped accessor")
	}
	if got := sub.Get("b"); got != 2 {
		t.Fatalf("expected scoped read, got %v", got)
	}
	sub.Sub("deep").Set("c", 3)
	if got := acc.Get("nested.deep.c"); got != 3 {
		t.Fatalf("scoped write must reach the host, got %v", got)
	}
	if got := sub.Get(""); got == nil || IsInvalid(got) {
		t.Fatalf("empty path reads the view root")
	}
}
