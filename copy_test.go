package objsync

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCopyToCases(t *testing.T) {
	cases := []struct {
		name   string
		target any
		source map[string]any
		spec   MappingSpec
		want   any
	}{
		{
			name:   "nil spec deep merges",
			target: map[string]any{"a": 1, "n": map[string]any{"x": 1}},
			source: map[string]any{"b": 2, "n": map[string]any{"y": 2}},
			spec:   nil,
			want:   map[string]any{"a": 1, "b": 2, "n": map[string]any{"x": 1, "y": 2}},
		},
		{
			name:   "verbatim rename and ignore",
			target: nil,
			source: map[string]any{"id": 7, "name": "lamp", "secret": "s", "extra": true},
			spec:   MappingSpec{"id": {}, "name": Rename("title"), "secret": Ignore()},
			want:   map[string]any{"id": 7, "title": "lamp"},
		},
		{
			name:   "dotted paths create parents",
			target: map[string]any{},
			source: map[string]any{"a": map[string]any{"b": "v"}},
			spec:   MappingSpec{"a.b": Rename("x.y")},
			want:   map[string]any{"x": map[string]any{"y": "v"}},
		},
		{
			name:   "unresolved source is skipped",
			target: map[string]any{"keep": 1},
			source: map[string]any{},
			spec:   MappingSpec{"missing.deep": {}},
			want:   map[string]any{"keep": 1},
		},
		{
			name:   "blocked target is left untouched",
			target: map[string]any{"x": "leaf"},
			source: map[string]any{"v": 1},
			spec:   MappingSpec{"v": Rename("x.y")},
			want:   map[string]any{"x": "leaf"},
		},
		{
			name:   "item mappings rename array fields",
			target: map[string]any{},
			source: map[string]any{"list": []any{map[string]any{"a": 1}, map[string]any{"a": 2}}},
			spec:   MappingSpec{"list": {Items: Nest(MappingSpec{"a": Rename("b")})}},
			want:   map[string]any{"list": []any{map[string]any{"b": 1}, map[string]any{"b": 2}}},
		},
		{
			name: "target array length follows source",
			target: map[string]any{"list": []any{
				map[string]any{"a": 0}, map[string]any{"a": 0}, map[string]any{"a": 0},
			}},
			source: map[string]any{"list": []any{map[string]any{"a": 1}, "raw"}},
			spec:   MappingSpec{"list": {Items: MergeAll()}},
			want:   map[string]any{"list": []any{map[string]any{"a": 1}, "raw"}},
		},
		{
			name:   "sub mapping recurses into objects",
			target: map[string]any{"profile": map[string]any{"keep": true}},
			source: map[string]any{"user": map[string]any{"first": "Ada", "last": "L"}},
			spec: MappingSpec{"user": {
				Target: "profile",
				Sub:    Nest(MappingSpec{"first": Rename("given")}),
			}},
			want: map[string]any{"profile": map[string]any{"keep": true, "given": "Ada"}},
		},
		{
			name:   "sub merge copies the whole object",
			target: map[string]any{},
			source: map[string]any{"meta": map[string]any{"a": 1, "b": []any{1, 2}}},
			spec:   MappingSpec{"meta": {Sub: MergeAll()}},
			want:   map[string]any{"meta": map[string]any{"a": 1, "b": []any{1, 2}}},
		},
		{
			name:   "skip setter arrays update in place within their length",
			target: map[string]any{"list": []any{map[string]any{}}},
			source: map[string]any{"list": []any{map[string]any{"a": 1}, map[string]any{"a": 2}}},
			spec: MappingSpec{"list": {
				SkipSetter: true,
				Items:      Nest(MappingSpec{"a": {}}),
			}},
			want: map[string]any{"list": []any{map[string]any{"a": 1}}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CopyTo(tc.target, tc.source, tc.spec)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("unexpected copy result (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCopyToConverters(t *testing.T) {
	source := map[string]any{"first": "Ada", "last": "Lovelace", "price": 2.5, "tags": []any{"a"}}
	spec := MappingSpec{
		"last": {
			Target: "full",
			Converter: func(value any, src, _ PathAccessor) any {
				return src.Get("first").(string) + " " + value.(string)
			},
		},
		"price": {
			Target: "cents",
			Converter: func(value any, _, _ PathAccessor) any {
				return int(value.(float64) * 100)
			},
		},
		"first": {
			SkipSetter: true,
			Converter: func(value any, _, dst PathAccessor) any {
				dst.Set("audit.seen", value)
				return value
			},
		},
		"tags": {
			Converter: func(_ any, _, _ PathAccessor) any {
				return InvalidAccess
			},
		},
	}

	got := CopyTo(map[string]any{}, source, spec)
	want := map[string]any{
		"full":  "Ada Lovelace",
		"cents": 250,
		"audit": map[string]any{"seen": "Ada"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected converter result (-want +got):\n%s", diff)
	}
}

func TestCopyToObjectConverterProvidesContainer(t *testing.T) {
	source := map[string]any{"profile": map[string]any{"name": "ada", "age": 36}}
	spec := MappingSpec{"profile": {
		Converter: func(_ any, _, _ PathAccessor) any {
			return map[string]any{"kind": "profile"}
		},
		Sub: Nest(MappingSpec{"name": {}}),
	}}

	got := CopyTo(nil, source, spec)
	want := map[string]any{"profile": map[string]any{"kind": "profile", "name": "ada"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestCopyToIsIdempotent(t *testing.T) {
	source := map[string]any{
		"name":   "lamp",
		"nested": map[string]any{"a": 1, "b": []any{1, 2}},
		"list":   []any{map[string]any{"a": 1}, map[string]any{"a": 2}},
	}
	spec := MappingSpec{
		"name":   Rename("title"),
		"nested": {Sub: MergeAll()},
		"list":   {Items: Nest(MappingSpec{"a": Rename("b")})},
	}

	first := CopyTo(map[string]any{}, source, spec)
	snapshot := Clone(first)
	second := CopyTo(first, source, spec)

	if diff := cmp.Diff(snapshot, second); diff != "" {
		t.Fatalf("second copy changed the result (-first +second):\n%s", diff)
	}
	if _, changes := DiffMerge(snapshot, second, false); changes.Len() != 0 {
		t.Fatalf("expected no differences, got %v", changes.Paths())
	}
}

func TestExtendsToOnlyFillsExistingPositions(t *testing.T) {
	target := map[string]any{"a": 1, "b": map[string]any{"c": 2}}
	source := map[string]any{"a": 9, "b": map[string]any{"c": 8, "d": 7}}

	got := ExtendsTo(target, source)
	want := map[string]any{"a": 9, "b": map[string]any{"c": 8}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected extend result (-want +got):\n%s", diff)
	}

	if got := ExtendsTo([]any{1}, source); cmp.Diff([]any{1}, got) != "" {
		t.Fatalf("non-object targets are left as is, got %v", got)
	}
}

func TestExtendsToKeepsArrayShape(t *testing.T) {
	target := map[string]any{
		"lines": []any{map[string]any{"sku": "a"}, 5},
		"empty": []any{},
	}
	source := map[string]any{
		"lines": []any{
			map[string]any{"sku": "b", "qty": 2},
			6,
			map[string]any{"sku": "c"},
		},
		"empty": []any{1},
	}

	got := ExtendsTo(target, source)
	want := map[string]any{
		"lines": []any{map[string]any{"sku": "b"}, 6},
		"empty": []any{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected extend result (-want +got):\n%s", diff)
	}
}

func TestCopyToOwnsNestedArrays(t *testing.T) {
	inner := []any{"a", "b"}
	source := map[string]any{"rows": []any{inner}}

	got := CopyTo(nil, source, MappingSpec{"rows": {}}).(map[string]any)
	got["rows"].([]any)[0].([]any)[0] = "z"
	if inner[0] != "a" {
		t.Fatalf("copied target shares nested arrays with source, got %v", inner)
	}
}

func TestEngineLogsSkippedWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	engine := NewEngine(WithLogger(logger))

	engine.CopyTo(map[string]any{"x": "leaf"}, map[string]any{"v": 1}, MappingSpec{
		"v":       Rename("x.y"),
		"missing": {},
	})

	out := buf.String()
	if !strings.Contains(out, "target write skipped") || !strings.Contains(out, "path=x.y") {
		t.Fatalf("expected skipped write record, got %q", out)
	}
	if !strings.Contains(out, "source path unresolved") {
		t.Fatalf("expected unresolved source record, got %q", out)
	}
}

func TestShallowerOrdersByDepthThenLength(t *testing.T) {
	paths := []string{"a.b.c", "bb", "a", "a.b", "b"}
	want := []string{"a", "b", "bb", "a.b", "a.b.c"}
	sorted := append([]string(nil), paths...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && shallower(sorted[j], sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if diff := cmp.Diff(want, sorted); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}
