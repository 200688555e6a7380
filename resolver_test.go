package objsync

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type countingSource struct {
	calls int
	value any
}

func (s *countingSource) Lookup(string) (any, bool) {
	s.calls++
	return s.value, s.value != nil
}

func plainLayer(name string, data any) *Layer {
	return NewLayer(NewScope(name, 0), data)
}

func TestResolverPrecedenceAndUpdate(t *testing.T) {
	resolver, err := NewResolver([]Source{
		plainLayer("strong", map[string]any{"x": 1}),
		plainLayer("weak", map[string]any{"x": 2}),
	})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	if got := resolver.Get("x"); got != 1 {
		t.Fatalf("expected strongest layer to win, got %v", got)
	}

	if err := resolver.Update(0, map[string]any{}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := resolver.Get("x"); got != 2 {
		t.Fatalf("expected weaker layer after update, got %v", got)
	}
	if resolver.Generation() != 1 {
		t.Fatalf("expected generation 1, got %d", resolver.Generation())
	}
}

func TestResolverSkipsUndefinedValues(t *testing.T) {
	resolver, err := NewResolver([]Source{
		plainLayer("a", map[string]any{"x": nil, "nested": map[string]any{}}),
		plainLayer("b", map[string]any{"x": "b", "nested": map[string]any{"k": 1}}),
	})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	if got := resolver.Get("x"); got != "b" {
		t.Fatalf("nil values fall through to weaker layers, got %v", got)
	}
	if got := resolver.Get("nested.k"); got != 1 {
		t.Fatalf("dotted properties resolve per layer, got %v", got)
	}
	if value, found := resolver.Lookup("missing"); found || value != nil {
		t.Fatalf("expected miss, got %v (found=%v)", value, found)
	}
}

func TestResolverCachesIncludingMisses(t *testing.T) {
	custom := &countingSource{}
	resolver, err := NewResolver([]Source{plainLayer("a", map[string]any{}), custom})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	resolver.Get("p")
	resolver.Get("p")
	if custom.calls != 1 {
		t.Fatalf("expected cached miss, got %d lookups", custom.calls)
	}

	custom.value = "late"
	if got := resolver.Get("p"); got != nil {
		t.Fatalf("cached miss must hold until an update, got %v", got)
	}
	if err := resolver.Update(0, map[string]any{}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := resolver.Get("p"); got != "late" {
		t.Fatalf("update must clear the cache, got %v", got)
	}
}

func TestResolverUpdateErrors(t *testing.T) {
	inner, err := NewResolver([]Source{plainLayer("inner", map[string]any{})})
	if err != nil {
		t.Fatalf("inner: %v", err)
	}
	resolver, err := NewResolver([]Source{plainLayer("a", map[string]any{"x": 1}), inner})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	if err := resolver.Update(5, nil); !errors.Is(err, ErrLayerIndex) {
		t.Fatalf("expected ErrLayerIndex, got %v", err)
	}
	if err := resolver.Update(-1, nil); !errors.Is(err, ErrLayerIndex) {
		t.Fatalf("expected ErrLayerIndex, got %v", err)
	}
	if err := resolver.Update(1, nil); !errors.Is(err, ErrLayerNotPlain) {
		t.Fatalf("expected ErrLayerNotPlain, got %v", err)
	}
	if err := resolver.Update(0, 42); !errors.Is(err, ErrLayerNotData) {
		t.Fatalf("expected ErrLayerNotData, got %v", err)
	}
	if got := resolver.Get("x"); got != 1 {
		t.Fatalf("failed updates must keep the layer, got %v", got)
	}
}

func TestNestedResolverInvalidation(t *testing.T) {
	inner, err := NewResolver([]Source{plainLayer("inner", map[string]any{"x": 1})})
	if err != nil {
		t.Fatalf("inner: %v", err)
	}
	outer, err := NewResolver([]Source{plainLayer("outer", map[string]any{"y": 2}), inner})
	if err != nil {
		t.Fatalf("outer: %v", err)
	}
	if got := outer.Get("x"); got != 1 {
		t.Fatalf("expected nested value, got %v", got)
	}

	if err := inner.Update(0, map[string]any{"x": 5}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := outer.Get("x"); got != 5 {
		t.Fatalf("outer cache must follow nested updates, got %v", got)
	}
	if outer.Generation() != 1 {
		t.Fatalf("expected outer generation to include nested updates, got %d", outer.Generation())
	}
}

func TestResolverPropertyMappings(t *testing.T) {
	layer := NewLayer(NewScope("profile", 10), map[string]any{
		"first": "Ada",
		"last":  "Lovelace",
		"deep":  map[string]any{"born": 1815},
	}, WithMapping(PropertyMapping{
		"name":  Expression("first + ' ' + last"),
		"born":  Alias("deep.born"),
		"first": Alias(""),
		"upper": Computed(func(acc PathAccessor) any {
			return len(acc.Get("last").(string))
		}),
		"broken": Expression("first +"),
	}))

	var failures []EvaluatorLogEvent
	resolver, err := NewResolver([]Source{layer}, WithEvaluatorLogger(EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		if event.Err != nil {
			failures = append(failures, event)
		}
	})))
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	cases := map[string]any{
		"name":  "Ada Lovelace",
		"born":  1815,
		"first": "Ada",
		"upper": 8,
	}
	for property, want := range cases {
		if got := resolver.Get(property); got != want {
			t.Fatalf("%s: want %v, got %v", property, want, got)
		}
	}
	if _, found := resolver.Lookup("last"); found {
		t.Fatalf("unmapped properties are hidden by a mapping")
	}
	if _, found := resolver.Lookup("broken"); found {
		t.Fatalf("failed expressions are undefined")
	}
	if len(failures) != 1 || failures[0].Engine != "expr" || failures[0].Scope != "profile" {
		t.Fatalf("expected one logged expr failure, got %+v", failures)
	}
}

func TestResolverNextLevel(t *testing.T) {
	base, err := NewResolver([]Source{
		NewLayer(NewScope("base", 1), map[string]any{"name": "ada"},
			WithMapping(PropertyMapping{"title": Alias("name")})),
	})
	if err != nil {
		t.Fatalf("base: %v", err)
	}

	iso, err := base.NextLevel(map[string]any{"name": "bob"}, true)
	if err != nil {
		t.Fatalf("next level: %v", err)
	}
	if iso.Len() != 2 {
		t.Fatalf("expected two layers, got %d", iso.Len())
	}
	if got := iso.Get("title"); got != "bob" {
		t.Fatalf("isomorphic layer must reuse the mapping, got %v", got)
	}

	plain, err := base.NextLevel(map[string]any{"name": "bob"}, false)
	if err != nil {
		t.Fatalf("next level: %v", err)
	}
	if got := plain.Get("title"); got != "ada" {
		t.Fatalf("plain layer lacks title so base wins, got %v", got)
	}
	if got := plain.Get("name"); got != "bob" {
		t.Fatalf("plain layer reads raw properties, got %v", got)
	}

	layered, err := base.NextLevel(NewLayer(NewScope("top", 2), map[string]any{"title": "dr"}), true)
	if err != nil {
		t.Fatalf("next level: %v", err)
	}
	if got := layered.Get("title"); got != "ada" {
		t.Fatalf("mapped title reads name, which the top layer lacks; got %v", got)
	}

	if _, err := base.NextLevel(7, false); !errors.Is(err, ErrLayerNotData) {
		t.Fatalf("expected ErrLayerNotData, got %v", err)
	}
}

func TestResolverTraceAndSnapshot(t *testing.T) {
	inner, err := NewResolver([]Source{
		NewLayer(NewScope("system", 1), map[string]any{"theme": "light", "lang": "en"}, WithSnapshotID("sys-1")),
	})
	if err != nil {
		t.Fatalf("inner: %v", err)
	}
	resolver, err := NewResolver([]Source{
		NewLayer(NewScope("user", 2), map[string]any{"theme": "dark", "prefs": map[string]any{"a": 1}}),
		inner,
	})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	trace := resolver.Trace("theme")
	if len(trace.Layers) != 2 {
		t.Fatalf("expected nested layers to be flattened, got %d", len(trace.Layers))
	}
	if trace.Layers[0].Scope.Name != "user" || trace.Layers[0].Value != "dark" || !trace.Layers[0].Found {
		t.Fatalf("unexpected user provenance %+v", trace.Layers[0])
	}
	if trace.Layers[1].SnapshotID != "sys-1" || trace.Layers[1].Value != "light" {
		t.Fatalf("unexpected system provenance %+v", trace.Layers[1])
	}
	lang := resolver.Trace("lang")
	if lang.Layers[0].Found || lang.Layers[0].Value != nil || !lang.Layers[1].Found {
		t.Fatalf("unexpected lang trace %+v", lang.Layers)
	}

	want := map[string]any{"theme": "dark", "lang": "en", "prefs": map[string]any{"a": 1}}
	if diff := cmp.Diff(want, resolver.Snapshot()); diff != "" {
		t.Fatalf("unexpected snapshot (-want +got):\n%s", diff)
	}

	origins := map[string]string{"theme": "user", "lang": "system", "prefs.a": "user"}
	if diff := cmp.Diff(origins, resolver.Origins()); diff != "" {
		t.Fatalf("unexpected origins (-want +got):\n%s", diff)
	}
}

func TestBindDecodesSnapshot(t *testing.T) {
	type settings struct {
		Theme string `json:"theme"`
		Lang  string `json:"lang"`
		Size  int    `json:"size"`
	}
	resolver, err := SystemTenantOrgTeamUser(
		map[string]any{"theme": "light", "lang": "en", "size": 10},
		nil, nil, nil,
		settings{Theme: "dark"},
	)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	got, err := Bind[settings](resolver)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	// zero values of a struct layer are explicit settings
	want := settings{Theme: "dark", Lang: "", Size: 0}
	if got != want {
		t.Fatalf("want %+v, got %+v", want, got)
	}

	type narrow struct {
		Theme string `json:"theme"`
	}
	if _, err := Bind[narrow](resolver, BindStrict()); err == nil {
		t.Fatalf("expected strict bind to reject unknown keys")
	}
	if got, err := Bind[narrow](resolver); err != nil || got.Theme != "dark" {
		t.Fatalf("expected lenient bind, got %+v (%v)", got, err)
	}
}
