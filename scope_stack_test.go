package objsync

import (
	"errors"
	"testing"
)

type sampleSnapshot struct {
	Name   string            `json:"name"`
	Count  *int              `json:"count,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

func intPtr(v int) *int {
	return &v
}

func TestNewScopeCopiesMetadata(t *testing.T) {
	meta := map[string]any{"owner": "system"}
	scope := NewScope("system", 50,
		WithScopeLabel("System Defaults"),
		WithScopeMetadata(meta),
	)

	meta["owner"] = "mutated"

	if got := scope.Metadata["owner"]; got != "system" {
		t.Fatalf("expected metadata copy to remain 'system', got %q", got)
	}
	if scope.Label != "System Defaults" {
		t.Fatalf("label not set, got %q", scope.Label)
	}
}

func TestNewLayerOptions(t *testing.T) {
	mapping := PropertyMapping{"title": Alias("name")}
	layer := NewLayer(NewScope("user", 100), map[string]any{"name": "ada"},
		WithSnapshotID("abc-123"),
		WithMapping(mapping),
		nil,
	)
	if layer.SnapshotID != "abc-123" {
		t.Fatalf("snapshot id not set, got %q", layer.SnapshotID)
	}
	if got, ok := layer.Lookup("title"); !ok || got != "ada" {
		t.Fatalf("expected aliased title, got %v (found=%v)", got, ok)
	}
	if _, ok := layer.Lookup("name"); ok {
		t.Fatalf("mapped layer should only expose mapped properties")
	}
}

func TestLayerLowersStructData(t *testing.T) {
	layer := NewLayer(NewScope("user", 1), sampleSnapshot{
		Name:   "default",
		Count:  intPtr(5),
		Labels: map[string]string{"env": "prod"},
	})
	tree, ok := layer.Tree().(map[string]any)
	if !ok {
		t.Fatalf("expected object tree, got %T", layer.Tree())
	}
	if tree["name"] != "default" || tree["count"] != float64(5) {
		t.Fatalf("unexpected lowered tree %#v", tree)
	}
	if got, _ := layer.Lookup("labels.env"); got != "prod" {
		t.Fatalf("expected nested lookup, got %v", got)
	}

	bad := NewLayer(NewScope("bad", 1), 42)
	if bad.Tree() != nil {
		t.Fatalf("scalar data should not lower to a tree")
	}
	if _, err := NewResolver([]Source{bad}); !errors.Is(err, ErrLayerNotData) {
		t.Fatalf("expected ErrLayerNotData, got %v", err)
	}
}

func TestNewStackOrdersAndValidates(t *testing.T) {
	user := NewLayer(NewScope("user", 300), sampleSnapshot{Name: "user"})
	group := NewLayer(NewScope("group", 200), sampleSnapshot{Name: "group"})
	defaults := NewLayer(NewScope("defaults", 100), sampleSnapshot{Name: "defaults"})

	stack, err := NewStack(defaults, user, nil, group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	layers := stack.Layers()
	wantOrder := []string{"user", "group", "defaults"}
	for i, want := range wantOrder {
		if layers[i].Scope.Name != want {
			t.Fatalf("expected layer %d to be %q, got %q", i, want, layers[i].Scope.Name)
		}
	}

	if _, err := NewStack(user, NewLayer(NewScope("user", 50), sampleSnapshot{})); !errors.Is(err, ErrDuplicateScopeName) {
		t.Fatalf("expected duplicate scope name error, got %v", err)
	}

	if _, err := NewStack(
		NewLayer(NewScope("alpha", 100), sampleSnapshot{}),
		NewLayer(NewScope("beta", 100), sampleSnapshot{}),
	); !errors.Is(err, ErrPriorityOrder) {
		t.Fatalf("expected priority order error, got %v", err)
	}

	if _, err := NewStack(NewLayer(Scope{}, nil)); !errors.Is(err, ErrScopeNameRequired) {
		t.Fatalf("expected scope name error, got %v", err)
	}
}

func TestStackResolverStructLayers(t *testing.T) {
	defaults := NewLayer(NewScope("defaults", 100), sampleSnapshot{
		Name:   "defaults",
		Count:  intPtr(3),
		Labels: map[string]string{"env": "prod"},
	})
	group := NewLayer(NewScope("group", 200), sampleSnapshot{
		Name:  "group",
		Count: intPtr(7),
	})
	user := NewLayer(NewScope("user", 300), sampleSnapshot{
		Name:   "user",
		Labels: map[string]string{"team": "core"},
	})

	stack, err := NewStack(defaults, user, group)
	if err != nil {
		t.Fatalf("stack validation failed: %v", err)
	}
	resolver, err := stack.Resolver()
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	if got := resolver.Get("name"); got != "user" {
		t.Fatalf("expected strongest name, got %v", got)
	}
	if got := resolver.Get("count"); got != float64(7) {
		t.Fatalf("expected count from group, got %v", got)
	}

	merged, err := Bind[sampleSnapshot](resolver)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if merged.Count == nil || *merged.Count != 7 {
		t.Fatalf("expected Count pointer set to 7, got %+v", merged.Count)
	}
	if merged.Labels["env"] != "prod" || merged.Labels["team"] != "core" {
		t.Fatalf("expected merged labels to combine maps, got %+v", merged.Labels)
	}
}

func TestStackLayersAreImmutable(t *testing.T) {
	stack, err := NewStack(
		NewLayer(NewScope("a", 100, WithScopeMetadata(map[string]any{"owner": "a"})),
			map[string]any{"key": "value"}),
		NewLayer(NewScope("b", 50), map[string]any{}),
	)
	if err != nil {
		t.Fatalf("stack validation failed: %v", err)
	}

	layers := stack.Layers()
	layers[0].Scope.Metadata["owner"] = "mutated"
	layers[0].SnapshotID = "mutated"

	next := stack.Layers()
	if next[0].Scope.Metadata["owner"] != "a" {
		t.Fatalf("expected metadata copy to remain 'a', got %q", next[0].Scope.Metadata["owner"])
	}
	if next[0].SnapshotID != "" {
		t.Fatalf("expected snapshot id untouched, got %q", next[0].SnapshotID)
	}
}

func TestStackLenAndEmpty(t *testing.T) {
	stack, err := NewStack()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stack.Len() != 0 {
		t.Fatalf("empty stack len expected 0, got %d", stack.Len())
	}
	if _, err := stack.Resolver(); err == nil {
		t.Fatalf("expected resolver to fail for empty stack")
	}
	if layers := stack.Layers(); layers != nil {
		t.Fatalf("expected nil layers for empty stack, got %+v", layers)
	}
}

func TestSystemTenantOrgTeamUser(t *testing.T) {
	resolver, err := SystemTenantOrgTeamUser(
		map[string]any{"theme": "light", "lang": "en"},
		nil,
		map[string]any{"theme": "brand"},
		nil,
		map[string]any{"lang": "fr"},
	)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	if got := resolver.Get("theme"); got != "brand" {
		t.Fatalf("expected org theme, got %v", got)
	}
	if got := resolver.Get("lang"); got != "fr" {
		t.Fatalf("expected user lang, got %v", got)
	}
	trace := resolver.Trace("theme")
	if len(trace.Layers) == 0 || trace.Layers[0].Scope.Name != "user" {
		t.Fatalf("expected trace to start at the user scope, got %+v", trace.Layers)
	}
}
