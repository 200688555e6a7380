package objsync

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goliatone/go-objsync/internal/hydrate"
)

// Scope models a named precedence bucket (system, tenant, user, etc.). Higher
// priority values represent stronger layers.
type Scope struct {
	Name     string
	Label    string
	Priority int
	Metadata map[string]any
}

// ScopeOption configures metadata on Scope creation.
type ScopeOption func(*scopeConfig)

type scopeConfig struct {
	label    string
	metadata map[string]any
}

// WithScopeLabel sets a human-friendly label on the scope.
func WithScopeLabel(label string) ScopeOption {
	return func(cfg *scopeConfig) {
		cfg.label = label
	}
}

// WithScopeMetadata attaches arbitrary metadata to the scope. The map is copied
// so the resulting Scope remains immutable even if the caller mutates their
// reference.
func WithScopeMetadata(metadata map[string]any) ScopeOption {
	return func(cfg *scopeConfig) {
		if len(metadata) == 0 {
			return
		}
		cfg.metadata = copyMetadata(metadata)
	}
}

// NewScope builds a Scope with the supplied configuration. Validation is
// deferred to Stack construction so callers can assemble scopes before deciding
// precedence.
func NewScope(name string, priority int, opts ...ScopeOption) Scope {
	cfg := scopeConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return Scope{
		Name:     name,
		Label:    cfg.label,
		Priority: priority,
		Metadata: copyMetadata(cfg.metadata),
	}
}

// clone returns a copy of s, ensuring Metadata is detached from the original.
func (s Scope) clone() Scope {
	return Scope{
		Name:     s.Name,
		Label:    s.Label,
		Priority: s.Priority,
		Metadata: copyMetadata(s.Metadata),
	}
}

func (s Scope) isZero() bool {
	return s.Name == "" && s.Label == "" && s.Priority == 0 && len(s.Metadata) == 0
}

// Layer is one prioritized data source of a Resolver: a raw object tree and
// an optional table describing how logical properties are read from it.
//
// Data may be a map[string]any or []any tree, or a struct that is lowered to
// a tree when the layer is added to a resolver. Trees are used in place; the
// layer memoises containers it resolved, so edit them through Resolver.Update.
type Layer struct {
	Scope      Scope
	Data       any
	Mapping    PropertyMapping
	SnapshotID string

	accessor *Accessor
}

var _ Source = (*Layer)(nil)

// LayerOption configures optional metadata for a layer.
type LayerOption func(*Layer)

// WithSnapshotID sets the snapshot identifier used for auditing.
func WithSnapshotID(id string) LayerOption {
	return func(layer *Layer) {
		layer.SnapshotID = id
	}
}

// WithMapping sets the property mapping of the layer.
func WithMapping(mapping PropertyMapping) LayerOption {
	return func(layer *Layer) {
		layer.Mapping = mapping
	}
}

// NewLayer builds a layer for scope over data.
func NewLayer(scope Scope, data any, opts ...LayerOption) *Layer {
	layer := &Layer{
		Scope: scope.clone(),
		Data:  data,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(layer)
	}
	return layer
}

// Lookup resolves property against the layer with the default evaluator.
func (l *Layer) Lookup(property string) (any, bool) {
	return l.lookup(property, layerEval{})
}

// Tree returns the layer data as a tree, or nil when it cannot be lowered.
func (l *Layer) Tree() any {
	acc, err := l.access()
	if err != nil {
		return nil
	}
	return acc.Root()
}

// access returns the layer accessor, lowering Data on first use.
func (l *Layer) access() (*Accessor, error) {
	if l.accessor != nil {
		return l.accessor, nil
	}
	tree, err := layerTree(l.Data)
	if err != nil {
		return nil, err
	}
	l.accessor = NewAccessor(tree)
	return l.accessor, nil
}

// clone copies the layer definition without its memo.
func (l *Layer) clone() *Layer {
	return &Layer{
		Scope:      l.Scope.clone(),
		Data:       l.Data,
		Mapping:    l.Mapping,
		SnapshotID: l.SnapshotID,
	}
}

func layerTree(data any) (any, error) {
	switch typed := data.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any, []any:
		return typed, nil
	}
	tree, err := hydrate.ToTree(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLayerNotData, err)
	}
	if !isContainer(tree) {
		return nil, fmt.Errorf("%w: got %T", ErrLayerNotData, data)
	}
	return tree, nil
}

var (
	// ErrScopeNameRequired indicates a missing scope name.
	ErrScopeNameRequired = errors.New("scope: name must be provided")
	// ErrDuplicateScopeName indicates Stack construction received multiple
	// layers with the same scope name.
	ErrDuplicateScopeName = errors.New("scope: names must be unique")
	// ErrPriorityOrder indicates Stack construction detected duplicate or
	// unsorted priorities.
	ErrPriorityOrder = errors.New("scope: priorities must be strictly ordered")
)

// Stack is a validated, scope-aware list of layers ordered from strongest to
// weakest precedence.
type Stack struct {
	layers []*Layer
}

// NewStack validates and sorts the supplied layers so that the strongest scope
// (highest priority) is first.
func NewStack(layers ...*Layer) (*Stack, error) {
	if len(layers) == 0 {
		return &Stack{}, nil
	}

	seenNames := make(map[string]struct{}, len(layers))
	copied := make([]*Layer, 0, len(layers))
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		layer := layer.clone()
		if layer.Scope.Name == "" {
			return nil, ErrScopeNameRequired
		}
		if _, ok := seenNames[layer.Scope.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScopeName, layer.Scope.Name)
		}
		seenNames[layer.Scope.Name] = struct{}{}
		copied = append(copied, layer)
	}

	sort.Slice(copied, func(i, j int) bool {
		if copied[i].Scope.Priority == copied[j].Scope.Priority {
			return copied[i].Scope.Name < copied[j].Scope.Name
		}
		return copied[i].Scope.Priority > copied[j].Scope.Priority
	})

	for i := 1; i < len(copied); i++ {
		if copied[i-1].Scope.Priority <= copied[i].Scope.Priority {
			return nil, fmt.Errorf("%w: %d", ErrPriorityOrder, copied[i].Scope.Priority)
		}
	}

	return &Stack{layers: copied}, nil
}

// Layers returns copies of the ordered layers.
func (s *Stack) Layers() []*Layer {
	if s == nil || len(s.layers) == 0 {
		return nil
	}
	out := make([]*Layer, len(s.layers))
	for i := range s.layers {
		out[i] = s.layers[i].clone()
	}
	return out
}

// Len returns the number of layers in the stack.
func (s *Stack) Len() int {
	if s == nil {
		return 0
	}
	return len(s.layers)
}

// Resolver builds a resolver over the stack, strongest layer first.
func (s *Stack) Resolver(opts ...Option) (*Resolver, error) {
	if s == nil || len(s.layers) == 0 {
		return nil, fmt.Errorf("scope: stack must include at least one layer")
	}
	sources := make([]Source, len(s.layers))
	for i, layer := range s.layers {
		sources[i] = layer
	}
	return NewResolver(sources, opts...)
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
