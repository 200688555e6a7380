package objsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goliatone/go-objsync/internal/hydrate"
	"github.com/goliatone/go-objsync/layering"
	"github.com/goliatone/go-objsync/pkg/activity"
)

var (
	// ErrLayerIndex indicates an update addressed a layer that does not exist.
	ErrLayerIndex = errors.New("objsync: layer index out of range")
	// ErrLayerNotData indicates layer data is neither a tree nor a struct.
	ErrLayerNotData = errors.New("objsync: layer data must be an object, array or struct")
	// ErrLayerNotPlain indicates an update addressed a nested resolver or
	// custom source instead of a plain layer.
	ErrLayerNotPlain = errors.New("objsync: layer is not a plain data layer")
)

// Source yields the value of a logical property. Layers and resolvers are
// sources, so resolvers nest.
type Source interface {
	Lookup(property string) (any, bool)
}

// Property describes how a layer produces one logical property.
type Property struct {
	path    string
	compute func(PathAccessor) any
	expr    string
}

// PropertyMapping maps logical property names to their layer definition.
type PropertyMapping map[string]Property

// Alias reads the property from path in the layer data. An empty path reads
// the property name itself.
func Alias(path string) Property {
	return Property{path: path}
}

// Computed derives the property from the layer data.
func Computed(fn func(PathAccessor) any) Property {
	return Property{compute: fn}
}

// Expression evaluates expr with the layer data bound as variables.
func Expression(expr string) Property {
	return Property{expr: expr}
}

// layerEval carries the evaluator state a layer needs for expressions.
type layerEval struct {
	evaluator Evaluator
	logger    EvaluatorLogger
}

func (ev layerEval) evaluate(ctx RuleContext, expr string) (any, error) {
	evaluator := ev.evaluator
	if evaluator == nil {
		evaluator = NewExprEvaluator()
	}
	logger := ev.logger
	if logger == nil {
		logger = noopEvaluatorLogger{}
	}
	start := time.Now()
	value, err := evaluator.Evaluate(ctx, expr)
	logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   evaluatorEngineName(evaluator),
		Expr:     expr,
		Scope:    ctx.scopeLabel(),
		Duration: time.Since(start),
		Err:      err,
	})
	return value, err
}

// resolve returns the property value, the data path it was read from and
// whether it is defined.
func (l *Layer) resolve(property string, ev layerEval) (any, string, bool) {
	acc, err := l.access()
	if err != nil {
		return nil, property, false
	}
	if l.Mapping == nil {
		value := acc.Get(property)
		return value, property, IsDefined(value)
	}
	prop, ok := l.Mapping[property]
	if !ok {
		return nil, property, false
	}

	var value any
	path := property
	switch {
	case prop.compute != nil:
		value = prop.compute(acc)
	case prop.expr != "":
		value, err = ev.evaluate(RuleContext{Snapshot: acc.Root(), Scope: l.Scope}, prop.expr)
		if err != nil {
			return nil, property, false
		}
	default:
		if prop.path != "" {
			path = prop.path
		}
		value = acc.Get(path)
	}
	return value, path, IsDefined(value)
}

func (l *Layer) lookup(property string, ev layerEval) (any, bool) {
	value, _, ok := l.resolve(property, ev)
	return value, ok
}

type cachedLookup struct {
	value any
	found bool
}

// Resolver resolves logical properties across layers ordered strongest first.
// The first layer producing a defined value wins and the result is cached,
// misses included, until a layer is replaced.
//
// A Resolver is not safe for concurrent use.
type Resolver struct {
	cfg     config
	eval    layerEval
	sources []Source

	cache      map[string]cachedLookup
	generation uint64
	seen       uint64
}

var _ Source = (*Resolver)(nil)

// NewResolver builds a resolver over sources, strongest first. Plain layers
// are copied, so later edits to the caller's Layer values are not observed.
func NewResolver(sources []Source, opts ...Option) (*Resolver, error) {
	return newResolver(sources, applyOptions(opts))
}

func newResolver(sources []Source, cfg config) (*Resolver, error) {
	r := &Resolver{
		cfg: cfg,
		eval: layerEval{
			evaluator: cfg.resolveEvaluator(),
			logger:    cfg.evaluatorLogger(),
		},
		cache: map[string]cachedLookup{},
	}
	r.sources = make([]Source, 0, len(sources))
	for i, source := range sources {
		switch typed := source.(type) {
		case nil:
			continue
		case *Layer:
			layer := typed.clone()
			if _, err := layer.access(); err != nil {
				return nil, fmt.Errorf("objsync: layer %d: %w", i, err)
			}
			r.sources = append(r.sources, layer)
		default:
			r.sources = append(r.sources, source)
		}
	}
	r.seen = r.Generation()
	return r, nil
}

// Len returns the number of layers.
func (r *Resolver) Len() int {
	return len(r.sources)
}

// Get returns the effective value of property, or nil when no layer defines
// it.
func (r *Resolver) Get(property string) any {
	value, _ := r.Lookup(property)
	return value
}

// Lookup returns the effective value of property and whether any layer
// defines it.
func (r *Resolver) Lookup(property string) (any, bool) {
	r.refresh()
	if cached, ok := r.cache[property]; ok {
		return cached.value, cached.found
	}
	var result cachedLookup
	for _, source := range r.sources {
		value, found := r.lookupSource(source, property)
		if found && IsDefined(value) {
			result = cachedLookup{value: value, found: true}
			break
		}
	}
	r.cache[property] = result
	return result.value, result.found
}

func (r *Resolver) lookupSource(source Source, property string) (any, bool) {
	if layer, ok := source.(*Layer); ok {
		return layer.lookup(property, r.eval)
	}
	return source.Lookup(property)
}

// Generation changes whenever this resolver or a nested resolver replaces a
// layer.
func (r *Resolver) Generation() uint64 {
	g := r.generation
	for _, source := range r.sources {
		if nested, ok := source.(*Resolver); ok {
			g += nested.Generation()
		}
	}
	return g
}

// refresh drops the cache when a nested resolver changed behind our back.
func (r *Resolver) refresh() {
	if g := r.Generation(); g != r.seen {
		clear(r.cache)
		r.seen = g
	}
}

// Update replaces the data of the plain layer at index and clears the cache.
func (r *Resolver) Update(index int, data any) error {
	return r.UpdateContext(context.Background(), index, data)
}

// UpdateContext is Update that also reports the change to the configured
// activity hooks.
func (r *Resolver) UpdateContext(ctx context.Context, index int, data any) error {
	if index < 0 || index >= len(r.sources) {
		err := fmt.Errorf("%w: %d", ErrLayerIndex, index)
		emitResolverUpdated(ctx, index, "", err)
		return err
	}
	current, ok := r.sources[index].(*Layer)
	if !ok {
		err := fmt.Errorf("%w: %d", ErrLayerNotPlain, index)
		emitResolverUpdated(ctx, index, "", err)
		return err
	}

	next := current.clone()
	next.Data = data
	if _, err := next.access(); err != nil {
		err = fmt.Errorf("objsync: layer %d: %w", index, err)
		emitResolverUpdated(ctx, index, current.Scope.Name, err)
		return err
	}
	r.sources[index] = next
	r.generation++
	clear(r.cache)
	r.seen = r.Generation()

	emitResolverUpdated(ctx, index, next.Scope.Name, nil)
	r.cfg.log().Debug("resolver layer updated",
		slog.Int("index", index),
		slog.String("scope", next.Scope.Name),
	)
	if r.cfg.activityHooks.Enabled() {
		event := activity.BuildLayerUpdatedEvent(activity.SyncEventInput{
			LayerIndex: index,
			Scope: activity.ScopeContext{
				Name:       next.Scope.Name,
				Label:      next.Scope.Label,
				Priority:   next.Scope.Priority,
				Metadata:   next.Scope.Metadata,
				SnapshotID: next.SnapshotID,
			},
		})
		if err := r.cfg.activityHooks.Notify(ctx, event); err != nil {
			r.cfg.log().Warn("activity hook failed", slog.Any("error", err))
		}
	}
	return nil
}

// NextLevel returns a resolver with one more layer, stronger than every layer
// of r, over r itself. dataOrLayer is either a *Layer or raw layer data. With
// isomorphic set, a layer without a mapping reuses the mapping of the
// strongest plain layer of r.
func (r *Resolver) NextLevel(dataOrLayer any, isomorphic bool) (*Resolver, error) {
	var layer *Layer
	switch typed := dataOrLayer.(type) {
	case *Layer:
		layer = typed.clone()
	case Layer:
		layer = typed.clone()
	default:
		layer = &Layer{Data: dataOrLayer}
	}
	if isomorphic && layer.Mapping == nil {
		if strongest := r.strongestLayer(); strongest != nil {
			layer.Mapping = strongest.Mapping
		}
	}
	return newResolver([]Source{layer, r}, r.cfg)
}

func (r *Resolver) strongestLayer() *Layer {
	for _, source := range r.sources {
		switch typed := source.(type) {
		case *Layer:
			return typed
		case *Resolver:
			if layer := typed.strongestLayer(); layer != nil {
				return layer
			}
		}
	}
	return nil
}

// Trace reports what every layer yields for property, strongest first.
// Nested resolvers contribute their own layers in place.
func (r *Resolver) Trace(property string) Trace {
	return Trace{Path: property, Layers: r.provenance(property)}
}

func (r *Resolver) provenance(property string) []Provenance {
	var out []Provenance
	for _, source := range r.sources {
		switch typed := source.(type) {
		case *Layer:
			value, path, found := typed.resolve(property, r.eval)
			if !found {
				value = nil
			}
			out = append(out, Provenance{
				Scope:      typed.Scope.clone(),
				SnapshotID: typed.SnapshotID,
				Path:       path,
				Value:      value,
				Found:      found,
			})
		case *Resolver:
			out = append(out, typed.provenance(property)...)
		default:
			value, found := typed.Lookup(property)
			out = append(out, Provenance{Path: property, Value: value, Found: found && IsDefined(value)})
		}
	}
	return out
}

// Snapshot merges the raw data of every object layer, strongest first, into
// one tree. Property mappings are not applied.
func (r *Resolver) Snapshot() map[string]any {
	layers := r.objectLayers()
	trees := make([]map[string]any, len(layers))
	for i, layer := range layers {
		trees[i] = layer.Tree().(map[string]any)
	}
	return layering.Compose(trees...)
}

// Origins maps every leaf path of Snapshot to the scope name of the layer
// that supplied it.
func (r *Resolver) Origins() map[string]string {
	layers := r.objectLayers()
	trees := make([]map[string]any, len(layers))
	for i, layer := range layers {
		trees[i] = layer.Tree().(map[string]any)
	}
	origins := layering.Origins(trees...)
	out := make(map[string]string, len(origins))
	for path, index := range origins {
		out[path] = layers[index].Scope.Name
	}
	return out
}

// objectLayers flattens nested resolvers into the plain layers holding
// object data, strongest first.
func (r *Resolver) objectLayers() []*Layer {
	var out []*Layer
	for _, source := range r.sources {
		switch typed := source.(type) {
		case *Layer:
			if _, ok := typed.Tree().(map[string]any); ok {
				out = append(out, typed)
			}
		case *Resolver:
			out = append(out, typed.objectLayers()...)
		}
	}
	return out
}

// BindOption tunes Bind.
type BindOption func(*bindOptions)

type bindOptions struct {
	strict    bool
	useNumber bool
}

// BindStrict rejects snapshot keys with no matching struct field.
func BindStrict() BindOption {
	return func(o *bindOptions) {
		o.strict = true
	}
}

// BindUseNumber decodes numbers into interface fields as json.Number.
func BindUseNumber() BindOption {
	return func(o *bindOptions) {
		o.useNumber = true
	}
}

// Bind decodes the resolver snapshot into T through its json tags. When *T
// has a Validate() error method it is called on the result.
func Bind[T any](r *Resolver, opts ...BindOption) (T, error) {
	var options bindOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	value, err := hydrate.Decode[T](r.Snapshot(), hydrate.Options{
		Strict:    options.strict,
		UseNumber: options.useNumber,
	})
	if err != nil {
		return value, fmt.Errorf("objsync: bind: %w", err)
	}
	return value, nil
}
