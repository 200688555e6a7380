package objsync

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadMappingSpec decodes a YAML mapping document with an engine built from
// opts. See Engine.LoadMappingSpec.
func LoadMappingSpec(data []byte, opts ...Option) (MappingSpec, error) {
	return NewEngine(opts...).LoadMappingSpec(data)
}

// LoadMappingSpec decodes a YAML mapping document. Each key is a source
// property whose value is one of:
//
//	name: ~            # copy verbatim
//	name: title        # rename
//	name: "-"          # ignore
//	name:
//	  target: title
//	  converter: "value * 100"
//	  skipSetter: false
//	  sub: "*"         # or a nested document
//	  items: {...}     # for arrays
//
// Converters are expressions compiled with the engine evaluator; value,
// source and target are bound, along with the keys of the source scope.
func (e *Engine) LoadMappingSpec(data []byte) (MappingSpec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("objsync: parse mapping: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return MappingSpec{}, nil
	}
	loader := mappingLoader{engine: e, evaluator: e.cfg.resolveEvaluator()}
	return loader.spec(doc.Content[0], "")
}

type mappingLoader struct {
	engine    *Engine
	evaluator Evaluator
}

type ruleDocument struct {
	Target     string    `yaml:"target"`
	Converter  string    `yaml:"converter"`
	SkipSetter bool      `yaml:"skipSetter"`
	Sub        yaml.Node `yaml:"sub"`
	Items      yaml.Node `yaml:"items"`
}

func (l mappingLoader) spec(node *yaml.Node, path string) (MappingSpec, error) {
	node = resolveAlias(node)
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return MappingSpec{}, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("objsync: mapping %q line %d: expected a mapping", path, node.Line)
	}
	spec := make(MappingSpec, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		rule, err := l.rule(node.Content[i+1], joinPath(path, key))
		if err != nil {
			return nil, err
		}
		spec[key] = rule
	}
	return spec, nil
}

func (l mappingLoader) rule(node *yaml.Node, path string) (Rule, error) {
	node = resolveAlias(node)
	switch node.Kind {
	case yaml.ScalarNode:
		switch {
		case node.Tag == "!!null":
			return Rule{}, nil
		case node.Value == IgnoreTarget:
			return Ignore(), nil
		default:
			return Rename(node.Value), nil
		}
	case yaml.MappingNode:
		var doc ruleDocument
		if err := node.Decode(&doc); err != nil {
			return Rule{}, fmt.Errorf("objsync: mapping %q line %d: %w", path, node.Line, err)
		}
		rule := Rule{Target: doc.Target, SkipSetter: doc.SkipSetter}
		if doc.Converter != "" {
			converter, err := l.converter(doc.Converter, path)
			if err != nil {
				return Rule{}, err
			}
			rule.Converter = converter
		}
		var err error
		if rule.Sub, err = l.nested(&doc.Sub, joinPath(path, "sub")); err != nil {
			return Rule{}, err
		}
		if rule.Items, err = l.nested(&doc.Items, joinPath(path, "items")); err != nil {
			return Rule{}, err
		}
		return rule, nil
	default:
		return Rule{}, fmt.Errorf("objsync: mapping %q line %d: unsupported rule", path, node.Line)
	}
}

func (l mappingLoader) nested(node *yaml.Node, path string) (*Nested, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	node = resolveAlias(node)
	if node.Kind == yaml.ScalarNode && node.Value == "*" {
		return MergeAll(), nil
	}
	spec, err := l.spec(node, path)
	if err != nil {
		return nil, err
	}
	return Nest(spec), nil
}

// converter compiles expr once; a failed evaluation skips the write.
func (l mappingLoader) converter(expr, path string) (Converter, error) {
	compiled, err := l.evaluator.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("objsync: mapping %q: %w", path, err)
	}
	engineName := evaluatorEngineName(l.evaluator)
	cfg := l.engine.cfg
	return func(value any, source, target PathAccessor) any {
		scope := source.Get("")
		ctx := RuleContext{
			Value:     value,
			Snapshot:  scope,
			Source:    scope,
			Target:    target.Get(""),
			ScopeName: path,
		}
		start := time.Now()
		result, err := compiled.Evaluate(ctx)
		cfg.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
			Engine:   engineName,
			Expr:     expr,
			Scope:    path,
			Duration: time.Since(start),
			Err:      err,
		})
		if err != nil {
			cfg.log().Debug("converter failed",
				slog.String("path", path),
				slog.String("expr", expr),
				slog.Any("error", err),
			)
			return InvalidAccess
		}
		return result
	}, nil
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}
