package objsync

import (
	"log/slog"
	"time"

	"github.com/goliatone/go-objsync/pkg/activity"
)

// RuleContext carries inputs needed when evaluating an expression converter
// or computed layer property.
type RuleContext struct {
	// Value is the value being converted.
	Value any
	// Snapshot is the object whose keys are bound as top-level variables.
	Snapshot any
	// Source and Target are the scoped roots of a mapped copy.
	Source any
	Target any

	Now       *time.Time
	Args      map[string]any
	Metadata  map[string]any
	Scope     Scope
	ScopeName string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) scopeLabel() string {
	if ctx.Scope.Name != "" {
		return ctx.Scope.Name
	}
	if ctx.ScopeName != "" {
		return ctx.ScopeName
	}
	return "unknown"
}

func (ctx RuleContext) scopeBinding() map[string]any {
	if binding := scopeToBinding(ctx.Scope); binding != nil {
		return binding
	}
	if ctx.ScopeName == "" {
		return nil
	}
	return map[string]any{"name": ctx.ScopeName}
}

// bindings returns the variables exposed to every evaluator. Snapshot keys
// are bound first so the reserved names always win.
func (ctx RuleContext) bindings() map[string]any {
	env := map[string]any{}
	if snapshot, ok := ctx.Snapshot.(map[string]any); ok {
		for key, value := range snapshot {
			env[key] = value
		}
	}
	env["now"] = ctx.timestamp()
	env["args"] = ctx.Args
	env["metadata"] = ctx.Metadata
	env["value"] = ctx.Value
	env["source"] = ctx.Source
	env["target"] = ctx.Target
	if binding := ctx.scopeBinding(); binding != nil {
		env["scope"] = binding
	}
	return env
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// Option configures an Engine or Resolver.
type Option func(*config)

type config struct {
	evaluator     Evaluator
	programCache  ProgramCache
	functions     *FunctionRegistry
	evalLogger    EvaluatorLogger
	logger        *slog.Logger
	activityHooks activity.Hooks
	skipArray     bool
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithEvaluator configures the evaluator used for expression converters.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

// WithLogger attaches a structured logger. Skipped writes and unresolved
// source paths are reported at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithSkipArray makes the diff engine treat arrays as opaque leaves.
func WithSkipArray(skip bool) Option {
	return func(cfg *config) {
		cfg.skipArray = skip
	}
}

func (cfg config) log() *slog.Logger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return discardLogger
}

func (cfg config) evaluatorLogger() EvaluatorLogger {
	if cfg.evalLogger != nil {
		return cfg.evalLogger
	}
	return noopEvaluatorLogger{}
}

var discardLogger = slog.New(slog.DiscardHandler)

// resolveEvaluator returns the configured evaluator or an expr evaluator
// wired to the configured cache and functions.
func (cfg config) resolveEvaluator() Evaluator {
	if cfg.evaluator != nil {
		return cfg.evaluator
	}
	var opts []ExprEvaluatorOption
	if cfg.programCache != nil {
		opts = append(opts, ExprWithProgramCache(cfg.programCache))
	}
	if cfg.functions != nil {
		opts = append(opts, ExprWithFunctionRegistry(cfg.functions))
	}
	return NewExprEvaluator(opts...)
}

func evaluatorEngineName(e Evaluator) string {
	if named, ok := e.(interface{ engineName() string }); ok {
		return named.engineName()
	}
	return "custom"
}

func scopeToBinding(scope Scope) map[string]any {
	if scope.isZero() {
		return nil
	}
	binding := map[string]any{
		"name":     scope.Name,
		"label":    scope.Label,
		"priority": scope.Priority,
	}
	if len(scope.Metadata) > 0 {
		binding["metadata"] = copyMetadata(scope.Metadata)
	}
	return binding
}
