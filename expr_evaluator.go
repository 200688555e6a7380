package objsync

import (
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprbuiltin "github.com/expr-lang/expr/builtin"
	exprparser "github.com/expr-lang/expr/parser"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache reuses compiled programs across evaluations.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry exposes registry helpers by name and through
// call(name, args...).
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.registry = registry.Clone()
	}
}

// exprEvaluator is the default engine, backed by github.com/expr-lang/expr.
// Variables are untyped at compile time. Bound names shadow expr builtins of
// the same name, so programs are cached per expression and variable set.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Evaluate compiles expression, through the cache when one is set, and runs
// it against ctx.
func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	ctx = ctx.withDefaults()
	bindings := ctx.bindings()
	program, err := e.program(expression, bindings)
	if err != nil {
		return nil, err
	}
	return e.run(program, expression, ctx, bindings)
}

// Compile checks expression syntax and returns a rule that builds its
// program on first use for each variable set.
func (e *exprEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	if _, err := exprparser.Parse(expression); err != nil {
		return nil, compileError("expr", expression, err)
	}
	return &exprCompiledRule{evaluator: e, expression: expression}, nil
}

func (e *exprEvaluator) program(expression string, bindings map[string]any) (*exprvm.Program, error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	shadowed := shadowedBuiltins(bindings)
	key := exprCacheKey(expression, shadowed)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	program, err := exprlang.Compile(expression, e.compileOptions(shadowed)...)
	if err != nil {
		return nil, compileError("expr", expression, err)
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *exprEvaluator) compileOptions(shadowed []string) []exprlang.Option {
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range shadowed {
		options = append(options, exprlang.DisableBuiltin(name))
	}
	if e.registry == nil {
		return options
	}
	options = append(options, exprlang.Function("call", func(args ...any) (any, error) {
		name, ok := firstString(args)
		if !ok {
			return nil, ErrFunctionNotFound
		}
		return e.registry.Call(name, args[1:]...)
	}))
	for _, name := range e.registry.Names() {
		options = append(options, exprlang.Function(name, e.registry.bound(name)))
	}
	return options
}

func (e *exprEvaluator) run(program *exprvm.Program, expression string, ctx RuleContext, bindings map[string]any) (any, error) {
	result, err := exprlang.Run(program, bindings)
	if err != nil {
		return nil, runError("expr", expression, ctx.scopeLabel(), err)
	}
	return result, nil
}

// shadowedBuiltins returns the sorted binding names that collide with expr
// builtins such as first, last or len.
func shadowedBuiltins(bindings map[string]any) []string {
	var out []string
	for _, name := range sortedKeys(bindings) {
		if _, ok := exprbuiltin.Index[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func exprCacheKey(expression string, shadowed []string) string {
	if len(shadowed) == 0 {
		return expression
	}
	return expression + "|" + strings.Join(shadowed, ",")
}

func (e *exprEvaluator) engineName() string { return "expr" }

type exprCompiledRule struct {
	evaluator  *exprEvaluator
	expression string
}

func (r *exprCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.Evaluate(ctx, r.expression)
}

func firstString(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	name, ok := args[0].(string)
	return name, ok
}
