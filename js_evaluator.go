//go:build js_eval

package objsync

import (
	"github.com/dop251/goja"
)

// jsEvaluator runs expressions inside a fresh goja runtime per evaluation.
// Expressions are wrapped in a function so a bare expression yields its value.
type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewJSEvaluator constructs an Evaluator backed by goja.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	cfg := applyJSEvaluatorOptions(opts)
	return &jsEvaluator{cache: cfg.cache, registry: cfg.registry}
}

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	return e.run(program, expression, ctx)
}

func (e *jsEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	return &jsCompiledRule{evaluator: e, program: program, expression: expression}, nil
}

func (e *jsEvaluator) program(expression string) (*goja.Program, error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	if e.cache != nil {
		if cached, ok := e.cache.Get("js:" + expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", "(function(){ return ("+expression+"); })()", false)
	if err != nil {
		return nil, compileError("js", expression, err)
	}
	if e.cache != nil {
		e.cache.Set("js:"+expression, program)
	}
	return program, nil
}

func (e *jsEvaluator) run(program *goja.Program, expression string, ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	vm := goja.New()
	for key, value := range ctx.bindings() {
		if err := vm.Set(key, value); err != nil {
			return nil, runError("js", expression, ctx.scopeLabel(), err)
		}
	}
	if e.registry != nil {
		_ = vm.Set("call", func(name string, args ...any) (any, error) {
			return e.registry.Call(name, args...)
		})
		for _, name := range e.registry.Names() {
			_ = vm.Set(name, e.registry.bound(name))
		}
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, runError("js", expression, ctx.scopeLabel(), err)
	}
	return value.Export(), nil
}

func (e *jsEvaluator) engineName() string { return "js" }

type jsCompiledRule struct {
	evaluator  *jsEvaluator
	program    *goja.Program
	expression string
}

func (r *jsCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.run(r.program, r.expression, ctx)
}

// JSEvaluatorAvailable reports whether the goja engine is compiled in.
func JSEvaluatorAvailable() bool {
	return true
}
