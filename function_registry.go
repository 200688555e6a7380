package objsync

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"unicode"
)

var (
	// ErrInvalidFunctionName indicates a name that is not an expression
	// identifier or shadows a bound variable.
	ErrInvalidFunctionName = errors.New("objsync: invalid function name")
	// ErrFunctionExists indicates a second registration under one name.
	ErrFunctionExists = errors.New("objsync: function already registered")
	// ErrFunctionNotFound indicates a call to an unregistered function.
	ErrFunctionNotFound = errors.New("objsync: function not registered")
)

// reservedNames are bound by every rule context.
var reservedNames = []string{"call", "value", "source", "target", "now", "args", "metadata", "scope"}

// Function is a helper callable from converter and property expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry holds the helpers exposed to expressions. Names are case
// sensitive, matching the expression languages. Safe for concurrent use.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]Function)}
}

// Register stores fn under name.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("objsync: function %q is nil", name)
	}
	if !validFunctionName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidFunctionName, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	if _, exists := r.functions[name]; exists {
		return fmt.Errorf("%w: %q", ErrFunctionExists, name)
	}
	r.functions[name] = fn
	return nil
}

// Clone returns a registry with the same functions.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{functions: make(map[string]Function, len(r.functions))}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	r.mu.RLock()
	fn := r.functions[name]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	return fn(args...)
}

// Names returns the registered names sorted.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// bound returns a closure calling name, for evaluators that bind helpers as
// plain variables.
func (r *FunctionRegistry) bound(name string) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		return r.Call(name, args...)
	}
}

func validFunctionName(name string) bool {
	if name == "" || slices.Contains(reservedNames, name) {
		return false
	}
	for i, c := range name {
		if c == '_' || unicode.IsLetter(c) || (i > 0 && unicode.IsDigit(c)) {
			continue
		}
		return false
	}
	return true
}

// WithFunctionRegistry exposes the functions in registry to expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for expressions. Invalid or
// duplicate names are ignored.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}
