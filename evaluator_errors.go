package objsync

import (
	"errors"
	"fmt"
)

// ErrEmptyExpression is returned when a converter or computed property has no
// expression text.
var ErrEmptyExpression = errors.New("objsync: expression must not be empty")

// Phase tells whether an expression failed to compile or to run.
type Phase string

const (
	PhaseCompile Phase = "compile"
	PhaseRun     Phase = "run"
)

// EvaluationError describes a failed expression. Converters that fail this
// way leave their target untouched.
type EvaluationError struct {
	Engine string
	Phase  Phase
	Expr   string
	// Scope is the layer scope or mapping path the expression belongs to.
	Scope string
	Err   error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("objsync: %s %s %q", e.Engine, e.phase(), e.Expr)
	if e.Scope != "" {
		msg += " in " + e.Scope
	}
	return msg + ": " + e.Err.Error()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *EvaluationError) phase() Phase {
	if e.Phase == "" {
		return PhaseRun
	}
	return e.Phase
}

func compileError(engine, expr string, err error) error {
	return evaluationError(engine, PhaseCompile, expr, "", err)
}

func runError(engine, expr, scope string, err error) error {
	return evaluationError(engine, PhaseRun, expr, scope, err)
}

// evaluationError wraps err, or fills the blanks of an EvaluationError it
// already carries.
func evaluationError(engine string, phase Phase, expr, scope string, err error) error {
	if err == nil {
		return nil
	}
	var existing *EvaluationError
	if errors.As(err, &existing) {
		if existing.Engine == "" {
			existing.Engine = engine
		}
		if existing.Phase == "" {
			existing.Phase = phase
		}
		if existing.Expr == "" {
			existing.Expr = expr
		}
		if existing.Scope == "" {
			existing.Scope = scope
		}
		return existing
	}
	return &EvaluationError{Engine: engine, Phase: phase, Expr: expr, Scope: scope, Err: err}
}
