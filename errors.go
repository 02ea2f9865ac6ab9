package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownModifier is returned when executing a name that was never
	// registered.
	ErrUnknownModifier = errors.New("store: unknown modifier")
	// ErrInvalidModifier reports a modifier that cannot be registered or run.
	ErrInvalidModifier = errors.New("store: invalid modifier")
	// ErrSelectorResultAbsent is returned when a reducer's selector finds
	// nothing to update.
	ErrSelectorResultAbsent = errors.New("store: selector result absent")
	// ErrPatchMismatch reports a patch that does not fit the selected node.
	ErrPatchMismatch = errors.New("store: patch does not match selection")
	// ErrModifierPanic wraps a panic recovered from a dispatched call.
	ErrModifierPanic = errors.New("store: modifier panicked")
)

// LookupError is returned by Execute and Dispatch for unregistered names.
type LookupError struct {
	Name string
}

func (e *LookupError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: modifier %q is not registered", e.Name)
}

// Unwrap allows errors.Is(err, ErrUnknownModifier).
func (e *LookupError) Unwrap() error {
	return ErrUnknownModifier
}

// ActionError carries the failure of a modifier's action back to the caller
// of Execute. No reducer ran for that call.
type ActionError struct {
	Modifier   string
	InstanceID string
	Err        error
}

func (e *ActionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: modifier %q action failed (instance %s): %v", e.Modifier, e.InstanceID, e.Err)
}

func (e *ActionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ReducerError reports the reducer binding that failed. Bindings before Index
// were already applied and are not rolled back.
type ReducerError struct {
	Modifier   string
	InstanceID string
	Index      int
	Err        error
}

func (e *ReducerError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: modifier %q reducer %d failed (instance %s): %v", e.Modifier, e.Index, e.InstanceID, e.Err)
}

func (e *ReducerError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: %s evaluator %s: %v", e.Engine, describeExpression(e.Expr), e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "store:") {
		return err
	}
	return fmt.Errorf("store: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Err:    err,
	}
}
