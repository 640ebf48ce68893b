// Package expressions provides the expression engines available to
// workflow conditions: CEL (default), Expr, and GoJQ. All engines evaluate
// against the same execution scope (matter, contacts, answers, steps).
package expressions

import "context"

// Engine evaluates an expression-shaped condition against scope data.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Registry returns the built-in engines keyed by language name.
// CEL construction is the only fallible engine.
func Registry() (map[string]Engine, error) {
	cel, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return map[string]Engine{
		cel.Name():            cel,
		NewExprEngine().Name(): NewExprEngine(),
		NewGoJQEngine().Name(): NewGoJQEngine(),
	}, nil
}
