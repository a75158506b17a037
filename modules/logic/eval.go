package logic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/specialistvlad/nodeflow/internal/expr"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
)

// ErrDivisionByZero is returned by math nodes dividing by zero.
var ErrDivisionByZero = errors.New("division by zero")

func operator(n *graph.Node, fallback string) string {
	if op, ok := n.Data["operator"].(string); ok && op != "" {
		return op
	}
	return fallback
}

func compare(ctx context.Context, n *graph.Node, pinID string, h registry.Helpers) (any, error) {
	a := h.ResolvePinValue(ctx, n, "a", nil)
	b := h.ResolvePinValue(ctx, n, "b", nil)

	switch op := operator(n, "=="); op {
	case "==":
		return equal(a, b), nil
	case "!=":
		return !equal(a, b), nil
	case "<", "<=", ">", ">=":
		x, err := expr.AsNumber(a)
		if err != nil {
			return nil, fmt.Errorf("a: %w", err)
		}
		y, err := expr.AsNumber(b)
		if err != nil {
			return nil, fmt.Errorf("b: %w", err)
		}
		switch op {
		case "<":
			return x < y, nil
		case "<=":
			return x <= y, nil
		case ">":
			return x > y, nil
		default:
			return x >= y, nil
		}
	default:
		return nil, fmt.Errorf("unknown comparison operator %q", op)
	}
}

// equal compares numerically when both sides are numbers, then as strings,
// then structurally.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, err := expr.AsNumber(a); err == nil {
		if y, err := expr.AsNumber(b); err == nil {
			return x == y
		}
	}
	x, errA := expr.AsString(a)
	y, errB := expr.AsString(b)
	if errA == nil && errB == nil {
		return x == y
	}
	return reflect.DeepEqual(a, b)
}

func not(ctx context.Context, n *graph.Node, pinID string, h registry.Helpers) (any, error) {
	v, err := expr.AsBool(h.ResolvePinValue(ctx, n, "value", false))
	if err != nil {
		return nil, err
	}
	return !v, nil
}

func expression(ctx context.Context, n *graph.Node, pinID string, h registry.Helpers) (any, error) {
	source, _ := n.Data["expression"].(string)
	e, err := expr.Compile(source)
	if err != nil {
		return nil, err
	}
	ev := h.Event()
	args := ev.Args
	if args == nil {
		args = map[string]any{}
	}
	return e.Value(map[string]any{
		"a":    h.ResolvePinValue(ctx, n, "a", nil),
		"b":    h.ResolvePinValue(ctx, n, "b", nil),
		"args": args,
		"user": map[string]any{"id": ev.User.ID, "username": ev.User.Username},
	})
}

func arithmetic(ctx context.Context, n *graph.Node, pinID string, h registry.Helpers) (any, error) {
	a, err := expr.AsNumber(h.ResolvePinValue(ctx, n, "a", 0.0))
	if err != nil {
		return nil, fmt.Errorf("a: %w", err)
	}
	b, err := expr.AsNumber(h.ResolvePinValue(ctx, n, "b", 0.0))
	if err != nil {
		return nil, fmt.Errorf("b: %w", err)
	}

	switch op := operator(n, "+"); op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, ErrDivisionByZero
		}
		return a / b, nil
	case "%":
		if b == 0 {
			return nil, ErrDivisionByZero
		}
		return math.Mod(a, b), nil
	case "min":
		return math.Min(a, b), nil
	case "max":
		return math.Max(a, b), nil
	default:
		return nil, fmt.Errorf("unknown math operator %q", op)
	}
}

func concat(ctx context.Context, n *graph.Node, pinID string, h registry.Helpers) (any, error) {
	sep, _ := n.Data["separator"].(string)
	a := stringOrEmpty(h.ResolvePinValue(ctx, n, "a", ""))
	b := stringOrEmpty(h.ResolvePinValue(ctx, n, "b", ""))
	return a + sep + b, nil
}

func stringOrEmpty(v any) string {
	s, err := expr.AsString(v)
	if err != nil {
		return ""
	}
	return s
}
