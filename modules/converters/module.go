// Package converters holds the nodes the editor inserts between pins of
// different kinds.
package converters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/specialistvlad/nodeflow/internal/expr"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
)

const (
	TypeToString  = "convert:to_string"
	TypeToNumber  = "convert:to_number"
	TypeToBoolean = "convert:to_boolean"
	TypeToJSON    = "convert:to_json"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the converter node types.
func (m *Module) Register(r *registry.Registry) {
	register := func(nodeType, label string, out graph.PinKind, fn func(any) (any, error)) {
		r.Register(&registry.Definition{
			Type:     nodeType,
			Category: registry.CategoryConverter,
			Label:    label,
			Inputs:   registry.Static(registry.DataIn("value", graph.KindWildcard, true)),
			Outputs:  registry.Static(registry.DataOut("result", out)),
			Evaluate: func(ctx context.Context, n *graph.Node, pinID string, h registry.Helpers) (any, error) {
				return fn(h.ResolvePinValue(ctx, n, "value", nil))
			},
		})
	}
	register(TypeToString, "To String", graph.KindString, toString)
	register(TypeToNumber, "To Number", graph.KindNumber, toNumber)
	register(TypeToBoolean, "To Boolean", graph.KindBoolean, toBoolean)
	register(TypeToJSON, "To JSON", graph.KindString, toJSON)
}

func toString(v any) (any, error) {
	if v == nil {
		return "", nil
	}
	s, err := expr.AsString(v)
	if err != nil {
		return toJSON(v)
	}
	return s, nil
}

func toNumber(v any) (any, error) {
	if b, ok := v.(bool); ok {
		if b {
			return 1.0, nil
		}
		return 0.0, nil
	}
	return expr.AsNumber(v)
}

func toBoolean(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case string:
		if b, err := expr.AsBool(x); err == nil {
			return b, nil
		}
		return x != "", nil
	}
	if f, err := expr.AsNumber(v); err == nil {
		return f != 0, nil
	}
	return expr.AsBool(v)
}

func toJSON(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	return string(raw), nil
}
