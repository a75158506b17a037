// Package logic holds comparison, arithmetic, string and expression nodes.
package logic

import (
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
)

const (
	TypeCompare    = "logic:compare"
	TypeNot        = "logic:not"
	TypeExpression = "logic:expression"
	TypeMath       = "math:operation"
	TypeConcat     = "string:concat"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the logic node types.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Type:        TypeCompare,
		Category:    registry.CategoryLogic,
		Label:       "Compare",
		Description: "Compares a and b with the operator stored on the node.",
		Inputs: registry.Static(
			registry.DataIn("a", graph.KindWildcard, true),
			registry.DataIn("b", graph.KindWildcard, true),
		),
		Outputs:  registry.Static(registry.DataOut("result", graph.KindBoolean)),
		Evaluate: compare,
	})
	r.Register(&registry.Definition{
		Type:     TypeNot,
		Category: registry.CategoryLogic,
		Label:    "Not",
		Inputs:   registry.Static(registry.DataIn("value", graph.KindBoolean, true)),
		Outputs:  registry.Static(registry.DataOut("result", graph.KindBoolean)),
		Evaluate: not,
	})
	r.Register(&registry.Definition{
		Type:        TypeExpression,
		Category:    registry.CategoryLogic,
		Label:       "Expression",
		Description: "Evaluates an expression over a, b, user and args.",
		Inputs: registry.Static(
			registry.DataIn("a", graph.KindWildcard, false),
			registry.DataIn("b", graph.KindWildcard, false),
		),
		Outputs:  registry.Static(registry.DataOut("result", graph.KindWildcard)),
		Evaluate: expression,
	})
	r.Register(&registry.Definition{
		Type:     TypeMath,
		Category: registry.CategoryMath,
		Label:    "Math",
		Inputs: registry.Static(
			registry.DataIn("a", graph.KindNumber, true),
			registry.DataIn("b", graph.KindNumber, true),
		),
		Outputs:  registry.Static(registry.DataOut("result", graph.KindNumber)),
		Evaluate: arithmetic,
	})
	r.Register(&registry.Definition{
		Type:     TypeConcat,
		Category: registry.CategoryString,
		Label:    "Concat",
		Inputs: registry.Static(
			registry.DataIn("a", graph.KindString, false),
			registry.DataIn("b", graph.KindString, false),
		),
		Outputs:  registry.Static(registry.DataOut("result", graph.KindString)),
		Evaluate: concat,
	})
}
