// Package data holds the pure data nodes that read the triggering event or
// assemble values. None of them has exec pins.
package data

import (
	"context"
	"fmt"

	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
)

const (
	TypeLiteral     = "data:literal"
	TypeGetArgument = "data:get_argument"
	TypeMakeObject  = "data:make_object"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the data node types.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Type:        TypeLiteral,
		Category:    registry.CategoryData,
		Label:       "Literal",
		Description: "A constant value typed in the editor.",
		Outputs:     literalPins,
		Evaluate: func(ctx context.Context, n *graph.Node, pinID string, h registry.Helpers) (any, error) {
			v, _ := n.Literal("value")
			return v, nil
		},
	})
	r.Register(&registry.Definition{
		Type:        TypeGetArgument,
		Category:    registry.CategoryData,
		Label:       "Get Argument",
		Description: "Reads a named argument of the command that fired.",
		Inputs:      registry.Static(registry.DataIn("default", graph.KindWildcard, false)),
		Outputs: registry.Static(
			registry.DataOut("value", graph.KindWildcard),
			registry.DataOut("present", graph.KindBoolean),
		),
		Evaluate: getArgument,
	})
	r.Register(&registry.Definition{
		Type:        TypeMakeObject,
		Category:    registry.CategoryData,
		Label:       "Make Object",
		Description: "Builds an object from key/value pairs.",
		Inputs:      objectPins,
		Outputs:     registry.Static(registry.DataOut("object", graph.KindObject)),
		Evaluate:    makeObject,
	})
}

// literalPins types the output after the kind chosen in the editor.
func literalPins(n *graph.Node) []graph.Pin {
	kind := graph.KindWildcard
	if k, ok := n.Data["kind"].(string); ok && k != "" {
		kind = graph.PinKind(k)
	}
	return []graph.Pin{registry.DataOut("value", kind)}
}

func getArgument(ctx context.Context, n *graph.Node, pinID string, h registry.Helpers) (any, error) {
	name, _ := n.Data["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("node %s has no argument name", n.ID)
	}
	v, ok := h.Event().Args[name]
	if pinID == "present" {
		return ok, nil
	}
	if !ok {
		return h.ResolvePinValue(ctx, n, "default", nil), nil
	}
	return v, nil
}
