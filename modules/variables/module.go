// Package variables reads and writes graph variables. Assignments last for
// the rest of the execution; the stored graph keeps its declared values.
package variables

import (
	"context"
	"fmt"

	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
)

const (
	TypeGet = "variable:get"
	TypeSet = "variable:set"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the variable node types.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Type:     TypeGet,
		Category: registry.CategoryVariable,
		Label:    "Get Variable",
		Volatile: true,
		Outputs:  registry.Static(registry.DataOut("value", graph.KindWildcard)),
		Evaluate: get,
	})
	r.Register(&registry.Definition{
		Type:     TypeSet,
		Category: registry.CategoryVariable,
		Label:    "Set Variable",
		Inputs: registry.Static(
			registry.ExecIn("exec"),
			registry.DataIn("value", graph.KindWildcard, false),
		),
		Outputs: registry.Static(
			registry.ExecOut("exec"),
			registry.DataOut("value", graph.KindWildcard),
		),
		Execute: set,
	})
}

func name(n *graph.Node) (string, error) {
	s, _ := n.Data["name"].(string)
	if s == "" {
		return "", fmt.Errorf("node %s does not name a variable", n.ID)
	}
	return s, nil
}

func get(ctx context.Context, n *graph.Node, pinID string, h registry.Helpers) (any, error) {
	key, err := name(n)
	if err != nil {
		return nil, err
	}
	v, ok := h.Variable(key)
	if !ok {
		return nil, fmt.Errorf("variable %q is not declared", key)
	}
	return v, nil
}

func set(ctx context.Context, n *graph.Node, h registry.Helpers) error {
	key, err := name(n)
	if err != nil {
		return err
	}
	v := h.ResolvePinValue(ctx, n, "value", nil)
	h.SetVariable(key, v)
	h.SetOutput(n, "value", v)
	return h.Traverse(ctx, n, "exec")
}
