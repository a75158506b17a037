package testutil

import (
	"context"

	"github.com/specialistvlad/nodeflow/internal/agent"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
)

// Helpers is a registry.Helpers for calling a single evaluator or executor
// without an engine. Inputs are keyed by pin id and win over node literals.
type Helpers struct {
	Inputs    map[string]any
	Ev        graph.Event
	Vars      map[string]any
	Outputs   map[string]any
	Traversed []string
	Adapter   agent.Adapter
}

var _ registry.Helpers = (*Helpers)(nil)

func (h *Helpers) ResolvePinValue(ctx context.Context, n *graph.Node, pinID string, fallback any) any {
	if v, ok := h.Inputs[pinID]; ok {
		return v
	}
	if v, ok := n.Literal(pinID); ok {
		return v
	}
	return fallback
}

func (h *Helpers) Traverse(ctx context.Context, n *graph.Node, pinID string) error {
	h.Traversed = append(h.Traversed, pinID)
	return nil
}

func (h *Helpers) SetOutput(n *graph.Node, pinID string, v any) {
	if h.Outputs == nil {
		h.Outputs = make(map[string]any)
	}
	h.Outputs[pinID] = v
}

func (h *Helpers) Output(nodeID, pinID string) (any, bool) {
	v, ok := h.Outputs[pinID]
	return v, ok
}

func (h *Helpers) Invalidate(string) {}

func (h *Helpers) Event() graph.Event { return h.Ev }

func (h *Helpers) Variable(name string) (any, bool) {
	v, ok := h.Vars[name]
	return v, ok
}

func (h *Helpers) SetVariable(name string, v any) {
	if h.Vars == nil {
		h.Vars = make(map[string]any)
	}
	h.Vars[name] = v
}

func (h *Helpers) Agent() agent.Adapter { return h.Adapter }
