package engine

import (
	"context"
	"fmt"

	"github.com/specialistvlad/nodeflow/internal/ctxlog"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
)

// ResolvePinValue returns the effective value of an input pin, trying in
// order: an input override, the connected upstream output, the node's own
// literal, and finally fallback. Resolution never fails: problems upstream
// are logged and the next source is used.
func (x *Execution) ResolvePinValue(ctx context.Context, node *graph.Node, pinID string, fallback any) any {
	if v, ok := x.overrides.Input(node.ID, pinID); ok {
		return v
	}
	if c, ok := x.graph.Incoming(node.ID, pinID); ok {
		if v, ok := x.resolveOutput(ctx, c.SourceNodeID, c.SourcePinID); ok {
			return v
		}
	}
	if v, ok := node.Literal(pinID); ok {
		return v
	}
	return fallback
}

// ResolveInputs resolves every data input of node. Pins that resolve to
// nil are left out.
func (x *Execution) ResolveInputs(ctx context.Context, node *graph.Node) map[string]any {
	def, ok := x.engine.registry.Get(node.Type)
	if !ok {
		return nil
	}
	var inputs map[string]any
	for _, p := range def.InputPins(node) {
		if p.IsExec() {
			continue
		}
		v := x.ResolvePinValue(ctx, node, p.ID, nil)
		if v == nil {
			continue
		}
		if inputs == nil {
			inputs = make(map[string]any)
		}
		inputs[p.ID] = v
	}
	return inputs
}

// resolveOutput produces the value of an upstream output pin. Published
// values are read as they are; data nodes are evaluated on demand.
func (x *Execution) resolveOutput(ctx context.Context, nodeID, pinID string) (any, bool) {
	if v, ok := x.Output(nodeID, pinID); ok {
		return v, true
	}

	logger := ctxlog.FromContext(ctx).With("node", nodeID, "pin", pinID)
	source, ok := x.graph.Node(nodeID)
	if !ok {
		logger.Warn("Connection comes from a missing node.")
		return nil, false
	}
	def, ok := x.engine.registry.Get(source.Type)
	if !ok || def.Evaluate == nil {
		// Executors publish their outputs when they run. Until then the
		// pin has no value.
		return nil, false
	}

	key := pinKey{nodeID, pinID}
	if _, busy := x.resolving[key]; busy {
		logger.Warn("Data cycle detected, using fallback.")
		return nil, false
	}
	x.resolving[key] = struct{}{}
	defer delete(x.resolving, key)

	r := &resolution{volatile: def.Volatile}
	x.resolutions = append(x.resolutions, r)
	defer func() { x.resolutions = x.resolutions[:len(x.resolutions)-1] }()
	if def.Volatile {
		x.markVolatile()
	}

	v, err := x.evaluate(ctx, def, source, pinID)
	if err != nil {
		logger.Warn("Data node evaluation failed, using fallback.", "type", source.Type, "error", err)
		return nil, false
	}
	if !r.volatile {
		x.memo.Set(nodeID, pinID, v)
	}
	return v, true
}

// markVolatile taints every evaluation on the stack so that none of them is
// cached.
func (x *Execution) markVolatile() {
	for _, r := range x.resolutions {
		r.volatile = true
	}
}

func (x *Execution) evaluate(ctx context.Context, def *registry.Definition, node *graph.Node, pinID string) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return def.Evaluate(ctx, node, pinID, x)
}

// Refresh drops whatever was memoized before an override of k was set, so
// later reads see it. An input override also forgets the node's own
// outputs when it is a pure data node. It must only be called while the
// execution is not resolving, e.g. when paused.
func (x *Execution) Refresh(k OverrideKey) {
	if k.Direction == graph.Input {
		n, ok := x.graph.Node(k.NodeID)
		if !ok {
			return
		}
		if def, ok := x.engine.registry.Get(n.Type); ok && def.IsData() {
			x.memo.Forget(k.NodeID)
		}
	}
	x.Invalidate(k.NodeID)
}

// Invalidate forgets the cached outputs of every pure data node reachable
// downstream of nodeID through data nodes only.
func (x *Execution) Invalidate(nodeID string) {
	seen := map[string]struct{}{nodeID: {}}
	queue := []string{nodeID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range x.graph.Dependents(id) {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			n, ok := x.graph.Node(dep)
			if !ok {
				continue
			}
			def, ok := x.engine.registry.Get(n.Type)
			if !ok || !def.IsData() {
				continue
			}
			x.memo.Forget(dep)
			queue = append(queue, dep)
		}
	}
}
