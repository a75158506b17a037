package graph

import (
	"errors"
	"fmt"
)

// ErrInvalidGraph wraps every structural problem reported by Validate.
var ErrInvalidGraph = errors.New("invalid graph")

// PinLayout resolves the pins a node exposes. The node type registry
// implements it.
type PinLayout interface {
	Pins(node *Node) (inputs, outputs []Pin, ok bool)
}

// Validate checks the edit-time invariants of a graph: unique node ids,
// known node types, connections between existing pins of compatible kinds
// and at most one incoming connection per input pin. All problems are
// reported together.
func Validate(g *Graph, layout PinLayout) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	type pins struct{ in, out []Pin }
	layouts := make(map[string]pins, len(g.Nodes))
	for _, n := range g.Nodes {
		if n == nil {
			fail("nil node in graph %q", g.ID)
			continue
		}
		if _, dup := layouts[n.ID]; dup {
			fail("duplicate node id %q", n.ID)
			continue
		}
		in, out, ok := layout.Pins(n)
		if !ok {
			fail("node %q: unknown type %q", n.ID, n.Type)
		}
		layouts[n.ID] = pins{in, out}
	}

	taken := make(map[pinRef]struct{})
	for _, c := range g.Connections {
		src, srcOK := layouts[c.SourceNodeID]
		dst, dstOK := layouts[c.TargetNodeID]
		if !srcOK || !dstOK {
			fail("connection %s.%s -> %s.%s: missing node", c.SourceNodeID, c.SourcePinID, c.TargetNodeID, c.TargetPinID)
			continue
		}
		from, ok := FindPin(src.out, c.SourcePinID)
		if !ok {
			fail("connection %s.%s -> %s.%s: node %q has no output pin %q", c.SourceNodeID, c.SourcePinID, c.TargetNodeID, c.TargetPinID, c.SourceNodeID, c.SourcePinID)
			continue
		}
		to, ok := FindPin(dst.in, c.TargetPinID)
		if !ok {
			fail("connection %s.%s -> %s.%s: node %q has no input pin %q", c.SourceNodeID, c.SourcePinID, c.TargetNodeID, c.TargetPinID, c.TargetNodeID, c.TargetPinID)
			continue
		}
		if !Compatible(from.Kind, to.Kind) {
			fail("connection %s.%s -> %s.%s: cannot connect %s to %s", c.SourceNodeID, c.SourcePinID, c.TargetNodeID, c.TargetPinID, from.Kind, to.Kind)
		}
		if !to.IsExec() {
			ref := pinRef{c.TargetNodeID, c.TargetPinID}
			if _, dup := taken[ref]; dup {
				fail("input pin %s.%s has more than one incoming connection", c.TargetNodeID, c.TargetPinID)
			}
			taken[ref] = struct{}{}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidGraph, errors.Join(errs...))
}
