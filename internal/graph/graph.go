package graph

import (
	"sync"
)

// New creates a graph and builds its lookup indexes.
func New(id string, nodes []*Node, connections []Connection, variables ...Variable) *Graph {
	g := &Graph{
		ID:          id,
		Nodes:       nodes,
		Connections: connections,
		Variables:   variables,
	}
	g.index()
	return g
}

// index builds the lookup tables exactly once. Graphs decoded from JSON or
// YAML get indexed lazily on first use.
func (g *Graph) index() {
	g.indexOnce.Do(func() {
		g.byID = make(map[string]*Node, len(g.Nodes))
		for _, n := range g.Nodes {
			if n == nil {
				continue
			}
			if _, dup := g.byID[n.ID]; !dup {
				g.byID[n.ID] = n
			}
		}
		g.incoming = make(map[pinRef]Connection, len(g.Connections))
		g.outgoing = make(map[pinRef][]Connection)
		for _, c := range g.Connections {
			target := pinRef{c.TargetNodeID, c.TargetPinID}
			if _, taken := g.incoming[target]; !taken {
				g.incoming[target] = c
			}
			source := pinRef{c.SourceNodeID, c.SourcePinID}
			g.outgoing[source] = append(g.outgoing[source], c)
		}
	})
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	g.index()
	n, ok := g.byID[id]
	return n, ok
}

// Incoming returns the connection feeding an input pin, if any. Only the
// first declared connection counts; Validate reports the rest.
func (g *Graph) Incoming(nodeID, pinID string) (Connection, bool) {
	g.index()
	c, ok := g.incoming[pinRef{nodeID, pinID}]
	return c, ok
}

// Outgoing returns the connections leaving an output pin in declaration order.
func (g *Graph) Outgoing(nodeID, pinID string) []Connection {
	g.index()
	return g.outgoing[pinRef{nodeID, pinID}]
}

// Dependents returns the ids of nodes that read any output of nodeID,
// in connection order and without duplicates.
func (g *Graph) Dependents(nodeID string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range g.Connections {
		if c.SourceNodeID != nodeID {
			continue
		}
		if _, ok := seen[c.TargetNodeID]; ok {
			continue
		}
		seen[c.TargetNodeID] = struct{}{}
		out = append(out, c.TargetNodeID)
	}
	return out
}

// NodesOfType returns the nodes of a given type in graph order.
func (g *Graph) NodesOfType(nodeType string) []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if n != nil && n.Type == nodeType {
			out = append(out, n)
		}
	}
	return out
}

// InitialVariables returns a fresh copy of the declared variable values.
func (g *Graph) InitialVariables() map[string]any {
	vars := make(map[string]any, len(g.Variables))
	for _, v := range g.Variables {
		vars[v.Name] = v.Value
	}
	return vars
}

// RewirePins renames pins of one node inside every connection that touches
// it, e.g. after removing an entry from a dynamically sized node shifted the
// indexes of the entries behind it. It must not be called while the graph is
// being executed.
func (g *Graph) RewirePins(nodeID string, renames map[string]string) {
	if len(renames) == 0 {
		return
	}
	kept := g.Connections[:0]
	for _, c := range g.Connections {
		if c.TargetNodeID == nodeID {
			if to, ok := renames[c.TargetPinID]; ok {
				if to == "" {
					continue
				}
				c.TargetPinID = to
			}
		}
		if c.SourceNodeID == nodeID {
			if to, ok := renames[c.SourcePinID]; ok {
				if to == "" {
					continue
				}
				c.SourcePinID = to
			}
		}
		kept = append(kept, c)
	}
	g.Connections = kept
	g.indexOnce = sync.Once{}
}
