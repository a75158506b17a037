package testutil

import (
	"github.com/specialistvlad/nodeflow/internal/graph"
)

// GraphBuilder assembles graphs for tests without the noise of literal
// struct construction.
type GraphBuilder struct {
	id    string
	nodes []*graph.Node
	conns []graph.Connection
	vars  []graph.Variable
}

// NewGraph starts a builder for a graph with the given id.
func NewGraph(id string) *GraphBuilder {
	return &GraphBuilder{id: id}
}

// Node adds a node. data may be nil.
func (b *GraphBuilder) Node(id, nodeType string, data map[string]any) *GraphBuilder {
	b.nodes = append(b.nodes, &graph.Node{ID: id, Type: nodeType, Data: data})
	return b
}

// Connect links source.sourcePin to target.targetPin.
func (b *GraphBuilder) Connect(source, sourcePin, target, targetPin string) *GraphBuilder {
	b.conns = append(b.conns, graph.Connection{
		SourceNodeID: source,
		SourcePinID:  sourcePin,
		TargetNodeID: target,
		TargetPinID:  targetPin,
	})
	return b
}

// Exec is Connect for the common "exec" -> "exec" case.
func (b *GraphBuilder) Exec(source, sourcePin, target string) *GraphBuilder {
	return b.Connect(source, sourcePin, target, "exec")
}

// Var declares a graph variable.
func (b *GraphBuilder) Var(name string, kind graph.PinKind, value any) *GraphBuilder {
	b.vars = append(b.vars, graph.Variable{Name: name, Kind: kind, Value: value})
	return b
}

// Build returns the indexed graph.
func (b *GraphBuilder) Build() *graph.Graph {
	return graph.New(b.id, b.nodes, b.conns, b.vars...)
}
