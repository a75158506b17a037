package flow

import (
	"fmt"

	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
)

const (
	defaultSequenceOutputs = 2
	maxSequenceOutputs     = 32
)

// SequenceData is the stored configuration of a sequence node.
type SequenceData struct {
	Outputs int `json:"outputs"`
}

// SequenceSize returns the number of then[i] outputs of a sequence node.
func SequenceSize(n *graph.Node) int {
	d := SequenceData{Outputs: defaultSequenceOutputs}
	if err := graph.DecodeData(n, &d); err != nil {
		return defaultSequenceOutputs
	}
	return min(max(d.Outputs, 1), maxSequenceOutputs)
}

func sequencePins(n *graph.Node) []graph.Pin {
	size := SequenceSize(n)
	pins := make([]graph.Pin, size)
	for i := range size {
		pins[i] = registry.ExecOut(graph.IndexedPinID("then", i))
	}
	return pins
}

// ResizeSequence sets the number of outputs of a sequence node. Connections
// leaving outputs that no longer exist are dropped.
func ResizeSequence(g *graph.Graph, nodeID string, size int) error {
	n, ok := g.Node(nodeID)
	if !ok {
		return fmt.Errorf("sequence node %q not found", nodeID)
	}
	if size < 1 || size > maxSequenceOutputs {
		return fmt.Errorf("sequence size must be between 1 and %d, got %d", maxSequenceOutputs, size)
	}
	g.ResizeGroup(nodeID, "then", SequenceSize(n), size)
	return graph.EncodeData(n, SequenceData{Outputs: size})
}
