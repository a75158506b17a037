package data

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/specialistvlad/nodeflow/internal/ctxlog"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
)

// ObjectData is the stored configuration of a make-object node: one
// value[i] input per key.
type ObjectData struct {
	Keys []string `json:"keys"`
}

func readObject(n *graph.Node) (ObjectData, error) {
	var d ObjectData
	err := graph.DecodeData(n, &d)
	return d, err
}

// decodeObject treats malformed data as an object without entries.
func decodeObject(logger *slog.Logger, n *graph.Node) ObjectData {
	d, err := readObject(n)
	if err != nil {
		logger.Warn("Make-object data is malformed, using no entries.", "node", n.ID, "error", err)
		return ObjectData{}
	}
	return d
}

func objectPins(n *graph.Node) []graph.Pin {
	d := decodeObject(slog.Default(), n)
	pins := make([]graph.Pin, len(d.Keys))
	for i := range d.Keys {
		pins[i] = registry.DataIn(graph.IndexedPinID("value", i), graph.KindWildcard, false)
	}
	return pins
}

func makeObject(ctx context.Context, n *graph.Node, pinID string, h registry.Helpers) (any, error) {
	d := decodeObject(ctxlog.FromContext(ctx), n)
	out := make(map[string]any, len(d.Keys))
	for i, key := range d.Keys {
		if key == "" {
			continue
		}
		out[key] = h.ResolvePinValue(ctx, n, graph.IndexedPinID("value", i), nil)
	}
	return out, nil
}

// ResizeObject sets the number of key/value entries. New entries get empty
// keys; entries past size lose their connections and literals.
func ResizeObject(g *graph.Graph, nodeID string, size int) error {
	n, ok := g.Node(nodeID)
	if !ok {
		return fmt.Errorf("object node %q not found", nodeID)
	}
	if size < 0 {
		return fmt.Errorf("object size must not be negative, got %d", size)
	}
	d, err := readObject(n)
	if err != nil {
		return err
	}
	g.ResizeGroup(nodeID, "value", len(d.Keys), size)
	keys := make([]string, size)
	copy(keys, d.Keys)
	return graph.EncodeData(n, ObjectData{Keys: keys})
}

// RemoveObjectEntry deletes entry i. Later entries keep their connections
// under their new index.
func RemoveObjectEntry(g *graph.Graph, nodeID string, i int) error {
	n, ok := g.Node(nodeID)
	if !ok {
		return fmt.Errorf("object node %q not found", nodeID)
	}
	d, err := readObject(n)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(d.Keys) {
		return fmt.Errorf("object node %q has no entry %d", nodeID, i)
	}
	g.RemoveFromGroup(nodeID, "value", len(d.Keys), i)
	keys := append(append([]string{}, d.Keys[:i]...), d.Keys[i+1:]...)
	return graph.EncodeData(n, ObjectData{Keys: keys})
}
