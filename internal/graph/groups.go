package graph

// Some node types repeat a pin per configured entry, e.g. the outputs of a
// sequence or the fields of an object builder. The helpers below keep
// connections and literals attached to the right entry when the group
// changes size. They must not be used while the graph is being executed.

// ResizeGroup changes a group of name[i] pins on nodeID from `from` to `to`
// entries. Connections and literals of entries that no longer exist are
// dropped.
func (g *Graph) ResizeGroup(nodeID, name string, from, to int) {
	if to >= from {
		return
	}
	renames := make(map[string]string, from-to)
	for i := max(to, 0); i < from; i++ {
		renames[IndexedPinID(name, i)] = ""
	}
	g.applyGroupRenames(nodeID, renames)
}

// RemoveFromGroup deletes entry i of a group of count name[i] pins. Entries
// behind it move down by one and keep their connections and literals.
func (g *Graph) RemoveFromGroup(nodeID, name string, count, i int) {
	if i < 0 || i >= count {
		return
	}
	renames := map[string]string{IndexedPinID(name, i): ""}
	for j := i + 1; j < count; j++ {
		renames[IndexedPinID(name, j)] = IndexedPinID(name, j-1)
	}
	g.applyGroupRenames(nodeID, renames)
}

func (g *Graph) applyGroupRenames(nodeID string, renames map[string]string) {
	g.RewirePins(nodeID, renames)
	n, ok := g.Node(nodeID)
	if !ok || n.Data == nil {
		return
	}
	moved := make(map[string]any)
	for from, to := range renames {
		v, ok := n.Data[from]
		if !ok {
			continue
		}
		delete(n.Data, from)
		if to != "" {
			moved[to] = v
		}
	}
	for k, v := range moved {
		n.Data[k] = v
	}
}
