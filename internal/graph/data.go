package graph

import (
	"encoding/json"
	"fmt"
)

// DecodeData decodes a node's data bag into a typed struct. Node types with
// a schema use it instead of reading loosely-typed keys.
func DecodeData(n *Node, out any) error {
	if n == nil || len(n.Data) == 0 {
		return nil
	}
	raw, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("node %q: encoding data: %w", n.ID, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("node %q: decoding data: %w", n.ID, err)
	}
	return nil
}

// EncodeData stores a typed struct back into the node's data bag, keeping
// keys the struct does not know about.
func EncodeData(n *Node, in any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("node %q: encoding data: %w", n.ID, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("node %q: decoding data: %w", n.ID, err)
	}
	if n.Data == nil {
		n.Data = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		n.Data[k] = v
	}
	return nil
}
