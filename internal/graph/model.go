package graph

import (
	"sync"
)

// Direction tells whether a pin accepts or produces a value.
type Direction int

const (
	// Input pins receive values or control flow.
	Input Direction = iota
	// Output pins produce values or continue control flow.
	Output
)

// String returns the short form used in override keys ("in" / "out").
func (d Direction) String() string {
	if d == Output {
		return "out"
	}
	return "in"
}

// PinKind is the type of value a pin carries.
type PinKind string

const (
	KindExec     PinKind = "Exec"
	KindString   PinKind = "String"
	KindNumber   PinKind = "Number"
	KindBoolean  PinKind = "Boolean"
	KindObject   PinKind = "Object"
	KindArray    PinKind = "Array"
	KindWildcard PinKind = "Wildcard"
)

// Pin is declared by a node type definition. Instances of a node share the
// declaration unless the type derives its pins from the node's data.
type Pin struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Direction Direction `json:"direction"`
	Kind      PinKind   `json:"kind"`
	Required  bool      `json:"required,omitempty"`
}

// IsExec reports whether the pin carries control flow.
func (p Pin) IsExec() bool {
	return p.Kind == KindExec
}

// Position is where the editor placed a node. The engine never reads it.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a single vertex of a graph.
type Node struct {
	ID       string         `json:"id" yaml:"id"`
	Type     string         `json:"type" yaml:"type"`
	Position Position       `json:"position" yaml:"position"`
	Data     map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// Literal returns the value stored for pinID in the node's data.
func (n *Node) Literal(pinID string) (any, bool) {
	if n == nil || n.Data == nil {
		return nil, false
	}
	v, ok := n.Data[pinID]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Connection is a directed edge from an output pin to an input pin.
type Connection struct {
	SourceNodeID string `json:"sourceNodeId" yaml:"sourceNodeId"`
	SourcePinID  string `json:"sourcePinId" yaml:"sourcePinId"`
	TargetNodeID string `json:"targetNodeId" yaml:"targetNodeId"`
	TargetPinID  string `json:"targetPinId" yaml:"targetPinId"`
}

// Variable is a named value that lives for the duration of one execution.
// Value holds the initial value every execution starts from.
type Variable struct {
	Name  string  `json:"name" yaml:"name"`
	Kind  PinKind `json:"type" yaml:"type"`
	Value any     `json:"value,omitempty" yaml:"value,omitempty"`
}

// Graph is an ordered set of nodes plus the connections between them.
type Graph struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes       []*Node      `json:"nodes" yaml:"nodes"`
	Connections []Connection `json:"connections" yaml:"connections"`
	Variables   []Variable   `json:"variables,omitempty" yaml:"variables,omitempty"`

	indexOnce sync.Once
	byID      map[string]*Node
	incoming  map[pinRef]Connection
	outgoing  map[pinRef][]Connection
}

type pinRef struct {
	nodeID string
	pinID  string
}

// User identifies whoever caused a trigger to fire.
type User struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
}

// Event is the payload of one trigger firing, e.g. a chat command.
type Event struct {
	// Name selects the trigger nodes, e.g. "command" or "chat".
	Name string         `json:"name"`
	User User           `json:"user"`
	Args map[string]any `json:"args,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}
