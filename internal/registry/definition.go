package registry

import (
	"context"

	"github.com/specialistvlad/nodeflow/internal/agent"
	"github.com/specialistvlad/nodeflow/internal/graph"
)

// Category groups node types in the editor palette.
type Category string

const (
	CategoryEvent     Category = "event"
	CategoryFlow      Category = "flow"
	CategoryData      Category = "data"
	CategoryLogic     Category = "logic"
	CategoryMath      Category = "math"
	CategoryString    Category = "string"
	CategoryVariable  Category = "variable"
	CategoryAction    Category = "action"
	CategoryConverter Category = "converter"
)

// Helpers is what the engine hands to executors and evaluators.
type Helpers interface {
	// ResolvePinValue returns the effective value of an input pin: the
	// upstream node's output when connected, else the node's literal, else
	// fallback.
	ResolvePinValue(ctx context.Context, node *graph.Node, pinID string, fallback any) any
	// Traverse continues execution along every connection leaving the named
	// exec output pin. Evaluators must never call it.
	Traverse(ctx context.Context, node *graph.Node, execPinID string) error
	// SetOutput publishes the value of one of the node's output data pins.
	SetOutput(node *graph.Node, pinID string, value any)
	// Output reads a value previously published for nodeID:pinID.
	Output(nodeID, pinID string) (any, bool)
	// Invalidate forgets the cached values of every pure data node that
	// depends on nodeID, so that they are evaluated again. Loop nodes call
	// it between iterations.
	Invalidate(nodeID string)
	Event() graph.Event
	Variable(name string) (any, bool)
	SetVariable(name string, value any)
	Agent() agent.Adapter
}

// ExecuteFunc runs an action or flow node.
type ExecuteFunc func(ctx context.Context, node *graph.Node, h Helpers) error

// EvaluateFunc produces the value of one output data pin.
type EvaluateFunc func(ctx context.Context, node *graph.Node, pinID string, h Helpers) (any, error)

// PinsFunc derives a node's pins from its stored data.
type PinsFunc func(node *graph.Node) []graph.Pin

// Static returns a PinsFunc that always yields the same pins.
func Static(pins ...graph.Pin) PinsFunc {
	return func(*graph.Node) []graph.Pin { return pins }
}

// Definition is the behaviour registered for one node type.
type Definition struct {
	Type        string
	Category    Category
	Label       string
	Description string
	// Trigger is the event name that starts executions at nodes of this
	// type. Only event nodes set it.
	Trigger string
	// Volatile evaluators read state that changes during an execution
	// (variables). Their results, and anything computed from them, are
	// never memoized.
	Volatile bool

	Inputs  PinsFunc
	Outputs PinsFunc

	Execute  ExecuteFunc
	Evaluate EvaluateFunc
}

// InputPins returns the input pins of a node of this type.
func (d *Definition) InputPins(n *graph.Node) []graph.Pin {
	if d.Inputs == nil {
		return nil
	}
	return d.Inputs(n)
}

// OutputPins returns the output pins of a node of this type.
func (d *Definition) OutputPins(n *graph.Node) []graph.Pin {
	if d.Outputs == nil {
		return nil
	}
	return d.Outputs(n)
}

// IsData reports whether nodes of this type are pure data nodes.
func (d *Definition) IsData() bool {
	return d.Execute == nil && d.Evaluate != nil
}

// Pin constructors used by node modules.

func ExecIn(id string) graph.Pin {
	return graph.Pin{ID: id, Direction: graph.Input, Kind: graph.KindExec}
}

func ExecOut(id string) graph.Pin {
	return graph.Pin{ID: id, Direction: graph.Output, Kind: graph.KindExec}
}

func DataIn(id string, kind graph.PinKind, required bool) graph.Pin {
	return graph.Pin{ID: id, Direction: graph.Input, Kind: kind, Required: required}
}

func DataOut(id string, kind graph.PinKind) graph.Pin {
	return graph.Pin{ID: id, Direction: graph.Output, Kind: kind}
}
