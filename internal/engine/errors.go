package engine

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStopped is returned when an execution is cancelled before it
	// finishes, for example by a debug stop command.
	ErrStopped = errors.New("execution stopped")
	// ErrStepLimit is returned when an execution visits more nodes than the
	// engine allows. Graphs with exec cycles end this way.
	ErrStepLimit = errors.New("step limit exceeded")
	// ErrNoTrigger is returned when the graph has no node listening for the
	// event.
	ErrNoTrigger = errors.New("no trigger node for event")
	// ErrNotExecutable is returned when an exec connection leads to a node
	// whose type cannot be executed.
	ErrNotExecutable = errors.New("node type is not executable")
	// ErrPanic wraps a recovered panic from a node implementation.
	ErrPanic = errors.New("node panicked")
)

// NodeError attributes an execution failure to a node.
type NodeError struct {
	NodeID   string
	NodeType string
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.NodeType, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// isStop reports whether err means the execution was cancelled rather than
// failed.
func isStop(err error) bool {
	return errors.Is(err, ErrStopped) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
