// Package trace records every node visit of one execution so it can be
// inspected live by a debugger or replayed after the fact.
package trace

import (
	"time"
)

// Kind distinguishes node executions from followed exec edges.
type Kind string

const (
	KindExecution Kind = "execution"
	KindTraversal Kind = "traversal"
)

// StepStatus is the outcome of one execution step.
type StepStatus string

const (
	StatusExecuted StepStatus = "executed"
	StatusError    StepStatus = "error"
)

// RunStatus is the outcome of a whole execution.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunStopped   RunStatus = "stopped"
)

// Step is one entry of a trace. Execution steps carry the node and its
// resolved inputs and outputs; traversal steps carry the followed edge.
type Step struct {
	Index int  `json:"index"`
	Kind  Kind `json:"kind"`

	NodeID   string         `json:"nodeId,omitempty"`
	NodeType string         `json:"nodeType,omitempty"`
	Inputs   map[string]any `json:"inputs,omitempty"`
	Outputs  map[string]any `json:"outputs,omitempty"`
	Status   StepStatus     `json:"status,omitempty"`
	Error    string         `json:"error,omitempty"`

	FromNodeID string `json:"fromNodeId,omitempty"`
	FromPinID  string `json:"fromPinId,omitempty"`
	ToNodeID   string `json:"toNodeId,omitempty"`
	ToPinID    string `json:"toPinId,omitempty"`

	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// Trace is the finished record of one execution.
type Trace struct {
	ExecutionID string    `json:"executionId"`
	GraphID     string    `json:"graphId"`
	Event       string    `json:"event"`
	Status      RunStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Steps       []Step    `json:"steps"`
}

// Frame is one position of the playback scrubber.
type Frame struct {
	Number int  `json:"number"`
	Total  int  `json:"total"`
	Step   Step `json:"step"`
}

// Playback returns the execution steps only, numbered "N of M" for a human
// stepping through the trace.
func (t *Trace) Playback() []Frame {
	var executed []Step
	for _, s := range t.Steps {
		if s.Kind == KindExecution {
			executed = append(executed, s)
		}
	}
	frames := make([]Frame, len(executed))
	for i, s := range executed {
		frames[i] = Frame{Number: i + 1, Total: len(executed), Step: s}
	}
	return frames
}

// ExecutedNodes returns node ids in execution order.
func (t *Trace) ExecutedNodes() []string {
	var ids []string
	for _, s := range t.Steps {
		if s.Kind == KindExecution {
			ids = append(ids, s.NodeID)
		}
	}
	return ids
}

// StepsFor returns the execution steps of one node.
func (t *Trace) StepsFor(nodeID string) []Step {
	var steps []Step
	for _, s := range t.Steps {
		if s.Kind == KindExecution && s.NodeID == nodeID {
			steps = append(steps, s)
		}
	}
	return steps
}

// Summary is the listing form of a trace.
type Summary struct {
	ExecutionID string    `json:"executionId"`
	GraphID     string    `json:"graphId"`
	Event       string    `json:"event"`
	Status      RunStatus `json:"status"`
	StartedAt   time.Time `json:"startedAt"`
	Steps       int       `json:"steps"`
}

// Summarize returns the listing form of t.
func (t *Trace) Summarize() Summary {
	return Summary{
		ExecutionID: t.ExecutionID,
		GraphID:     t.GraphID,
		Event:       t.Event,
		Status:      t.Status,
		StartedAt:   t.StartedAt,
		Steps:       len(t.Playback()),
	}
}
