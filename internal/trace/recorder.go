package trace

import (
	"maps"
	"sync"
	"time"
)

// Recorder appends steps for a single execution. The executing goroutine
// writes; debugger goroutines may read snapshots concurrently.
type Recorder struct {
	mu    sync.Mutex
	now   func() time.Time
	trace Trace
}

// NewRecorder starts a trace.
func NewRecorder(executionID, graphID, event string) *Recorder {
	return NewRecorderWithClock(executionID, graphID, event, time.Now)
}

// NewRecorderWithClock starts a trace using a custom clock.
func NewRecorderWithClock(executionID, graphID, event string, now func() time.Time) *Recorder {
	return &Recorder{
		now: now,
		trace: Trace{
			ExecutionID: executionID,
			GraphID:     graphID,
			Event:       event,
			StartedAt:   now(),
		},
	}
}

// Begin opens an execution step and returns its index.
func (r *Recorder) Begin(nodeID, nodeType string, inputs map[string]any) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := len(r.trace.Steps)
	r.trace.Steps = append(r.trace.Steps, Step{
		Index:     idx,
		Kind:      KindExecution,
		NodeID:    nodeID,
		NodeType:  nodeType,
		Inputs:    maps.Clone(inputs),
		Status:    StatusExecuted,
		StartedAt: r.now(),
	})
	return idx
}

// Complete closes an execution step with the node's outputs.
func (r *Recorder) Complete(idx int, outputs map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= len(r.trace.Steps) {
		return
	}
	s := &r.trace.Steps[idx]
	s.Outputs = maps.Clone(outputs)
	s.Duration = r.now().Sub(s.StartedAt)
}

// Fail marks an execution step as errored.
func (r *Recorder) Fail(idx int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= len(r.trace.Steps) {
		return
	}
	s := &r.trace.Steps[idx]
	s.Status = StatusError
	if err != nil {
		s.Error = err.Error()
	}
	if s.Duration == 0 {
		s.Duration = r.now().Sub(s.StartedAt)
	}
}

// Traversal records a followed exec connection.
func (r *Recorder) Traversal(fromNodeID, fromPinID, toNodeID, toPinID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.Steps = append(r.trace.Steps, Step{
		Index:      len(r.trace.Steps),
		Kind:       KindTraversal,
		FromNodeID: fromNodeID,
		FromPinID:  fromPinID,
		ToNodeID:   toNodeID,
		ToPinID:    toPinID,
		StartedAt:  r.now(),
	})
}

// Steps returns a copy of the steps recorded so far.
func (r *Recorder) Steps() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Step(nil), r.trace.Steps...)
}

// Executed returns the number of execution steps recorded so far.
func (r *Recorder) Executed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.trace.Steps {
		if s.Kind == KindExecution {
			n++
		}
	}
	return n
}

// Finish seals the trace. The recorder must not be used afterwards.
func (r *Recorder) Finish(status RunStatus, err error) *Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.trace
	t.Steps = append([]Step(nil), r.trace.Steps...)
	t.Status = status
	if err != nil {
		t.Error = err.Error()
	}
	t.FinishedAt = r.now()
	return &t
}
