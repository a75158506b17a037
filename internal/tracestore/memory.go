package tracestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/nodeflow/internal/trace"
)

// DefaultCapacity is how many traces a memory store keeps by default.
const DefaultCapacity = 1000

// Memory keeps the most recent traces in process. Once full, the oldest
// trace is evicted on every Save.
type Memory struct {
	mu       sync.RWMutex
	capacity int
	order    []string // oldest first
	traces   map[string]*trace.Trace
}

// NewMemory returns a store holding up to capacity traces.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{capacity: capacity, traces: make(map[string]*trace.Trace)}
}

// Save implements Store. Saving an execution id twice replaces the trace.
func (m *Memory) Save(_ context.Context, t *trace.Trace) error {
	if t == nil || t.ExecutionID == "" {
		return fmt.Errorf("tracestore: trace without execution id")
	}
	cp := *t
	cp.Steps = append([]trace.Step(nil), t.Steps...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.traces[t.ExecutionID]; !ok {
		m.order = append(m.order, t.ExecutionID)
	}
	m.traces[t.ExecutionID] = &cp
	for len(m.order) > m.capacity {
		delete(m.traces, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, executionID string) (*trace.Trace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.traces[executionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, executionID)
	}
	cp := *t
	cp.Steps = append([]trace.Step(nil), t.Steps...)
	return &cp, nil
}

// List implements Store.
func (m *Memory) List(_ context.Context, graphID string, limit int) ([]trace.Summary, error) {
	limit = listLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []trace.Summary
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		t := m.traces[m.order[i]]
		if graphID != "" && t.GraphID != graphID {
			continue
		}
		out = append(out, t.Summarize())
	}
	return out, nil
}

// Len returns how many traces are held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
