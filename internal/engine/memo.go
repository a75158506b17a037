package engine

import (
	"sync"
)

type pinKey struct {
	nodeID string
	pinID  string
}

func (k pinKey) String() string { return k.nodeID + ":" + k.pinID }

// Memo caches output pin values for one execution.
type Memo struct {
	mu     sync.RWMutex
	values map[pinKey]any
}

// NewMemo returns an empty memo.
func NewMemo() *Memo {
	return &Memo{values: make(map[pinKey]any)}
}

// Get returns the cached value of nodeID:pinID.
func (m *Memo) Get(nodeID, pinID string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[pinKey{nodeID, pinID}]
	return v, ok
}

// Set caches the value of nodeID:pinID.
func (m *Memo) Set(nodeID, pinID string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[pinKey{nodeID, pinID}] = v
}

// Forget drops every cached pin of nodeID.
func (m *Memo) Forget(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.values {
		if k.nodeID == nodeID {
			delete(m.values, k)
		}
	}
}

// Len returns the number of cached pins.
func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Snapshot returns a copy of the cache keyed "nodeID:pinID".
func (m *Memo) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		out[k.String()] = v
	}
	return out
}
