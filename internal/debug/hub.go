package debug

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/specialistvlad/nodeflow/internal/engine"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/trace"
)

var (
	// ErrSessionBusy is returned by Run while another session of the same
	// graph is active.
	ErrSessionBusy = errors.New("a debug session is already active for this graph")
	// ErrNoObservers is returned by Run when nobody is watching the graph.
	ErrNoObservers = errors.New("no observers attached")
	// ErrNotPaused is returned by commands that need a paused session.
	ErrNotPaused = errors.New("session is not paused")
	// ErrUnknownSession is returned for a session id that is not active.
	ErrUnknownSession = errors.New("unknown session")
	// ErrUnknownBreakpoint is returned for a node without a breakpoint.
	ErrUnknownBreakpoint = errors.New("no breakpoint on node")
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
)

type session struct {
	id     string
	hub    *Hub
	exec   *engine.Execution
	cancel context.CancelFunc
	resume chan struct{}
	// done is closed once the session no longer occupies the hub.
	done chan struct{}

	// Guarded by hub.mu.
	status Status
	pause  *Pause
}

// BeforeNode implements engine.BeforeNodeHook.
func (s *session) BeforeNode(ctx context.Context, x *engine.Execution, node *graph.Node) error {
	return s.hub.beforeNode(ctx, s, x, node)
}

// Hub coordinates debugging of one graph.
type Hub struct {
	graphID string
	logger  *slog.Logger

	mu          sync.Mutex
	breakpoints map[string]*Breakpoint
	observers   []Observer
	session     *session
}

// NewHub returns an idle hub for graphID.
func NewHub(graphID string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		graphID:     graphID,
		logger:      logger.With("graph", graphID),
		breakpoints: make(map[string]*Breakpoint),
	}
}

// GraphID returns the graph this hub debugs.
func (h *Hub) GraphID() string { return h.graphID }

// broadcast sends to every observer except skip. It must be called without
// holding h.mu.
func (h *Hub) broadcast(event string, payload any, skip string) {
	h.mu.Lock()
	targets := slices.Clone(h.observers)
	h.mu.Unlock()
	for _, o := range targets {
		if o.ID() != skip {
			o.Send(event, payload)
		}
	}
}

// Join attaches an observer and sends it the current state. Joining twice
// with the same id replaces the earlier connection.
func (h *Hub) Join(o Observer) State {
	h.mu.Lock()
	h.observers = slices.DeleteFunc(h.observers, func(e Observer) bool { return e.ID() == o.ID() })
	h.observers = append(h.observers, o)
	state := h.stateLocked()
	h.mu.Unlock()

	h.logger.Info("Observer joined.", "observer", o.ID(), "user", o.User().Username)
	o.Send(EventState, state)
	h.broadcast(EventUserJoined, o.User(), o.ID())
	return state
}

// Leave detaches an observer. When the last observer leaves, the active
// session is stopped. It reports whether the observer was attached.
func (h *Hub) Leave(observerID string) bool {
	h.mu.Lock()
	var left Observer
	h.observers = slices.DeleteFunc(h.observers, func(e Observer) bool {
		if e.ID() == observerID {
			left = e
			return true
		}
		return false
	})
	var orphan *session
	if left != nil && len(h.observers) == 0 && h.session != nil {
		orphan = h.session
	}
	h.mu.Unlock()

	if left == nil {
		return false
	}
	h.logger.Info("Observer left.", "observer", observerID, "user", left.User().Username)
	h.broadcast(EventUserLeft, left.User(), "")
	if orphan != nil {
		h.logger.Info("Last observer left, stopping session.", "session", orphan.id)
		_ = h.Stop(orphan.id)
	}
	return true
}

// Has reports whether observerID is attached.
func (h *Hub) Has(observerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.ContainsFunc(h.observers, func(o Observer) bool { return o.ID() == observerID })
}

// Observers returns the number of attached observers.
func (h *Hub) Observers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// SetBreakpoint adds or replaces the breakpoint on nodeID. A condition that
// does not compile is kept, marked invalid, and never matches.
func (h *Hub) SetBreakpoint(nodeID, condition string) Breakpoint {
	bp := newBreakpoint(nodeID, condition)
	if bp.Invalid != "" {
		h.logger.Warn("Breakpoint condition is invalid and will never match.", "node", nodeID, "condition", condition, "error", bp.Invalid)
	}
	h.mu.Lock()
	h.breakpoints[nodeID] = bp
	h.mu.Unlock()

	h.logger.Debug("Breakpoint set.", "node", nodeID, "condition", bp.Condition)
	h.broadcast(EventBreakpointAdded, *bp, "")
	return *bp
}

// RemoveBreakpoint deletes the breakpoint on nodeID.
func (h *Hub) RemoveBreakpoint(nodeID string) error {
	h.mu.Lock()
	_, ok := h.breakpoints[nodeID]
	delete(h.breakpoints, nodeID)
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w %s", ErrUnknownBreakpoint, nodeID)
	}
	h.broadcast(EventBreakpointRemoved, BreakpointRemovedEvent{NodeID: nodeID}, "")
	return nil
}

// ToggleBreakpoint enables or disables the breakpoint on nodeID.
func (h *Hub) ToggleBreakpoint(nodeID string, enabled bool) (Breakpoint, error) {
	h.mu.Lock()
	bp, ok := h.breakpoints[nodeID]
	if ok {
		bp.Enabled = enabled
	}
	var snapshot Breakpoint
	if ok {
		snapshot = *bp
	}
	h.mu.Unlock()
	if !ok {
		return Breakpoint{}, fmt.Errorf("%w %s", ErrUnknownBreakpoint, nodeID)
	}
	h.broadcast(EventBreakpointToggled, snapshot, "")
	return snapshot, nil
}

// Breakpoints returns the breakpoints ordered by node id.
func (h *Hub) Breakpoints() []Breakpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.breakpointsLocked()
}

func (h *Hub) breakpointsLocked() []Breakpoint {
	out := make([]Breakpoint, 0, len(h.breakpoints))
	for _, id := range slices.Sorted(maps.Keys(h.breakpoints)) {
		out = append(out, *h.breakpoints[id])
	}
	return out
}

// State returns what a newly joined observer needs to render the session.
func (h *Hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stateLocked()
}

func (h *Hub) stateLocked() State {
	users := make([]graph.User, len(h.observers))
	for i, o := range h.observers {
		users[i] = o.User()
	}
	st := State{
		GraphID:        h.graphID,
		Breakpoints:    h.breakpointsLocked(),
		ConnectedUsers: users,
	}
	if s := h.session; s != nil {
		info := &SessionInfo{
			SessionID:     s.id,
			Status:        s.status,
			ExecutedSteps: []trace.Step{},
		}
		if s.exec != nil {
			info.ExecutionID = s.exec.ID()
			info.ExecutedSteps = s.exec.Steps()
		}
		if s.pause != nil {
			p := *s.pause
			p.Inputs = maps.Clone(s.pause.Inputs)
			info.Paused = &p
		}
		st.ActiveExecution = info
	}
	return st
}

// Active reports whether a session is running or paused.
func (h *Hub) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session != nil
}
