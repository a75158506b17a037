package debug

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/google/uuid"
	"github.com/specialistvlad/nodeflow/internal/ctxlog"
	"github.com/specialistvlad/nodeflow/internal/engine"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/trace"
)

// Run executes g as a debug session. It fails fast with ErrNoObservers or
// ErrSessionBusy; callers that want to queue use WaitIdle and retry. A
// stopped session returns a nil trace and an error wrapping
// engine.ErrStopped; otherwise the trace is returned even when err is
// non-nil.
func (h *Hub) Run(ctx context.Context, e *engine.Engine, g *graph.Graph, ev graph.Event, opts ...engine.ExecutionOption) (*trace.Trace, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &session{
		id:     uuid.NewString(),
		hub:    h,
		cancel: cancel,
		resume: make(chan struct{}, 1),
		done:   make(chan struct{}),
		status: StatusRunning,
	}

	h.mu.Lock()
	switch {
	case len(h.observers) == 0:
		h.mu.Unlock()
		return nil, ErrNoObservers
	case h.session != nil:
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s", ErrSessionBusy, h.session.id)
	}
	s.exec = e.NewExecution(g, ev, append(opts, engine.WithHook(s))...)
	h.session = s
	h.mu.Unlock()

	logger := h.logger.With("session", s.id, "execution", s.exec.ID())
	logger.Info("🐞 Debug session started.", "event", ev.Name, "user", ev.User.Username)
	h.broadcast(EventState, h.State(), "")

	tr, err := s.exec.Run(ctxlog.WithLogger(ctx, logger))

	h.mu.Lock()
	stopped := s.status == StatusStopped
	if !stopped {
		s.status = StatusCompleted
		if errors.Is(err, engine.ErrStopped) || errors.Is(err, context.Canceled) {
			stopped = true
			s.status = StatusStopped
		}
	}
	h.session = nil
	close(s.done)
	h.mu.Unlock()

	if stopped {
		logger.Info("Debug session stopped, trace discarded.")
		if err == nil {
			err = engine.ErrStopped
		}
		if !errors.Is(err, engine.ErrStopped) {
			err = fmt.Errorf("%w: %w", engine.ErrStopped, err)
		}
		h.broadcast(EventStopped, StoppedEvent{SessionID: s.id}, "")
		return nil, err
	}

	if err != nil {
		evt := ErrorEvent{SessionID: s.id, Error: err.Error()}
		var nerr *engine.NodeError
		if errors.As(err, &nerr) {
			evt.NodeID = nerr.NodeID
		}
		h.broadcast(EventError, evt, "")
	}
	logger.Info("Debug session completed.", "status", tr.Status)
	h.broadcast(EventCompleted, CompletedEvent{SessionID: s.id, Trace: tr}, "")
	return tr, err
}

// WaitIdle blocks until no session occupies the hub or ctx ends.
func (h *Hub) WaitIdle(ctx context.Context) error {
	for {
		h.mu.Lock()
		s := h.session
		h.mu.Unlock()
		if s == nil {
			return nil
		}
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// beforeNode runs on the executing goroutine before every executor.
func (h *Hub) beforeNode(ctx context.Context, s *session, x *engine.Execution, node *graph.Node) error {
	h.mu.Lock()
	if s.status == StatusStopped {
		h.mu.Unlock()
		return engine.ErrStopped
	}
	var bp *Breakpoint
	if b, ok := h.breakpoints[node.ID]; ok {
		copied := *b
		bp = &copied
	}
	h.mu.Unlock()
	if bp == nil {
		return nil
	}

	logger := ctxlog.FromContext(ctx).With("node", node.ID)
	hit, err := bp.matches(x.Scope())
	if err != nil {
		logger.Warn("Breakpoint condition failed, not pausing.", "condition", bp.Condition, "error", err)
		return nil
	}
	if !hit {
		return nil
	}

	inputs := x.ResolveInputs(ctx, node)
	if inputs == nil {
		inputs = map[string]any{}
	}
	h.mu.Lock()
	if s.status == StatusStopped {
		h.mu.Unlock()
		return engine.ErrStopped
	}
	s.status = StatusPaused
	s.pause = &Pause{NodeID: node.ID, NodeType: node.Type, Inputs: inputs}
	h.mu.Unlock()

	logger.Info("⏸️ Paused at breakpoint.")
	h.broadcast(EventPaused, PausedEvent{
		SessionID:     s.id,
		ExecutionID:   x.ID(),
		NodeID:        node.ID,
		NodeType:      node.Type,
		Inputs:        maps.Clone(inputs),
		ExecutedSteps: x.Steps(),
	}, "")

	select {
	case <-s.resume:
		logger.Info("▶️ Resumed.")
		return nil
	case <-ctx.Done():
		return engine.ErrStopped
	}
}

// Continue resumes a paused session. Overrides are applied before the
// paused node runs and stay in effect for the rest of the execution. When
// several observers continue at once, the first wins and the others get
// ErrNotPaused.
func (h *Hub) Continue(sessionID string, overrides map[string]any, by graph.User) error {
	h.mu.Lock()
	s, err := h.sessionLocked(sessionID)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	if s.status != StatusPaused {
		h.mu.Unlock()
		return ErrNotPaused
	}
	if err := s.exec.Overrides().Apply(overrides); err != nil {
		h.mu.Unlock()
		return err
	}
	for key := range overrides {
		if k, err := engine.ParseOverrideKey(key); err == nil {
			s.exec.Refresh(k)
		}
	}
	nodeID := s.pause.NodeID
	s.status = StatusRunning
	s.pause = nil
	h.mu.Unlock()

	s.resume <- struct{}{}
	h.broadcast(EventResumed, ResumedEvent{SessionID: s.id, NodeID: nodeID, Overrides: overrides, By: by}, "")
	return nil
}

// Stop cancels a session. No further node runs and its trace is discarded.
// A node already executing is not interrupted.
func (h *Hub) Stop(sessionID string) error {
	h.mu.Lock()
	s, err := h.sessionLocked(sessionID)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	if s.status == StatusStopped {
		h.mu.Unlock()
		return nil
	}
	s.status = StatusStopped
	s.pause = nil
	s.cancel()
	h.mu.Unlock()

	h.logger.Info("⏹️ Debug session stop requested.", "session", sessionID)
	return nil
}

// UpdateValue edits a value of the paused session without resuming it. key
// is "<nodeId>.in.<pinId>" or "<nodeId>.out.<pinId>".
func (h *Hub) UpdateValue(key string, value any, by graph.User) error {
	k, err := engine.ParseOverrideKey(key)
	if err != nil {
		return err
	}

	h.mu.Lock()
	s := h.session
	if s == nil || s.status != StatusPaused {
		h.mu.Unlock()
		return ErrNotPaused
	}
	s.exec.Overrides().Set(k, value)
	s.exec.Refresh(k)
	if k.Direction == graph.Input && k.NodeID == s.pause.NodeID {
		s.pause.Inputs[k.PinID] = value
	}
	id := s.id
	h.mu.Unlock()

	h.broadcast(EventValueUpdated, ValueUpdatedEvent{SessionID: id, Key: k.String(), Value: value, By: by}, "")
	return nil
}

// StopActive stops whatever session is active. It is a no-op when idle.
func (h *Hub) StopActive() {
	h.mu.Lock()
	s := h.session
	h.mu.Unlock()
	if s != nil {
		_ = h.Stop(s.id)
	}
}

func (h *Hub) sessionLocked(sessionID string) (*session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrUnknownSession)
	}
	if h.session == nil || h.session.id != sessionID {
		return nil, fmt.Errorf("%w %q", ErrUnknownSession, sessionID)
	}
	return h.session, nil
}
