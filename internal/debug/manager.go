package debug

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/specialistvlad/nodeflow/internal/graph"
)

// ErrForbidden is returned when a user may not debug a graph.
var ErrForbidden = errors.New("not allowed to debug this graph")

// Authorizer decides who may observe a graph.
type Authorizer interface {
	CanDebug(user graph.User, graphID string) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(user graph.User, graphID string) bool

func (f AuthorizerFunc) CanDebug(user graph.User, graphID string) bool { return f(user, graphID) }

// AllowAll lets everyone debug every graph.
var AllowAll = AuthorizerFunc(func(graph.User, string) bool { return true })

// Manager owns one Hub per graph. Hubs are created on first use and live
// as long as the manager, so breakpoints survive observers reconnecting.
type Manager struct {
	logger *slog.Logger
	auth   Authorizer

	mu   sync.Mutex
	hubs map[string]*Hub
}

// NewManager returns a manager. A nil authorizer allows everyone.
func NewManager(logger *slog.Logger, auth Authorizer) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if auth == nil {
		auth = AllowAll
	}
	return &Manager{logger: logger, auth: auth, hubs: make(map[string]*Hub)}
}

// Hub returns the hub of graphID, creating it if needed.
func (m *Manager) Hub(graphID string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hubs[graphID]
	if !ok {
		h = NewHub(graphID, m.logger)
		m.hubs[graphID] = h
	}
	return h
}

// Lookup returns the hub of graphID if one exists.
func (m *Manager) Lookup(graphID string) (*Hub, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hubs[graphID]
	return h, ok
}

// Watched reports whether anyone observes graphID.
func (m *Manager) Watched(graphID string) bool {
	h, ok := m.Lookup(graphID)
	return ok && h.Observers() > 0
}

// Join attaches o to the hub of graphID after checking it may debug it.
func (m *Manager) Join(graphID string, o Observer) (State, error) {
	if !m.auth.CanDebug(o.User(), graphID) {
		m.logger.Warn("Observer rejected.", "graph", graphID, "user", o.User().Username)
		return State{}, ErrForbidden
	}
	return m.Hub(graphID).Join(o), nil
}

// Leave detaches an observer from one graph.
func (m *Manager) Leave(graphID, observerID string) {
	if h, ok := m.Lookup(graphID); ok {
		h.Leave(observerID)
	}
}

// LeaveAll detaches an observer from every graph, e.g. on disconnect.
func (m *Manager) LeaveAll(observerID string) {
	m.mu.Lock()
	hubs := make([]*Hub, 0, len(m.hubs))
	for _, h := range m.hubs {
		hubs = append(hubs, h)
	}
	m.mu.Unlock()
	for _, h := range hubs {
		h.Leave(observerID)
	}
}

// StopAll stops every active session, e.g. on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	hubs := make([]*Hub, 0, len(m.hubs))
	for _, h := range m.hubs {
		hubs = append(hubs, h)
	}
	m.mu.Unlock()
	for _, h := range hubs {
		h.StopActive()
	}
}
