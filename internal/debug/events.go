package debug

import (
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/trace"
)

// Server to observer events.
const (
	EventState             = "debug:state"
	EventBreakpointAdded   = "debug:breakpoint-added"
	EventBreakpointRemoved = "debug:breakpoint-removed"
	EventBreakpointToggled = "debug:breakpoint-toggled"
	EventPaused            = "debug:paused"
	EventResumed           = "debug:resumed"
	EventValueUpdated      = "debug:value-updated"
	EventCompleted         = "debug:completed"
	EventStopped           = "debug:stopped"
	EventError             = "debug:error"
	EventUserJoined        = "debug:user-joined"
	EventUserLeft          = "debug:user-left"
)

// Observer is a connected debugger client.
type Observer interface {
	// ID is unique per connection.
	ID() string
	User() graph.User
	// Send delivers an event. It must not block on the client.
	Send(event string, payload any)
}

// Pause describes where a session is suspended.
type Pause struct {
	NodeID   string         `json:"nodeId"`
	NodeType string         `json:"nodeType"`
	Inputs   map[string]any `json:"inputs"`
}

// SessionInfo is the observer-facing view of the active session.
type SessionInfo struct {
	SessionID     string       `json:"sessionId"`
	ExecutionID   string       `json:"executionId"`
	Status        Status       `json:"status"`
	Paused        *Pause       `json:"paused,omitempty"`
	ExecutedSteps []trace.Step `json:"executedSteps"`
}

// State is sent to an observer when it joins.
type State struct {
	GraphID         string       `json:"graphId"`
	Breakpoints     []Breakpoint `json:"breakpoints"`
	ActiveExecution *SessionInfo `json:"activeExecution,omitempty"`
	ConnectedUsers  []graph.User `json:"connectedUsers"`
}

type PausedEvent struct {
	SessionID     string         `json:"sessionId"`
	ExecutionID   string         `json:"executionId"`
	NodeID        string         `json:"nodeId"`
	NodeType      string         `json:"nodeType"`
	Inputs        map[string]any `json:"inputs"`
	ExecutedSteps []trace.Step   `json:"executedSteps"`
}

type ResumedEvent struct {
	SessionID string         `json:"sessionId"`
	NodeID    string         `json:"nodeId"`
	Overrides map[string]any `json:"overrides,omitempty"`
	By        graph.User     `json:"by"`
}

type ValueUpdatedEvent struct {
	SessionID string     `json:"sessionId"`
	Key       string     `json:"key"`
	Value     any        `json:"value"`
	By        graph.User `json:"by"`
}

type CompletedEvent struct {
	SessionID string       `json:"sessionId"`
	Trace     *trace.Trace `json:"trace"`
}

type StoppedEvent struct {
	SessionID string `json:"sessionId"`
}

type ErrorEvent struct {
	SessionID string `json:"sessionId,omitempty"`
	NodeID    string `json:"nodeId,omitempty"`
	Error     string `json:"error"`
}

type BreakpointRemovedEvent struct {
	NodeID string `json:"nodeId"`
}
