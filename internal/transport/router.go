// Package transport carries the debug protocol over socket.io. Observers
// join a graph, receive every event of that graph's hub and send commands
// that the router applies to the hub.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/specialistvlad/nodeflow/internal/debug"
	"github.com/specialistvlad/nodeflow/internal/graph"
)

// Client to server events.
const (
	CmdJoin             = "debug:join"
	CmdLeave            = "debug:leave"
	CmdSetBreakpoint    = "debug:set-breakpoint"
	CmdRemoveBreakpoint = "debug:remove-breakpoint"
	CmdToggleBreakpoint = "debug:toggle-breakpoint"
	CmdContinue         = "debug:continue"
	CmdStop             = "debug:stop"
	CmdUpdateValue      = "debug:update-value"
)

// Commands lists every client event the router understands.
var Commands = []string{
	CmdJoin, CmdLeave,
	CmdSetBreakpoint, CmdRemoveBreakpoint, CmdToggleBreakpoint,
	CmdContinue, CmdStop, CmdUpdateValue,
}

var (
	// ErrNotJoined is returned for commands on a graph the client has not
	// joined.
	ErrNotJoined = errors.New("not joined to graph")
	// ErrBadCommand is returned for payloads that do not decode or lack
	// required fields.
	ErrBadCommand = errors.New("bad command")
	// ErrUnknownCommand is returned for events the router does not handle.
	ErrUnknownCommand = errors.New("unknown command")
)

// Command is the payload of every client event. Each command reads the
// fields it needs.
type Command struct {
	GraphID   string         `json:"graphId"`
	NodeID    string         `json:"nodeId,omitempty"`
	Condition string         `json:"condition,omitempty"`
	Enabled   *bool          `json:"enabled,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Overrides map[string]any `json:"overrides,omitempty"`
	Key       string         `json:"key,omitempty"`
	Value     any            `json:"value,omitempty"`
}

// Envelope wraps every server event so that a client watching several
// graphs can tell them apart.
type Envelope struct {
	GraphID string `json:"graphId"`
	Data    any    `json:"data"`
}

// Conn is one connected client.
type Conn interface {
	ID() string
	User() graph.User
	// Observer returns the client's observer for one graph. Its ID must
	// equal the connection's.
	Observer(graphID string) debug.Observer
}

// Router applies client commands to the debug manager.
type Router struct {
	manager *debug.Manager
	logger  *slog.Logger
}

// NewRouter returns a router for manager.
func NewRouter(manager *debug.Manager, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{manager: manager, logger: logger}
}

// Decode converts a raw socket.io argument into a Command.
func Decode(raw any) (Command, error) {
	var cmd Command
	var data []byte
	switch v := raw.(type) {
	case nil:
		return cmd, fmt.Errorf("%w: empty payload", ErrBadCommand)
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return cmd, fmt.Errorf("%w: %w", ErrBadCommand, err)
		}
		data = b
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("%w: %w", ErrBadCommand, err)
	}
	if cmd.GraphID == "" {
		return cmd, fmt.Errorf("%w: graphId is required", ErrBadCommand)
	}
	return cmd, nil
}

// Handle applies one command and returns the value to acknowledge it with.
func (r *Router) Handle(c Conn, event string, raw any) (any, error) {
	cmd, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	logger := r.logger.With("conn", c.ID(), "event", event, "graph", cmd.GraphID)
	logger.Debug("Debug command received.")

	if event == CmdJoin {
		return r.manager.Join(cmd.GraphID, c.Observer(cmd.GraphID))
	}

	hub, ok := r.manager.Lookup(cmd.GraphID)
	if !ok || !hub.Has(c.ID()) {
		return nil, fmt.Errorf("%w %s", ErrNotJoined, cmd.GraphID)
	}

	switch event {
	case CmdLeave:
		hub.Leave(c.ID())
		return nil, nil
	case CmdSetBreakpoint:
		if cmd.NodeID == "" {
			return nil, fmt.Errorf("%w: nodeId is required", ErrBadCommand)
		}
		return hub.SetBreakpoint(cmd.NodeID, cmd.Condition), nil
	case CmdRemoveBreakpoint:
		return nil, hub.RemoveBreakpoint(cmd.NodeID)
	case CmdToggleBreakpoint:
		if cmd.Enabled == nil {
			return nil, fmt.Errorf("%w: enabled is required", ErrBadCommand)
		}
		return hub.ToggleBreakpoint(cmd.NodeID, *cmd.Enabled)
	case CmdContinue:
		if cmd.SessionID == "" {
			return nil, fmt.Errorf("%w: sessionId is required", ErrBadCommand)
		}
		return nil, hub.Continue(cmd.SessionID, cmd.Overrides, c.User())
	case CmdStop:
		if cmd.SessionID == "" {
			return nil, fmt.Errorf("%w: sessionId is required", ErrBadCommand)
		}
		return nil, hub.Stop(cmd.SessionID)
	case CmdUpdateValue:
		if cmd.Key == "" {
			return nil, fmt.Errorf("%w: key is required", ErrBadCommand)
		}
		return nil, hub.UpdateValue(cmd.Key, cmd.Value, c.User())
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, event)
	}
}
