package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"
	"slices"

	"github.com/specialistvlad/nodeflow/internal/debug"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
)

// Path is where the socket.io endpoint is mounted.
const Path = "/socket.io/"

// Server is the socket.io endpoint of the debugger.
type Server struct {
	io      *socket.Server
	router  *Router
	manager *debug.Manager
	logger  *slog.Logger
}

// NewServer creates the socket.io server. corsOrigins lists the browser
// origins allowed to connect; empty allows any.
func NewServer(manager *debug.Manager, logger *slog.Logger, corsOrigins []string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts := socket.DefaultServerOptions()
	var origin any = "*"
	if len(corsOrigins) > 0 && !slices.Contains(corsOrigins, "*") {
		origins := make([]any, len(corsOrigins))
		for i, o := range corsOrigins {
			origins[i] = o
		}
		origin = origins
	}
	opts.SetCors(&types.Cors{Origin: origin, Credentials: true})

	s := &Server{
		io:      socket.NewServer(nil, opts),
		router:  NewRouter(manager, logger),
		manager: manager,
		logger:  logger.With("component", "transport"),
	}
	s.io.On("connection", s.onConnection)
	return s
}

// Handler returns the HTTP handler to mount at Path.
func (s *Server) Handler() http.Handler {
	return s.io.ServeHandler(nil)
}

func (s *Server) onConnection(args ...any) {
	if len(args) == 0 {
		return
	}
	sock, ok := args[0].(*socket.Socket)
	if !ok {
		return
	}
	c := &conn{sock: sock, user: userFromHandshake(sock)}
	logger := s.logger.With("conn", c.ID(), "user", c.user.Username)
	logger.Info("Debugger connected.")

	sock.On(CmdJoin, s.command(c, logger, CmdJoin))
	sock.On(CmdLeave, s.command(c, logger, CmdLeave))
	sock.On(CmdSetBreakpoint, s.command(c, logger, CmdSetBreakpoint))
	sock.On(CmdRemoveBreakpoint, s.command(c, logger, CmdRemoveBreakpoint))
	sock.On(CmdToggleBreakpoint, s.command(c, logger, CmdToggleBreakpoint))
	sock.On(CmdContinue, s.command(c, logger, CmdContinue))
	sock.On(CmdStop, s.command(c, logger, CmdStop))
	sock.On(CmdUpdateValue, s.command(c, logger, CmdUpdateValue))

	sock.On("disconnect", func(reason ...any) {
		logger.Info("Debugger disconnected.", "reason", reason)
		s.manager.LeaveAll(c.ID())
	})
}

// command returns the socket listener for one client event. The first
// non-function argument is the payload; a trailing function is the ack.
func (s *Server) command(c *conn, logger *slog.Logger, event string) func(...any) {
	return func(payload ...any) {
		var raw, ack any
		for _, p := range payload {
			if reflect.ValueOf(p).Kind() == reflect.Func {
				ack = p
			} else if raw == nil {
				raw = p
			}
		}

		res, err := s.router.Handle(c, event, raw)
		if err != nil {
			logger.Warn("Debug command failed.", "event", event, "error", err)
			c.send(debug.EventError, Envelope{Data: debug.ErrorEvent{Error: err.Error()}})
		}
		if ack != nil {
			callAck(ack, reply(res, err))
		}
	}
}

// callAck invokes a socket.io acknowledgement, which is either variadic
// func(...any) or func([]any, error).
func callAck(fn any, payload any) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	switch {
	case t.IsVariadic() && t.NumIn() == 1:
		v.Call([]reflect.Value{reflect.ValueOf(payload)})
	case t.NumIn() == 2 && t.In(0) == reflect.TypeOf([]any{}):
		v.Call([]reflect.Value{reflect.ValueOf([]any{payload}), reflect.Zero(t.In(1))})
	case t.NumIn() == 1:
		v.Call([]reflect.Value{reflect.ValueOf(payload)})
	}
}

// reply is the acknowledgement payload of a command.
func reply(res any, err error) map[string]any {
	if err != nil {
		return map[string]any{"ok": false, "error": err.Error()}
	}
	return map[string]any{"ok": true, "data": res}
}

type handshakeAuth struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

// userFromHandshake reads the claimed identity from the connection's auth
// payload. Authentication happens in front of this server.
func userFromHandshake(sock *socket.Socket) graph.User {
	u := graph.User{ID: string(sock.Id()), Username: "anonymous"}
	hs := sock.Handshake()
	if hs == nil {
		return u
	}
	raw, err := json.Marshal(hs.Auth)
	if err != nil {
		return u
	}
	var auth handshakeAuth
	if json.Unmarshal(raw, &auth) != nil {
		return u
	}
	if auth.Username != "" {
		u.Username = auth.Username
	}
	if auth.UserID != "" {
		u.ID = auth.UserID
	}
	return u
}

// conn adapts a socket to Conn.
type conn struct {
	sock *socket.Socket
	user graph.User
}

func (c *conn) ID() string       { return string(c.sock.Id()) }
func (c *conn) User() graph.User { return c.user }

func (c *conn) Observer(graphID string) debug.Observer {
	return &observer{conn: c, graphID: graphID}
}

func (c *conn) send(event string, payload any) {
	c.sock.Emit(event, payload)
}

// observer is a connection watching one graph.
type observer struct {
	conn    *conn
	graphID string
}

func (o *observer) ID() string       { return o.conn.ID() }
func (o *observer) User() graph.User { return o.conn.user }

func (o *observer) Send(event string, payload any) {
	o.conn.send(event, Envelope{GraphID: o.graphID, Data: payload})
}
