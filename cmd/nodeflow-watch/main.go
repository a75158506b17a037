// Command nodeflow-watch is a terminal debugger. It connects to a nodeflow
// server over socket.io, joins graphs, prints every debug event and sends
// commands typed on stdin.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/specialistvlad/nodeflow/internal/cli"
	"github.com/specialistvlad/nodeflow/internal/debug"
	"github.com/specialistvlad/nodeflow/internal/transport"
	"github.com/spf13/pflag"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// connectTimeout bounds the initial socket.io handshake.
const connectTimeout = 15 * time.Second

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	URL         string
	Username    string
	Graphs      []string
	Breakpoints []string
}

func parseArgs(args []string, out io.Writer) (*options, bool, error) {
	fs := pflag.NewFlagSet("nodeflow-watch", pflag.ContinueOnError)
	fs.SetOutput(out)
	opts := &options{}
	fs.StringVarP(&opts.URL, "url", "u", "http://localhost:8080", "nodeflow server URL.")
	fs.StringVar(&opts.Username, "user", os.Getenv("USER"), "Username shown to other observers.")
	fs.StringArrayVarP(&opts.Graphs, "graph", "g", nil, "Graph to watch (repeatable).")
	fs.StringArrayVarP(&opts.Breakpoints, "break", "b", nil, "Breakpoint as node or node=condition, set on every watched graph (repeatable).")
	fs.Usage = func() {
		fmt.Fprint(out, `
nodeflow-watch - Terminal debugger for nodeflow graphs.

Usage:
  nodeflow-watch -g GRAPH [-g GRAPH...] [options]

Commands (stdin):
  c [key=value ...]    continue the paused execution with overrides
  s                    stop the active execution
  u key=value          update a value of the paused execution
  b node [condition]   set a breakpoint
  rb node              remove a breakpoint
  t node on|off        toggle a breakpoint
  q                    quit

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &cli.ExitError{Code: 2, Message: err.Error()}
	}
	if len(opts.Graphs) == 0 {
		return nil, false, &cli.ExitError{Code: 2, Message: "at least one --graph is required"}
	}
	if opts.Username == "" {
		opts.Username = "watcher"
	}
	return opts, false, nil
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	opts, exit, err := parseArgs(args, out)
	if err != nil || exit {
		return err
	}

	client, err := dial(ctx, opts)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	w := newWatcher(out, opts.Graphs[0])
	for _, ev := range serverEvents {
		name := ev
		client.On(types.EventName(name), func(args ...any) { w.print(name, args) })
	}

	for _, g := range opts.Graphs {
		w.emit(client, transport.CmdJoin, map[string]any{"graphId": g})
		for _, bp := range opts.Breakpoints {
			node, cond, _ := strings.Cut(bp, "=")
			w.emit(client, transport.CmdSetBreakpoint, map[string]any{"graphId": g, "nodeId": node, "condition": cond})
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			cmd, payload, err := w.parseLine(line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintln(out, "!", err)
				continue
			}
			if cmd != "" {
				w.emit(client, cmd, payload)
			}
		}
	}
}

func dial(ctx context.Context, opts *options) (*socket.Socket, error) {
	parsed, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	sopts := socket.DefaultOptions()
	sopts.SetPath(transport.Path)
	sopts.SetTransports(types.NewSet(transports.WebSocket))
	sopts.SetAuth(map[string]any{"username": opts.Username})

	baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	manager := socket.NewManager(baseURL, sopts)
	conn := manager.Socket("/", sopts)

	connected := make(chan error, 1)
	conn.Once(types.EventName("connect"), func(...any) {
		connected <- nil
	})
	conn.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})
	conn.Connect()

	select {
	case err := <-connected:
		if err != nil {
			conn.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		slog.Info("Connected.", "url", baseURL, "sid", conn.Id())
		return conn, nil
	case <-ctx.Done():
		conn.Disconnect()
		return nil, ctx.Err()
	case <-time.After(connectTimeout):
		conn.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", connectTimeout)
	}
}

// serverEvents are the events the watcher prints.
var serverEvents = []string{
	debug.EventState, debug.EventBreakpointAdded, debug.EventBreakpointRemoved,
	debug.EventBreakpointToggled, debug.EventPaused, debug.EventResumed,
	debug.EventValueUpdated, debug.EventCompleted, debug.EventStopped,
	debug.EventError, debug.EventUserJoined, debug.EventUserLeft,
}

var errQuit = errors.New("quit")

// watcher remembers the last paused session so that short commands can
// address it.
type watcher struct {
	mu      sync.Mutex
	out     io.Writer
	graphID string
	session string
}

func newWatcher(out io.Writer, graphID string) *watcher {
	return &watcher{out: out, graphID: graphID}
}

func (w *watcher) print(event string, args []any) {
	var env transport.Envelope
	if len(args) > 0 {
		if raw, err := json.Marshal(args[0]); err == nil {
			_ = json.Unmarshal(raw, &env)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if data, ok := env.Data.(map[string]any); ok {
		if id, ok := data["sessionId"].(string); ok && id != "" {
			switch event {
			case debug.EventPaused:
				w.session, w.graphID = id, env.GraphID
			case debug.EventCompleted, debug.EventStopped:
				if w.session == id {
					w.session = ""
				}
			}
		}
	}
	body, _ := json.Marshal(env.Data)
	fmt.Fprintf(w.out, "[%s] %s %s\n", env.GraphID, event, body)
}

func (w *watcher) emit(client *socket.Socket, event string, payload map[string]any) {
	client.Emit(event, payload, func(res []any, err error) {
		if err != nil {
			fmt.Fprintf(w.out, "! %s: %v\n", event, err)
			return
		}
		if len(res) == 0 {
			return
		}
		if m, ok := res[0].(map[string]any); ok && m["ok"] == false {
			fmt.Fprintf(w.out, "! %s: %v\n", event, m["error"])
		}
	})
}

// parseLine turns one stdin line into a command and its payload. Blank
// lines yield an empty command.
func (w *watcher) parseLine(line string) (string, map[string]any, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, nil
	}

	w.mu.Lock()
	graphID, session := w.graphID, w.session
	w.mu.Unlock()
	payload := map[string]any{"graphId": graphID}

	switch fields[0] {
	case "q", "quit":
		return "", nil, errQuit
	case "c", "continue":
		if session == "" {
			return "", nil, errors.New("nothing is paused")
		}
		payload["sessionId"] = session
		overrides, err := parseAssignments(fields[1:])
		if err != nil {
			return "", nil, err
		}
		if len(overrides) > 0 {
			payload["overrides"] = overrides
		}
		return transport.CmdContinue, payload, nil
	case "s", "stop":
		if session == "" {
			return "", nil, errors.New("nothing is paused")
		}
		payload["sessionId"] = session
		return transport.CmdStop, payload, nil
	case "u", "update":
		values, err := parseAssignments(fields[1:])
		if err != nil || len(values) != 1 {
			return "", nil, errors.New("usage: u node.in.pin=value")
		}
		for k, v := range values {
			payload["key"], payload["value"] = k, v
		}
		return transport.CmdUpdateValue, payload, nil
	case "b", "break":
		if len(fields) < 2 {
			return "", nil, errors.New("usage: b node [condition]")
		}
		payload["nodeId"] = fields[1]
		payload["condition"] = strings.Join(fields[2:], " ")
		return transport.CmdSetBreakpoint, payload, nil
	case "rb":
		if len(fields) != 2 {
			return "", nil, errors.New("usage: rb node")
		}
		payload["nodeId"] = fields[1]
		return transport.CmdRemoveBreakpoint, payload, nil
	case "t", "toggle":
		if len(fields) != 3 || (fields[2] != "on" && fields[2] != "off") {
			return "", nil, errors.New("usage: t node on|off")
		}
		payload["nodeId"] = fields[1]
		payload["enabled"] = fields[2] == "on"
		return transport.CmdToggleBreakpoint, payload, nil
	default:
		return "", nil, fmt.Errorf("unknown command %q", fields[0])
	}
}

// parseAssignments reads key=value pairs. Values are JSON when they parse as
// JSON and plain strings otherwise.
func parseAssignments(fields []string) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		k, raw, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", f)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[k] = v
	}
	return out, nil
}
