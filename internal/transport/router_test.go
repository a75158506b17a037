package transport

import (
	"sync"
	"testing"

	"github.com/specialistvlad/nodeflow/internal/debug"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	event   string
	payload any
}

type fakeConn struct {
	id   string
	user graph.User

	mu   sync.Mutex
	sent []sent
}

func (c *fakeConn) ID() string       { return c.id }
func (c *fakeConn) User() graph.User { return c.user }

func (c *fakeConn) Observer(graphID string) debug.Observer {
	return &fakeObserver{conn: c, graphID: graphID}
}

func (c *fakeConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, s := range c.sent {
		out = append(out, s.event)
	}
	return out
}

type fakeObserver struct {
	conn    *fakeConn
	graphID string
}

func (o *fakeObserver) ID() string       { return o.conn.id }
func (o *fakeObserver) User() graph.User { return o.conn.user }

func (o *fakeObserver) Send(event string, payload any) {
	o.conn.mu.Lock()
	defer o.conn.mu.Unlock()
	o.conn.sent = append(o.conn.sent, sent{event, Envelope{GraphID: o.graphID, Data: payload}})
}

func newRouter(t *testing.T) (*Router, *debug.Manager) {
	t.Helper()
	logger, _ := testutil.NewLogger(t)
	m := debug.NewManager(logger, nil)
	return NewRouter(m, logger), m
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name    string
		raw     any
		want    Command
		wantErr bool
	}{
		{name: "map", raw: map[string]any{"graphId": "g1", "nodeId": "n1", "condition": "true"}, want: Command{GraphID: "g1", NodeID: "n1", Condition: "true"}},
		{name: "json string", raw: `{"graphId":"g1","key":"n1.in.x","value":42}`, want: Command{GraphID: "g1", Key: "n1.in.x", Value: 42.0}},
		{name: "bytes", raw: []byte(`{"graphId":"g1","sessionId":"s"}`), want: Command{GraphID: "g1", SessionID: "s"}},
		{name: "missing graph", raw: map[string]any{"nodeId": "n1"}, wantErr: true},
		{name: "nil", raw: nil, wantErr: true},
		{name: "garbage", raw: "{", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.raw)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrBadCommand)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRouter_BreakpointCommands(t *testing.T) {
	r, m := newRouter(t)
	alice := &fakeConn{id: "c1", user: graph.User{Username: "alice"}}
	bob := &fakeConn{id: "c2", user: graph.User{Username: "bob"}}

	_, err := r.Handle(alice, CmdSetBreakpoint, map[string]any{"graphId": "g1", "nodeId": "n1"})
	assert.ErrorIs(t, err, ErrNotJoined, "commands need a join first")

	res, err := r.Handle(alice, CmdJoin, map[string]any{"graphId": "g1"})
	require.NoError(t, err)
	assert.Equal(t, "g1", res.(debug.State).GraphID)
	_, err = r.Handle(bob, CmdJoin, map[string]any{"graphId": "g1"})
	require.NoError(t, err)

	res, err = r.Handle(alice, CmdSetBreakpoint, map[string]any{"graphId": "g1", "nodeId": "n1", "condition": "user.username == 'admin'"})
	require.NoError(t, err)
	assert.Equal(t, "n1", res.(debug.Breakpoint).NodeID)
	assert.Contains(t, bob.events(), debug.EventBreakpointAdded, "other observers hear about it")

	_, err = r.Handle(alice, CmdToggleBreakpoint, map[string]any{"graphId": "g1", "nodeId": "n1"})
	assert.ErrorIs(t, err, ErrBadCommand)
	res, err = r.Handle(alice, CmdToggleBreakpoint, map[string]any{"graphId": "g1", "nodeId": "n1", "enabled": false})
	require.NoError(t, err)
	assert.False(t, res.(debug.Breakpoint).Enabled)

	_, err = r.Handle(bob, CmdRemoveBreakpoint, map[string]any{"graphId": "g1", "nodeId": "n1"})
	require.NoError(t, err)
	assert.Empty(t, m.Hub("g1").Breakpoints())

	_, err = r.Handle(alice, CmdSetBreakpoint, map[string]any{"graphId": "g1"})
	assert.ErrorIs(t, err, ErrBadCommand)

	_, err = r.Handle(alice, CmdContinue, map[string]any{"graphId": "g1", "sessionId": "nope"})
	assert.ErrorIs(t, err, debug.ErrUnknownSession)
	_, err = r.Handle(alice, CmdContinue, map[string]any{"graphId": "g1"})
	assert.ErrorIs(t, err, ErrBadCommand, "continue must name its session")
	_, err = r.Handle(alice, CmdStop, map[string]any{"graphId": "g1"})
	assert.ErrorIs(t, err, ErrBadCommand, "stop must name its session")
	_, err = r.Handle(alice, CmdUpdateValue, map[string]any{"graphId": "g1", "key": "n1.in.x", "value": 1})
	assert.ErrorIs(t, err, debug.ErrNotPaused)

	_, err = r.Handle(alice, "debug:dance", map[string]any{"graphId": "g1"})
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = r.Handle(alice, CmdLeave, map[string]any{"graphId": "g1"})
	require.NoError(t, err)
	assert.True(t, m.Watched("g1"))
	assert.Contains(t, bob.events(), debug.EventUserLeft)
}

func TestReplyAndAck(t *testing.T) {
	assert.Equal(t, map[string]any{"ok": true, "data": 1}, reply(1, nil))
	assert.Equal(t, map[string]any{"ok": false, "error": "boom"}, reply(nil, assert.AnError))

	var got []any
	callAck(func(args ...any) { got = args }, "x")
	assert.Equal(t, []any{"x"}, got)

	callAck(func(args []any, err error) { got = args }, "y")
	assert.Equal(t, []any{"y"}, got)
}
