package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/specialistvlad/nodeflow/internal/convert"
	"github.com/specialistvlad/nodeflow/internal/debug"
	"github.com/specialistvlad/nodeflow/internal/engine"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/graphfile"
	"github.com/specialistvlad/nodeflow/internal/httpapi"
	"github.com/specialistvlad/nodeflow/internal/registry"
	"github.com/specialistvlad/nodeflow/internal/runtime"
	"github.com/specialistvlad/nodeflow/internal/testutil"
	"github.com/specialistvlad/nodeflow/internal/trace"
	"github.com/specialistvlad/nodeflow/internal/tracestore"
	"github.com/specialistvlad/nodeflow/modules/actions"
	"github.com/specialistvlad/nodeflow/modules/converters"
	"github.com/specialistvlad/nodeflow/modules/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutor records what it was asked to run and stores a canned trace.
type fakeExecutor struct {
	traces *tracestore.Memory
	events []graph.Event
	err    error
}

func (f *fakeExecutor) Execute(ctx context.Context, graphID string, ev graph.Event) (*trace.Trace, error) {
	f.events = append(f.events, ev)
	if f.err != nil {
		return nil, f.err
	}
	tr := &trace.Trace{
		ExecutionID: "e1",
		GraphID:     graphID,
		Event:       ev.Name,
		Status:      trace.RunCompleted,
		StartedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Steps: []trace.Step{
			{Index: 0, Kind: trace.KindExecution, NodeID: "cmd", NodeType: events.TypeCommand},
			{Index: 1, Kind: trace.KindTraversal, FromNodeID: "cmd", FromPinID: "exec", ToNodeID: "log", ToPinID: "exec"},
			{Index: 2, Kind: trace.KindExecution, NodeID: "log", NodeType: actions.TypeLog},
		},
	}
	return tr, f.traces.Save(ctx, tr)
}

func (f *fakeExecutor) Fire(graphID string, ev graph.Event) (string, error) {
	f.events = append(f.events, ev)
	return "queued-1", f.err
}

type fakeGraphs []graphfile.Summary

func (f fakeGraphs) List(context.Context) ([]graphfile.Summary, error) { return f, nil }

type fixture struct {
	handler http.Handler
	exec    *fakeExecutor
	debug   *debug.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := testutil.NewLogger(t)
	reg := registry.New(logger)
	reg.RegisterModules(&events.Module{}, &actions.Module{}, &converters.Module{})

	exec := &fakeExecutor{traces: tracestore.NewMemory(0)}
	mgr := debug.NewManager(logger, nil)
	socket := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	srv := httpapi.New(httpapi.Config{
		Registry:   reg,
		Executor:   exec,
		Traces:     exec.traces,
		Graphs:     fakeGraphs{{ID: "greeter", Nodes: 2}},
		Debug:      mgr,
		Socket:     socket,
		SocketPath: "/socket.io/",
		Logger:     logger,
	})
	return &fixture{handler: srv.Handler(), exec: exec, debug: mgr}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndSocketMount(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/socket.io/?EIO=4&transport=polling", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestNodesAndConvert(t *testing.T) {
	f := newFixture(t)

	nodes := decode[[]httpapi.NodeType](t, f.do(t, http.MethodGet, "/api/nodes", ""))
	var cmd *httpapi.NodeType
	for i := range nodes {
		if nodes[i].Type == events.TypeCommand {
			cmd = &nodes[i]
		}
	}
	require.NotNil(t, cmd)
	assert.Equal(t, "command", cmd.Trigger)
	assert.Equal(t, "exec", cmd.Outputs[0].ID)

	res := decode[map[string]any](t, f.do(t, http.MethodGet, "/api/convert?from=Number&to=String", ""))
	assert.Equal(t, []any{convert.ToString}, res["chain"])

	rec := f.do(t, http.MethodGet, "/api/convert?from=Exec&to=String", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGraphsAndValidate(t *testing.T) {
	f := newFixture(t)

	list := decode[[]graphfile.Summary](t, f.do(t, http.MethodGet, "/api/graphs", ""))
	assert.Equal(t, []graphfile.Summary{{ID: "greeter", Nodes: 2}}, list)

	valid := `{"id":"g","nodes":[{"id":"c","type":"event:command"},{"id":"l","type":"action:log"}],
		"connections":[{"sourceNodeId":"c","sourcePinId":"exec","targetNodeId":"l","targetPinId":"exec"}]}`
	res := decode[map[string]any](t, f.do(t, http.MethodPost, "/api/graphs/validate", valid))
	assert.Equal(t, true, res["valid"])

	invalid := `{"id":"g","nodes":[{"id":"c","type":"event:command"},{"id":"l","type":"action:log"}],
		"connections":[{"sourceNodeId":"c","sourcePinId":"exec","targetNodeId":"l","targetPinId":"message"}]}`
	res = decode[map[string]any](t, f.do(t, http.MethodPost, "/api/graphs/validate", invalid))
	assert.Equal(t, false, res["valid"])
	assert.Contains(t, res["error"], "cannot connect Exec to Wildcard")

	rec := f.do(t, http.MethodPost, "/api/graphs/validate", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerAndPlayback(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/graphs/greeter/trigger", `{"user":{"username":"alex"},"args":{"n":1}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tr := decode[trace.Trace](t, rec)
	assert.Equal(t, "e1", tr.ExecutionID)
	require.Len(t, f.exec.events, 1)
	assert.Equal(t, "command", f.exec.events[0].Name, "event name defaults to command")
	assert.Equal(t, "alex", f.exec.events[0].User.Username)

	rec = f.do(t, http.MethodPost, "/api/graphs/greeter/trigger", `{"name":"chat","async":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, map[string]string{"executionId": "queued-1"}, decode[map[string]string](t, rec))

	list := decode[[]trace.Summary](t, f.do(t, http.MethodGet, "/api/traces?graph=greeter&limit=5", ""))
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Steps)

	frames := decode[[]trace.Frame](t, f.do(t, http.MethodGet, "/api/traces/e1/playback", ""))
	require.Len(t, frames, 2)
	assert.Equal(t, "log", frames[1].Step.NodeID)

	frame := decode[trace.Frame](t, f.do(t, http.MethodGet, "/api/traces/e1/playback?step=1", ""))
	assert.Equal(t, 1, frame.Number)
	assert.Equal(t, 2, frame.Total)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/traces/e1/playback?step=3", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/traces/nope", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/traces?limit=x", "").Code)
}

func TestTriggerErrors(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"unknown graph", graphfile.ErrNotFound, http.StatusNotFound},
		{"no trigger", engine.ErrNoTrigger, http.StatusUnprocessableEntity},
		{"stopped", engine.ErrStopped, http.StatusConflict},
		{"busy", runtime.ErrBusy, http.StatusServiceUnavailable},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.exec.err = tc.err
			rec := f.do(t, http.MethodPost, "/api/graphs/greeter/trigger", "")
			assert.Equal(t, tc.want, rec.Code)
			assert.Contains(t, decode[map[string]string](t, rec)["error"], tc.err.Error())
		})
	}
}

func TestDebugState(t *testing.T) {
	f := newFixture(t)

	st := decode[debug.State](t, f.do(t, http.MethodGet, "/api/graphs/greeter/debug", ""))
	assert.Equal(t, "greeter", st.GraphID)
	assert.Empty(t, st.Breakpoints)

	f.debug.Hub("greeter").SetBreakpoint("log", "")
	st = decode[debug.State](t, f.do(t, http.MethodGet, "/api/graphs/greeter/debug", ""))
	require.Len(t, st.Breakpoints, 1)
	assert.Equal(t, "log", st.Breakpoints[0].NodeID)
}
