package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/specialistvlad/nodeflow/internal/engine"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
	"github.com/specialistvlad/nodeflow/internal/testutil"
	"github.com/specialistvlad/nodeflow/internal/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is a small node library whose executors record what they saw.
type fixture struct {
	mu    sync.Mutex
	seen  []string
	evals atomic.Int32
}

func (f *fixture) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, s)
}

func (f *fixture) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func (f *fixture) registry(t *testing.T) *registry.Registry {
	t.Helper()
	logger, _ := testutil.NewLogger(t)
	r := registry.New(logger)

	r.Register(&registry.Definition{
		Type:    "test:start",
		Trigger: "command",
		Outputs: registry.Static(registry.ExecOut("exec")),
		Execute: func(ctx context.Context, n *graph.Node, h registry.Helpers) error {
			return h.Traverse(ctx, n, "exec")
		},
	})
	r.Register(&registry.Definition{
		Type:    "test:number",
		Outputs: registry.Static(registry.DataOut("value", graph.KindNumber)),
		Evaluate: func(ctx context.Context, n *graph.Node, pin string, h registry.Helpers) (any, error) {
			f.evals.Add(1)
			if a, ok := h.Event().Args["count"]; ok && n.Data["fromArgs"] == true {
				return a, nil
			}
			v, _ := n.Literal("value")
			return v, nil
		},
	})
	r.Register(&registry.Definition{
		Type: "test:gt",
		Inputs: registry.Static(
			registry.DataIn("a", graph.KindNumber, true),
			registry.DataIn("b", graph.KindNumber, true),
		),
		Outputs: registry.Static(registry.DataOut("result", graph.KindBoolean)),
		Evaluate: func(ctx context.Context, n *graph.Node, pin string, h registry.Helpers) (any, error) {
			a := toFloat(h.ResolvePinValue(ctx, n, "a", 0.0))
			b := toFloat(h.ResolvePinValue(ctx, n, "b", 0.0))
			return a > b, nil
		},
	})
	r.Register(&registry.Definition{
		Type:    "test:branch",
		Inputs:  registry.Static(registry.ExecIn("exec"), registry.DataIn("condition", graph.KindBoolean, false)),
		Outputs: registry.Static(registry.ExecOut("true"), registry.ExecOut("false")),
		Execute: func(ctx context.Context, n *graph.Node, h registry.Helpers) error {
			if c, _ := h.ResolvePinValue(ctx, n, "condition", false).(bool); c {
				return h.Traverse(ctx, n, "true")
			}
			return h.Traverse(ctx, n, "false")
		},
	})
	r.Register(&registry.Definition{
		Type:    "test:record",
		Inputs:  registry.Static(registry.ExecIn("exec"), registry.DataIn("message", graph.KindWildcard, false)),
		Outputs: registry.Static(registry.ExecOut("exec"), registry.DataOut("message", graph.KindString)),
		Execute: func(ctx context.Context, n *graph.Node, h registry.Helpers) error {
			msg := fmt.Sprint(h.ResolvePinValue(ctx, n, "message", n.ID))
			f.record(msg)
			h.SetOutput(n, "message", msg)
			return h.Traverse(ctx, n, "exec")
		},
	})
	r.Register(&registry.Definition{
		Type:   "test:fail",
		Inputs: registry.Static(registry.ExecIn("exec")),
		Execute: func(ctx context.Context, n *graph.Node, h registry.Helpers) error {
			return errors.New("boom")
		},
	})
	r.Register(&registry.Definition{
		Type:   "test:panic",
		Inputs: registry.Static(registry.ExecIn("exec")),
		Execute: func(ctx context.Context, n *graph.Node, h registry.Helpers) error {
			panic("kaboom")
		},
	})
	r.Register(&registry.Definition{
		Type:    "test:loop",
		Inputs:  registry.Static(registry.ExecIn("exec"), registry.DataIn("count", graph.KindNumber, false)),
		Outputs: registry.Static(registry.ExecOut("body"), registry.ExecOut("completed"), registry.DataOut("index", graph.KindNumber)),
		Execute: func(ctx context.Context, n *graph.Node, h registry.Helpers) error {
			count := int(toFloat(h.ResolvePinValue(ctx, n, "count", 0.0)))
			for i := 0; i < count; i++ {
				h.SetOutput(n, "index", float64(i))
				h.Invalidate(n.ID)
				if err := h.Traverse(ctx, n, "body"); err != nil {
					return err
				}
			}
			return h.Traverse(ctx, n, "completed")
		},
	})
	r.Register(&registry.Definition{
		Type:    "test:double",
		Inputs:  registry.Static(registry.DataIn("value", graph.KindNumber, false)),
		Outputs: registry.Static(registry.DataOut("result", graph.KindNumber)),
		Evaluate: func(ctx context.Context, n *graph.Node, pin string, h registry.Helpers) (any, error) {
			return toFloat(h.ResolvePinValue(ctx, n, "value", 0.0)) * 2, nil
		},
	})
	r.Register(&registry.Definition{
		Type:     "test:get",
		Volatile: true,
		Outputs:  registry.Static(registry.DataOut("value", graph.KindWildcard)),
		Evaluate: func(ctx context.Context, n *graph.Node, pin string, h registry.Helpers) (any, error) {
			v, _ := h.Variable(fmt.Sprint(n.Data["name"]))
			return v, nil
		},
	})
	r.Register(&registry.Definition{
		Type:    "test:set",
		Inputs:  registry.Static(registry.ExecIn("exec"), registry.DataIn("value", graph.KindWildcard, false)),
		Outputs: registry.Static(registry.ExecOut("exec")),
		Execute: func(ctx context.Context, n *graph.Node, h registry.Helpers) error {
			h.SetVariable(fmt.Sprint(n.Data["name"]), h.ResolvePinValue(ctx, n, "value", nil))
			return h.Traverse(ctx, n, "exec")
		},
	})
	return r
}

// branchGraph: start -> branch(count > 3) -> "big" | "small".
func branchGraph() *graph.Graph {
	return testutil.NewGraph("branch").
		Node("start", "test:start", nil).
		Node("count", "test:number", map[string]any{"fromArgs": true, "value": 0.0}).
		Node("three", "test:number", map[string]any{"value": 3.0}).
		Node("gt", "test:gt", nil).
		Node("branch", "test:branch", nil).
		Node("big", "test:record", map[string]any{"message": "big"}).
		Node("small", "test:record", map[string]any{"message": "small"}).
		Exec("start", "exec", "branch").
		Connect("count", "value", "gt", "a").
		Connect("three", "value", "gt", "b").
		Connect("gt", "result", "branch", "condition").
		Exec("branch", "true", "big").
		Exec("branch", "false", "small").
		Build()
}

func commandEvent(args map[string]any) graph.Event {
	return graph.Event{Name: "command", User: graph.User{ID: "u1", Username: "admin"}, Args: args}
}

func TestEngine_Branch(t *testing.T) {
	testCases := []struct {
		name  string
		count float64
		want  string
	}{
		{name: "above threshold", count: 5, want: "big"},
		{name: "at threshold", count: 3, want: "small"},
		{name: "below threshold", count: 1, want: "small"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, _ := testutil.Context(t)
			f := &fixture{}
			e := engine.New(f.registry(t))

			tr, err := e.Run(ctx, branchGraph(), commandEvent(map[string]any{"count": tc.count}))
			require.NoError(t, err)
			assert.Equal(t, trace.RunCompleted, tr.Status)
			assert.Equal(t, []string{tc.want}, f.log())
			assert.Equal(t, []string{"start", "branch", tc.want}, tr.ExecutedNodes())
		})
	}
}

func TestEngine_FanOutRunsDepthFirstInOrder(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := &fixture{}
	g := testutil.NewGraph("seq").
		Node("start", "test:start", nil).
		Node("a", "test:record", nil).
		Node("a1", "test:record", nil).
		Node("b", "test:record", nil).
		Exec("start", "exec", "a").
		Exec("start", "exec", "b").
		Exec("a", "exec", "a1").
		Build()

	_, err := engine.New(f.registry(t)).Run(ctx, g, commandEvent(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a1", "b"}, f.log())
}

func TestEngine_DataNodesAreEvaluatedOnce(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := &fixture{}
	g := testutil.NewGraph("memo").
		Node("start", "test:start", nil).
		Node("n", "test:number", map[string]any{"value": 7.0}).
		Node("a", "test:record", nil).
		Node("b", "test:record", nil).
		Exec("start", "exec", "a").
		Exec("a", "exec", "b").
		Connect("n", "value", "a", "message").
		Connect("n", "value", "b", "message").
		Build()

	_, err := engine.New(f.registry(t)).Run(ctx, g, commandEvent(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "7"}, f.log())
	assert.EqualValues(t, 1, f.evals.Load())
}

func TestEngine_LiteralAndFallback(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := &fixture{}
	g := testutil.NewGraph("lit").
		Node("start", "test:start", nil).
		Node("a", "test:record", map[string]any{"message": "hello"}).
		Node("b", "test:record", nil).
		Exec("start", "exec", "a").
		Exec("a", "exec", "b").
		Build()

	_, err := engine.New(f.registry(t)).Run(ctx, g, commandEvent(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "b"}, f.log(), "literal first, node id as fallback")
}

func TestEngine_FailureTerminatesExecution(t *testing.T) {
	testCases := []struct {
		name     string
		nodeType string
		wantErr  error
	}{
		{name: "error", nodeType: "test:fail"},
		{name: "panic", nodeType: "test:panic", wantErr: engine.ErrPanic},
		{name: "unknown type", nodeType: "test:nope", wantErr: registry.ErrUnknownType},
		{name: "data node on exec path", nodeType: "test:number", wantErr: engine.ErrNotExecutable},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, _ := testutil.Context(t)
			f := &fixture{}
			g := testutil.NewGraph("fail").
				Node("start", "test:start", nil).
				Node("bad", tc.nodeType, nil).
				Node("after", "test:record", nil).
				Node("sibling", "test:record", nil).
				Exec("start", "exec", "bad").
				Exec("start", "exec", "sibling").
				Exec("bad", "exec", "after").
				Build()

			tr, err := engine.New(f.registry(t)).Run(ctx, g, commandEvent(nil))
			require.Error(t, err)

			var nerr *engine.NodeError
			require.ErrorAs(t, err, &nerr)
			assert.Equal(t, "bad", nerr.NodeID)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}

			assert.Equal(t, trace.RunFailed, tr.Status)
			assert.Empty(t, f.log(), "nothing runs after a failure")
			steps := tr.StepsFor("bad")
			require.Len(t, steps, 1)
			assert.Equal(t, trace.StatusError, steps[0].Status)
			assert.NotEmpty(t, steps[0].Error)
		})
	}
}

func TestEngine_NoTrigger(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := &fixture{}
	tr, err := engine.New(f.registry(t)).Run(ctx, branchGraph(), graph.Event{Name: "chat"})
	require.ErrorIs(t, err, engine.ErrNoTrigger)
	assert.Equal(t, trace.RunFailed, tr.Status)
	assert.Empty(t, tr.Steps)
}

func TestEngine_Deterministic(t *testing.T) {
	f := &fixture{}
	reg := f.registry(t)
	ev := commandEvent(map[string]any{"count": 5.0})

	run := func() *trace.Trace {
		ctx, _ := testutil.Context(t)
		tr, err := engine.New(reg).Run(ctx, branchGraph(), ev)
		require.NoError(t, err)
		return tr
	}
	first, second := run(), run()

	opts := cmp.Options{
		cmpopts.IgnoreFields(trace.Trace{}, "ExecutionID", "StartedAt", "FinishedAt"),
		cmpopts.IgnoreFields(trace.Step{}, "StartedAt", "Duration"),
	}
	if diff := cmp.Diff(first, second, opts); diff != "" {
		t.Errorf("traces differ (-first +second):\n%s", diff)
	}
}

func TestEngine_TraceRecordsInputsOutputsAndEdges(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := &fixture{}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := engine.New(f.registry(t), engine.WithClock(func() time.Time { return now }))

	tr, err := e.Run(ctx, branchGraph(), commandEvent(map[string]any{"count": 5.0}), engine.WithExecutionID("x1"))
	require.NoError(t, err)
	assert.Equal(t, "x1", tr.ExecutionID)
	assert.Equal(t, "branch", tr.GraphID)

	want := []trace.Step{
		{Index: 0, Kind: trace.KindExecution, NodeID: "start", NodeType: "test:start", Status: trace.StatusExecuted},
		{Index: 1, Kind: trace.KindTraversal, FromNodeID: "start", FromPinID: "exec", ToNodeID: "branch", ToPinID: "exec"},
		{Index: 2, Kind: trace.KindExecution, NodeID: "branch", NodeType: "test:branch", Status: trace.StatusExecuted,
			Inputs: map[string]any{"condition": true}},
		{Index: 3, Kind: trace.KindTraversal, FromNodeID: "branch", FromPinID: "true", ToNodeID: "big", ToPinID: "exec"},
		{Index: 4, Kind: trace.KindExecution, NodeID: "big", NodeType: "test:record", Status: trace.StatusExecuted,
			Inputs: map[string]any{"message": "big"}, Outputs: map[string]any{"message": "big"}},
	}
	if diff := cmp.Diff(want, tr.Steps, cmpopts.IgnoreFields(trace.Step{}, "StartedAt", "Duration")); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_Overrides(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := &fixture{}
	ov := engine.NewOverrides()
	require.NoError(t, ov.Apply(map[string]any{"big.in.message": 42.0}))

	tr, err := engine.New(f.registry(t)).Run(ctx, branchGraph(), commandEvent(map[string]any{"count": 5.0}), engine.WithOverrides(ov))
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, f.log())
	steps := tr.StepsFor("big")
	require.Len(t, steps, 1)
	assert.Equal(t, 42.0, steps[0].Inputs["message"])
}

func TestEngine_OutputOverrideReroutesBranch(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := &fixture{}
	ov := engine.NewOverrides()
	require.NoError(t, ov.SetKey("gt.out.result", false))

	_, err := engine.New(f.registry(t)).Run(ctx, branchGraph(), commandEvent(map[string]any{"count": 5.0}), engine.WithOverrides(ov))
	require.NoError(t, err)
	assert.Equal(t, []string{"small"}, f.log())
}

func TestEngine_StepLimit(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := &fixture{}
	g := testutil.NewGraph("cycle").
		Node("start", "test:start", nil).
		Node("a", "test:record", nil).
		Node("b", "test:record", nil).
		Exec("start", "exec", "a").
		Exec("a", "exec", "b").
		Exec("b", "exec", "a").
		Build()

	tr, err := engine.New(f.registry(t), engine.WithMaxSteps(10)).Run(ctx, g, commandEvent(nil))
	require.ErrorIs(t, err, engine.ErrStepLimit)
	assert.Equal(t, trace.RunFailed, tr.Status)
	assert.Len(t, f.log(), 9)
}

func TestEngine_LoopInvalidatesDependentData(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := &fixture{}
	g := testutil.NewGraph("loop").
		Node("start", "test:start", nil).
		Node("loop", "test:loop", map[string]any{"count": 3.0}).
		Node("double", "test:double", nil).
		Node("body", "test:record", nil).
		Node("done", "test:record", map[string]any{"message": "done"}).
		Exec("start", "exec", "loop").
		Exec("loop", "body", "body").
		Exec("loop", "completed", "done").
		Connect("loop", "index", "double", "value").
		Connect("double", "result", "body", "message").
		Build()

	tr, err := engine.New(f.registry(t)).Run(ctx, g, commandEvent(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "2", "4", "done"}, f.log())
	assert.Len(t, tr.StepsFor("body"), 3)
}

func TestEngine_VolatileReadsSeeAssignments(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := &fixture{}
	g := testutil.NewGraph("vars").
		Var("greeting", graph.KindString, "hi").
		Node("start", "test:start", nil).
		Node("get", "test:get", map[string]any{"name": "greeting"}).
		Node("before", "test:record", nil).
		Node("set", "test:set", map[string]any{"name": "greeting", "value": "bye"}).
		Node("after", "test:record", nil).
		Exec("start", "exec", "before").
		Exec("before", "exec", "set").
		Exec("set", "exec", "after").
		Connect("get", "value", "before", "message").
		Connect("get", "value", "after", "message").
		Build()

	_, err := engine.New(f.registry(t)).Run(ctx, g, commandEvent(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "bye"}, f.log())
	assert.Equal(t, "hi", g.InitialVariables()["greeting"], "declared values are untouched")
}

func TestEngine_HookCanStop(t *testing.T) {
	ctx, _ := testutil.Context(t)
	f := &fixture{}
	var visited []string
	hook := engine.BeforeNodeFunc(func(ctx context.Context, x *engine.Execution, n *graph.Node) error {
		visited = append(visited, n.ID)
		if n.ID == "branch" {
			return engine.ErrStopped
		}
		return nil
	})

	tr, err := engine.New(f.registry(t)).Run(ctx, branchGraph(), commandEvent(nil), engine.WithHook(hook))
	require.ErrorIs(t, err, engine.ErrStopped)
	assert.Equal(t, trace.RunStopped, tr.Status)
	assert.Equal(t, []string{"start", "branch"}, visited)
	assert.Empty(t, f.log())
}

func TestEngine_Cancelled(t *testing.T) {
	ctx, _ := testutil.Context(t)
	ctx, cancel := context.WithCancel(ctx)
	cancel()
	f := &fixture{}

	tr, err := engine.New(f.registry(t)).Run(ctx, branchGraph(), commandEvent(nil))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, trace.RunStopped, tr.Status)
}

func TestExecution_Scope(t *testing.T) {
	f := &fixture{}
	g := testutil.NewGraph("g").Var("limit", graph.KindNumber, 3.0).Build()
	x := engine.New(f.registry(t)).NewExecution(g, commandEvent(map[string]any{"item": "diamond"}))

	scope := x.Scope()
	assert.Equal(t, map[string]any{"id": "u1", "username": "admin"}, scope["user"])
	assert.Equal(t, map[string]any{"item": "diamond"}, scope["args"])
	assert.Equal(t, map[string]any{"limit": 3.0}, scope["variables"])
	assert.NotEmpty(t, x.ID())
}
