package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/specialistvlad/nodeflow/internal/agent"
	"github.com/specialistvlad/nodeflow/internal/ctxlog"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
	"github.com/specialistvlad/nodeflow/internal/trace"
)

// BeforeNodeHook runs on the executing goroutine before each executor. A
// non-nil error aborts the execution with that error.
type BeforeNodeHook interface {
	BeforeNode(ctx context.Context, x *Execution, node *graph.Node) error
}

// BeforeNodeFunc adapts a function to BeforeNodeHook.
type BeforeNodeFunc func(ctx context.Context, x *Execution, node *graph.Node) error

func (f BeforeNodeFunc) BeforeNode(ctx context.Context, x *Execution, node *graph.Node) error {
	return f(ctx, x, node)
}

// frame is an executor currently on the call stack.
type frame struct {
	node *graph.Node
	def  *registry.Definition
	step int
	done bool
}

// resolution is a data node evaluation currently on the call stack.
type resolution struct {
	volatile bool
}

// Execution is one run of a graph. It implements registry.Helpers. Apart
// from the read accessors, its methods must only be called from the
// goroutine running it.
type Execution struct {
	id         string
	engine     *Engine
	graph      *graph.Graph
	event      graph.Event
	agent      agent.Adapter
	hook       BeforeNodeHook
	triggerIDs []string

	memo      *Memo
	overrides *Overrides
	recorder  *trace.Recorder

	varsMu sync.RWMutex
	vars   map[string]any

	frames      []*frame
	resolutions []*resolution
	resolving   map[pinKey]struct{}
	visits      int
}

var _ registry.Helpers = (*Execution)(nil)

func (x *Execution) ID() string { return x.id }
func (x *Execution) Graph() *graph.Graph { return x.graph }
func (x *Execution) Event() graph.Event { return x.event }
func (x *Execution) Agent() agent.Adapter { return x.agent }
func (x *Execution) Memo() *Memo { return x.memo }
func (x *Execution) Overrides() *Overrides { return x.overrides }
func (x *Execution) Steps() []trace.Step { return x.recorder.Steps() }
func (x *Execution) Recorder() *trace.Recorder { return x.recorder }

// Run starts the execution at its trigger nodes and blocks until the last
// reachable executor has finished.
func (x *Execution) Run(ctx context.Context) (*trace.Trace, error) {
	logger := ctxlog.FromContext(ctx).With("execution", x.id, "graph", x.graph.ID, "event", x.event.Name)
	ctx = ctxlog.WithLogger(ctx, logger)

	triggers, err := x.triggers()
	if err != nil {
		logger.Warn("Execution not started.", "error", err)
		return x.recorder.Finish(trace.RunFailed, err), err
	}

	logger.Info("▶️ Execution started.", "triggers", len(triggers))
	for _, t := range triggers {
		if err = x.visit(ctx, t); err != nil {
			break
		}
	}

	switch {
	case err == nil:
		logger.Info("✅ Execution completed.", "executed", x.recorder.Executed())
		return x.recorder.Finish(trace.RunCompleted, nil), nil
	case isStop(err):
		logger.Info("⏹️ Execution stopped.", "executed", x.recorder.Executed())
		return x.recorder.Finish(trace.RunStopped, err), err
	default:
		logger.Error("❌ Execution failed.", "error", err)
		return x.recorder.Finish(trace.RunFailed, err), err
	}
}

func (x *Execution) triggers() ([]*graph.Node, error) {
	if len(x.triggerIDs) > 0 {
		out := make([]*graph.Node, 0, len(x.triggerIDs))
		for _, id := range x.triggerIDs {
			n, ok := x.graph.Node(id)
			if !ok {
				return nil, fmt.Errorf("%w: trigger node %q not in graph", ErrNoTrigger, id)
			}
			out = append(out, n)
		}
		return out, nil
	}

	types := x.engine.registry.Triggers(x.event.Name)
	var out []*graph.Node
	for _, n := range x.graph.Nodes {
		if n != nil && slices.Contains(types, n.Type) {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w %q in graph %s", ErrNoTrigger, x.event.Name, x.graph.ID)
	}
	return out, nil
}

// visit runs one executor. Its downstream subgraph runs inside the
// executor's Traverse calls.
func (x *Execution) visit(ctx context.Context, node *graph.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.visits++
	if limit := x.engine.maxSteps; limit > 0 && x.visits > limit {
		return fmt.Errorf("%w: more than %d node visits", ErrStepLimit, limit)
	}

	logger := ctxlog.FromContext(ctx).With("node", node.ID, "type", node.Type)

	def, ok := x.engine.registry.Get(node.Type)
	if !ok || def.Execute == nil {
		cause := ErrNotExecutable
		if !ok {
			cause = registry.ErrUnknownType
		}
		nerr := &NodeError{NodeID: node.ID, NodeType: node.Type, Err: cause}
		x.recorder.Fail(x.recorder.Begin(node.ID, node.Type, nil), cause)
		return nerr
	}

	if x.hook != nil {
		if err := x.hook.BeforeNode(ctx, x, node); err != nil {
			return err
		}
	}

	f := &frame{node: node, def: def}
	f.step = x.recorder.Begin(node.ID, node.Type, x.ResolveInputs(ctx, node))
	x.frames = append(x.frames, f)
	defer func() { x.frames = x.frames[:len(x.frames)-1] }()

	logger.Debug("Executing node.")
	err := x.execute(ctx, def, node)
	if !f.done {
		x.complete(f)
	}
	if err == nil {
		return nil
	}

	// Failures further down the stack are already attributed.
	var nerr *NodeError
	if errors.As(err, &nerr) || isStop(err) || errors.Is(err, ErrStepLimit) {
		return err
	}
	x.recorder.Fail(f.step, err)
	logger.Debug("Node failed.", "error", err)
	return &NodeError{NodeID: node.ID, NodeType: node.Type, Err: err}
}

func (x *Execution) execute(ctx context.Context, def *registry.Definition, node *graph.Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return def.Execute(ctx, node, x)
}

// complete closes a frame's trace step with whatever the node published.
func (x *Execution) complete(f *frame) {
	f.done = true
	var outputs map[string]any
	for _, p := range f.def.OutputPins(f.node) {
		if p.IsExec() {
			continue
		}
		v, ok := x.Output(f.node.ID, p.ID)
		if !ok {
			continue
		}
		if outputs == nil {
			outputs = make(map[string]any)
		}
		outputs[p.ID] = v
	}
	x.recorder.Complete(f.step, outputs)
}

func (x *Execution) top() *frame {
	if len(x.frames) == 0 {
		return nil
	}
	return x.frames[len(x.frames)-1]
}

// Traverse runs every node connected to the exec output pinID, in
// connection order. The calling node's trace step is closed first so that
// its outputs are visible to the nodes downstream.
func (x *Execution) Traverse(ctx context.Context, node *graph.Node, pinID string) error {
	if f := x.top(); f != nil && f.node == node && !f.done {
		x.complete(f)
	}
	for _, c := range x.graph.Outgoing(node.ID, pinID) {
		target, ok := x.graph.Node(c.TargetNodeID)
		if !ok {
			ctxlog.FromContext(ctx).Warn("Connection leads to a missing node, skipping.", "from", node.ID, "pin", pinID, "to", c.TargetNodeID)
			continue
		}
		x.recorder.Traversal(node.ID, pinID, target.ID, c.TargetPinID)
		if err := x.visit(ctx, target); err != nil {
			return err
		}
	}
	return nil
}

// SetOutput publishes an output value of node.
func (x *Execution) SetOutput(node *graph.Node, pinID string, value any) {
	x.memo.Set(node.ID, pinID, value)
}

// Output returns the value downstream nodes read from nodeID:pinID. An
// output override wins over the published value.
func (x *Execution) Output(nodeID, pinID string) (any, bool) {
	if v, ok := x.overrides.Output(nodeID, pinID); ok {
		return v, true
	}
	return x.memo.Get(nodeID, pinID)
}

// Variable returns the current value of a graph variable.
func (x *Execution) Variable(name string) (any, bool) {
	x.varsMu.RLock()
	defer x.varsMu.RUnlock()
	v, ok := x.vars[name]
	return v, ok
}

// SetVariable assigns a graph variable for the rest of the execution.
func (x *Execution) SetVariable(name string, value any) {
	x.varsMu.Lock()
	defer x.varsMu.Unlock()
	x.vars[name] = value
}

// Variables returns a copy of the current variable values.
func (x *Execution) Variables() map[string]any {
	x.varsMu.RLock()
	defer x.varsMu.RUnlock()
	out := make(map[string]any, len(x.vars))
	for k, v := range x.vars {
		out[k] = v
	}
	return out
}

// Scope returns the names a breakpoint condition can refer to.
func (x *Execution) Scope() map[string]any {
	args := x.event.Args
	if args == nil {
		args = map[string]any{}
	}
	data := x.event.Data
	if data == nil {
		data = map[string]any{}
	}
	vars := x.Variables()
	return map[string]any{
		"user": map[string]any{
			"id":       x.event.User.ID,
			"username": x.event.User.Username,
		},
		"args":      args,
		"variables": vars,
		"vars":      vars,
		"event":     data,
	}
}
