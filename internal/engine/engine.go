package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/nodeflow/internal/agent"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
	"github.com/specialistvlad/nodeflow/internal/trace"
)

// DefaultMaxSteps bounds the number of node visits of one execution.
const DefaultMaxSteps = 10000

// Engine creates executions against a registry of node types. It holds no
// per-execution state and is safe for concurrent use.
type Engine struct {
	registry *registry.Registry
	agent    agent.Adapter
	maxSteps int
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxSteps sets the node visit limit. Zero or less disables it.
func WithMaxSteps(n int) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// WithAgent sets the agent adapter handed to action nodes.
func WithAgent(a agent.Adapter) Option {
	return func(e *Engine) { e.agent = a }
}

// WithClock replaces the clock used for trace timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an engine for the given registry.
func New(reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		maxSteps: DefaultMaxSteps,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the node type registry the engine runs against.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// ExecutionOption configures a single Execution.
type ExecutionOption func(*Execution)

// WithExecutionID sets the execution id. A random UUID is used otherwise.
func WithExecutionID(id string) ExecutionOption {
	return func(x *Execution) { x.id = id }
}

// WithHook installs a hook that runs before every executor.
func WithHook(h BeforeNodeHook) ExecutionOption {
	return func(x *Execution) { x.hook = h }
}

// WithTriggers starts the execution at the given node ids instead of the
// nodes whose type listens for the event.
func WithTriggers(nodeIDs ...string) ExecutionOption {
	return func(x *Execution) { x.triggerIDs = nodeIDs }
}

// WithExecutionAgent overrides the engine's agent adapter for one execution.
func WithExecutionAgent(a agent.Adapter) ExecutionOption {
	return func(x *Execution) { x.agent = a }
}

// WithOverrides seeds the execution with pin overrides.
func WithOverrides(o *Overrides) ExecutionOption {
	return func(x *Execution) { x.overrides = o }
}

// NewExecution prepares, but does not start, an execution of g for ev.
func (e *Engine) NewExecution(g *graph.Graph, ev graph.Event, opts ...ExecutionOption) *Execution {
	x := &Execution{
		engine:    e,
		graph:     g,
		event:     ev,
		agent:     e.agent,
		memo:      NewMemo(),
		overrides: NewOverrides(),
		vars:      g.InitialVariables(),
		resolving: make(map[pinKey]struct{}),
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.id == "" {
		x.id = uuid.NewString()
	}
	x.recorder = trace.NewRecorderWithClock(x.id, g.ID, ev.Name, e.now)
	return x
}

// Run executes g for ev and returns its trace. The trace is returned even
// when err is non-nil.
func (e *Engine) Run(ctx context.Context, g *graph.Graph, ev graph.Event, opts ...ExecutionOption) (*trace.Trace, error) {
	return e.NewExecution(g, ev, opts...).Run(ctx)
}
