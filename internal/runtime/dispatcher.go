package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/specialistvlad/nodeflow/internal/ctxlog"
	"github.com/specialistvlad/nodeflow/internal/debug"
	"github.com/specialistvlad/nodeflow/internal/engine"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/trace"
	"github.com/specialistvlad/nodeflow/internal/tracestore"
)

// DefaultWorkers bounds concurrent executions when Config.Workers is unset.
const DefaultWorkers = 16

var (
	// ErrBusy is returned by Fire when the queue of pending executions is
	// full.
	ErrBusy = errors.New("too many pending executions")
	// ErrClosed is returned by Fire after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// GraphStore loads graphs by id.
type GraphStore interface {
	LoadGraph(ctx context.Context, graphID string) (*graph.Graph, error)
}

// GraphStoreFunc adapts a function to GraphStore.
type GraphStoreFunc func(ctx context.Context, graphID string) (*graph.Graph, error)

// LoadGraph implements GraphStore.
func (f GraphStoreFunc) LoadGraph(ctx context.Context, graphID string) (*graph.Graph, error) {
	return f(ctx, graphID)
}

// Config wires a Dispatcher.
type Config struct {
	Engine *engine.Engine
	Graphs GraphStore
	// Traces receives every finished trace. Nil discards them.
	Traces tracestore.Store
	// Debug routes executions of watched graphs through their hub. Nil
	// disables debugging.
	Debug   *debug.Manager
	Workers int
	// Queue bounds how many executions may wait for a worker. Zero means
	// unbounded.
	Queue  int
	Logger *slog.Logger
}

// Dispatcher runs executions.
type Dispatcher struct {
	engine *engine.Engine
	graphs GraphStore
	traces tracestore.Store
	debug  *debug.Manager
	logger *slog.Logger

	pool *ants.Pool
	wg   sync.WaitGroup

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// New starts a dispatcher. Executions fired on it run under ctx and are
// cancelled when ctx ends or Close is called.
func New(ctx context.Context, cfg Config) (*Dispatcher, error) {
	if cfg.Engine == nil || cfg.Graphs == nil {
		return nil, errors.New("runtime: engine and graph store are required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	d := &Dispatcher{
		engine: cfg.Engine,
		graphs: cfg.Graphs,
		traces: cfg.Traces,
		debug:  cfg.Debug,
		logger: cfg.Logger,
	}
	d.ctx, d.cancel = context.WithCancel(ctxlog.WithLogger(ctx, cfg.Logger))

	opts := []ants.Option{
		ants.WithPanicHandler(func(p any) {
			d.logger.Error("Execution worker panicked.", "panic", p)
		}),
	}
	if cfg.Queue > 0 {
		opts = append(opts, ants.WithMaxBlockingTasks(cfg.Queue))
	}
	pool, err := ants.NewPool(cfg.Workers, opts...)
	if err != nil {
		d.cancel()
		return nil, fmt.Errorf("failed to create execution pool: %w", err)
	}
	d.pool = pool
	d.logger.Debug("Dispatcher started.", "workers", cfg.Workers, "queue", cfg.Queue)
	return d, nil
}

// Execute runs one execution of graphID on the calling goroutine and returns
// its trace. Executions stopped from a debugger return a nil trace and an
// error matching engine.ErrStopped.
func (d *Dispatcher) Execute(ctx context.Context, graphID string, ev graph.Event) (*trace.Trace, error) {
	return d.execute(ctx, uuid.NewString(), graphID, ev)
}

// Fire queues an execution of graphID and returns its execution id without
// waiting for it. The trace can later be fetched from the trace store.
func (d *Dispatcher) Fire(graphID string, ev graph.Event) (string, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return "", ErrClosed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	id := uuid.NewString()
	err := d.pool.Submit(func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Execution panicked.", "execution", id, "graph", graphID, "panic", r)
			}
		}()
		_, _ = d.execute(d.ctx, id, graphID, ev)
	})
	if err != nil {
		d.wg.Done()
		if errors.Is(err, ants.ErrPoolOverload) {
			return "", ErrBusy
		}
		if errors.Is(err, ants.ErrPoolClosed) {
			return "", ErrClosed
		}
		return "", fmt.Errorf("failed to queue execution: %w", err)
	}
	d.logger.Debug("Execution queued.", "execution", id, "graph", graphID, "event", ev.Name)
	return id, nil
}

func (d *Dispatcher) execute(ctx context.Context, id, graphID string, ev graph.Event) (*trace.Trace, error) {
	logger := ctxlog.FromContext(ctx).With("graph", graphID)
	ctx = ctxlog.WithLogger(ctx, logger)

	g, err := d.graphs.LoadGraph(ctx, graphID)
	if err != nil {
		logger.Warn("Graph could not be loaded.", "error", err)
		return nil, fmt.Errorf("loading graph %s: %w", graphID, err)
	}

	tr, err := d.run(ctx, id, g, ev)
	if errors.Is(err, engine.ErrNoTrigger) {
		logger.Debug("Graph has no trigger for event.", "event", ev.Name)
		return nil, err
	}
	if tr != nil && d.traces != nil {
		if serr := d.traces.Save(context.WithoutCancel(ctx), tr); serr != nil {
			logger.Error("Trace could not be stored.", "execution", tr.ExecutionID, "error", serr)
		}
	}
	return tr, err
}

// run goes through the debug hub when the graph is watched. An execution
// that finds the hub busy with another session is queued until the hub is
// idle; one that finds no observers left runs without breakpoints.
func (d *Dispatcher) run(ctx context.Context, id string, g *graph.Graph, ev graph.Event) (*trace.Trace, error) {
	opt := engine.WithExecutionID(id)
	if d.debug == nil || !d.debug.Watched(g.ID) {
		return d.engine.Run(ctx, g, ev, opt)
	}
	hub := d.debug.Hub(g.ID)
	for {
		tr, err := hub.Run(ctx, d.engine, g, ev, opt)
		switch {
		case errors.Is(err, debug.ErrNoObservers):
			return d.engine.Run(ctx, g, ev, opt)
		case errors.Is(err, debug.ErrSessionBusy):
			ctxlog.FromContext(ctx).Info("Graph is being debugged, execution queued.", "execution", id)
			if err := hub.WaitIdle(ctx); err != nil {
				return nil, err
			}
			continue
		}
		return tr, err
	}
}

// Wait blocks until every fired execution has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Running returns the number of executions currently holding a worker.
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Close stops accepting executions, cancels the running ones and waits for
// them to return.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	d.pool.Release()
	d.logger.Debug("Dispatcher closed.")
}
