package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/nodeflow/internal/agent"
	"github.com/specialistvlad/nodeflow/internal/debug"
	"github.com/specialistvlad/nodeflow/internal/engine"
	"github.com/specialistvlad/nodeflow/internal/graphfile"
	"github.com/specialistvlad/nodeflow/internal/httpapi"
	"github.com/specialistvlad/nodeflow/internal/registry"
	"github.com/specialistvlad/nodeflow/internal/tracestore"
	"github.com/specialistvlad/nodeflow/internal/transport"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	config   *Config
	logger   *slog.Logger
	registry *registry.Registry
	engine   *engine.Engine
	agent    *agent.Recorder
	graphs   *graphfile.Dir
	traces   tracestore.Store
	debug    *debug.Manager
	socket   *transport.Server

	ready chan struct{}
	addr  string
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Modules default to every built-in node module.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	reg := registry.New(logger)
	if len(modules) == 0 {
		modules = coreModules
	}
	reg.RegisterModules(modules...)
	logger.Debug("All node modules registered.", "modules", len(modules), "types", len(reg.Types()))

	traces, err := openTraceStore(cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("Trace store opened.", "kind", cfg.Traces)

	rec := agent.NewRecorder(logger, cfg.Inventory)
	manager := debug.NewManager(logger, nil)

	return &App{
		outW:     outW,
		config:   cfg,
		logger:   logger,
		registry: reg,
		engine:   engine.New(reg, engine.WithMaxSteps(cfg.MaxSteps), engine.WithAgent(rec)),
		agent:    rec,
		graphs:   graphfile.NewDir(cfg.GraphsPath, graphfile.WithValidation(reg), graphfile.WithLogger(logger)),
		traces:   traces,
		debug:    manager,
		socket:   transport.NewServer(manager, logger, cfg.CORSOrigins),
		ready:    make(chan struct{}),
	}, nil
}

func openTraceStore(cfg *Config) (tracestore.Store, error) {
	switch cfg.Traces {
	case TracesSQLite:
		s, err := tracestore.OpenSQLite(context.Background(), cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace store: %w", err)
		}
		return s, nil
	default:
		return tracestore.NewMemory(cfg.TraceCapacity), nil
	}
}

// handler builds the HTTP surface around exec.
func (a *App) handler(exec httpapi.Executor) http.Handler {
	return httpapi.New(httpapi.Config{
		Registry:    a.registry,
		Executor:    exec,
		Traces:      a.traces,
		Graphs:      a.graphs,
		Debug:       a.debug,
		Socket:      a.socket.Handler(),
		SocketPath:  transport.Path,
		CORSOrigins: a.config.CORSOrigins,
		Logger:      a.logger,
	}).Handler()
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Agent returns the built-in agent.
func (a *App) Agent() *agent.Recorder {
	return a.agent
}

// Ready is closed once the HTTP server is listening.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Addr returns the address the server listens on. It is only valid after
// Ready is closed.
func (a *App) Addr() string {
	return a.addr
}
