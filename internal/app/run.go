package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/specialistvlad/nodeflow/internal/ctxlog"
	"github.com/specialistvlad/nodeflow/internal/runtime"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long in-flight requests get on shutdown.
const shutdownTimeout = 5 * time.Second

// Run serves until ctx is cancelled or the server fails. On the way out it
// stops debug sessions, drains executions and closes the trace store.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")
	defer func() {
		if err := a.traces.Close(); err != nil {
			a.logger.Error("Trace store close failed.", "error", err)
		}
	}()

	dispatcher, err := runtime.New(ctx, runtime.Config{
		Engine:  a.engine,
		Graphs:  a.graphs,
		Traces:  a.traces,
		Debug:   a.debug,
		Workers: a.config.Workers,
		Queue:   a.config.Queue,
		Logger:  a.logger,
	})
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	ln, err := net.Listen("tcp", a.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.config.Listen, err)
	}
	a.addr = ln.Addr().String()
	srv := &http.Server{
		Handler:           a.handler(dispatcher),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("🚀 Server starting.", "address", a.addr, "graphs", a.config.GraphsPath, "traces", a.config.Traces)
		close(a.ready)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("🛑 Shutting down server...")
		a.debug.StopAll()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Server shutdown failed.", "error", err)
			return err
		}
		return nil
	})

	err = g.Wait()
	a.logger.Info("🏁 Server stopped.")
	return err
}
