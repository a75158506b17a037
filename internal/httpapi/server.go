// Package httpapi is the HTTP surface of the server: health, node type
// catalogue, graph listing and validation, trigger firing and trace
// playback. The debug transport is mounted next to it.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/specialistvlad/nodeflow/internal/convert"
	"github.com/specialistvlad/nodeflow/internal/debug"
	"github.com/specialistvlad/nodeflow/internal/engine"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/graphfile"
	"github.com/specialistvlad/nodeflow/internal/registry"
	"github.com/specialistvlad/nodeflow/internal/runtime"
	"github.com/specialistvlad/nodeflow/internal/trace"
	"github.com/specialistvlad/nodeflow/internal/tracestore"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Executor runs graphs. *runtime.Dispatcher implements it.
type Executor interface {
	Execute(ctx context.Context, graphID string, ev graph.Event) (*trace.Trace, error)
	Fire(graphID string, ev graph.Event) (string, error)
}

// GraphLister lists the graphs the server can run.
type GraphLister interface {
	List(ctx context.Context) ([]graphfile.Summary, error)
}

// Config wires a Server. Graphs, Debug and Socket are optional.
type Config struct {
	Registry    *registry.Registry
	Executor    Executor
	Traces      tracestore.Store
	Graphs      GraphLister
	Debug       *debug.Manager
	Socket      http.Handler
	SocketPath  string
	CORSOrigins []string
	Logger      *slog.Logger
}

// Server routes HTTP requests.
type Server struct {
	cfg    Config
	router *mux.Router
	logger *slog.Logger
}

// New returns a server with every route registered.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	s := &Server{cfg: cfg, router: mux.NewRouter(), logger: cfg.Logger}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/nodes", s.handleNodes).Methods(http.MethodGet)
	api.HandleFunc("/convert", s.handleConvert).Methods(http.MethodGet)
	api.HandleFunc("/graphs", s.handleGraphs).Methods(http.MethodGet)
	api.HandleFunc("/graphs/validate", s.handleValidate).Methods(http.MethodPost)
	api.HandleFunc("/graphs/{graphId}/trigger", s.handleTrigger).Methods(http.MethodPost)
	api.HandleFunc("/graphs/{graphId}/debug", s.handleDebugState).Methods(http.MethodGet)
	api.HandleFunc("/traces", s.handleTraces).Methods(http.MethodGet)
	api.HandleFunc("/traces/{executionId}", s.handleTrace).Methods(http.MethodGet)
	api.HandleFunc("/traces/{executionId}/playback", s.handlePlayback).Methods(http.MethodGet)

	if s.cfg.Socket != nil && s.cfg.SocketPath != "" {
		s.router.PathPrefix(s.cfg.SocketPath).Handler(s.cfg.Socket)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// NodeType is the catalogue entry of one node type.
type NodeType struct {
	Type        string            `json:"type"`
	Category    registry.Category `json:"category"`
	Label       string            `json:"label,omitempty"`
	Description string            `json:"description,omitempty"`
	Trigger     string            `json:"trigger,omitempty"`
	Inputs      []graph.Pin       `json:"inputs"`
	Outputs     []graph.Pin       `json:"outputs"`
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	types := s.cfg.Registry.Types()
	out := make([]NodeType, 0, len(types))
	for _, t := range types {
		def, ok := s.cfg.Registry.Get(t)
		if !ok {
			continue
		}
		zero := &graph.Node{Type: t}
		out = append(out, NodeType{
			Type:        def.Type,
			Category:    def.Category,
			Label:       def.Label,
			Description: def.Description,
			Trigger:     def.Trigger,
			Inputs:      def.InputPins(zero),
			Outputs:     def.OutputPins(zero),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	from := graph.PinKind(r.URL.Query().Get("from"))
	to := graph.PinKind(r.URL.Query().Get("to"))
	chain, err := convert.Chain(from, to)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if chain == nil {
		chain = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"from": from, "to": to, "chain": chain})
}

func (s *Server) handleGraphs(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Graphs == nil {
		s.writeJSON(w, http.StatusOK, []graphfile.Summary{})
		return
	}
	list, err := s.cfg.Graphs.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var g graph.Graph
	if err := s.decode(r, &g); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := graph.Validate(&g, s.cfg.Registry); err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

// triggerRequest is the body of a trigger call. Name defaults to
// "command".
type triggerRequest struct {
	graph.Event
	Async bool `json:"async,omitempty"`
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	graphID := mux.Vars(r)["graphId"]
	var req triggerRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" {
		req.Name = "command"
	}

	if req.Async {
		id, err := s.cfg.Executor.Fire(graphID, req.Event)
		if err != nil {
			s.writeError(w, statusFor(err), err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]string{"executionId": id})
		return
	}

	tr, err := s.cfg.Executor.Execute(r.Context(), graphID, req.Event)
	if err != nil && tr == nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	// Failed executions still have a trace worth returning.
	s.writeJSON(w, http.StatusOK, tr)
}

func (s *Server) handleDebugState(w http.ResponseWriter, r *http.Request) {
	graphID := mux.Vars(r)["graphId"]
	if s.cfg.Debug == nil {
		s.writeJSON(w, http.StatusOK, debug.State{GraphID: graphID})
		return
	}
	hub, ok := s.cfg.Debug.Lookup(graphID)
	if !ok {
		s.writeJSON(w, http.StatusOK, debug.State{GraphID: graphID, Breakpoints: []debug.Breakpoint{}, ConnectedUsers: []graph.User{}})
		return
	}
	s.writeJSON(w, http.StatusOK, hub.State())
}

func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	list, err := s.cfg.Traces.List(r.Context(), r.URL.Query().Get("graph"), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []trace.Summary{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	tr, ok := s.loadTrace(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, tr)
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	tr, ok := s.loadTrace(w, r)
	if !ok {
		return
	}
	frames := tr.Playback()
	if step := r.URL.Query().Get("step"); step != "" {
		n, err := strconv.Atoi(step)
		if err != nil || n < 1 || n > len(frames) {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("step %q out of range 1..%d", step, len(frames)))
			return
		}
		s.writeJSON(w, http.StatusOK, frames[n-1])
		return
	}
	s.writeJSON(w, http.StatusOK, frames)
}

func (s *Server) loadTrace(w http.ResponseWriter, r *http.Request) (*trace.Trace, bool) {
	tr, err := s.cfg.Traces.Get(r.Context(), mux.Vars(r)["executionId"])
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return nil, false
	}
	return tr, true
}

func (s *Server) decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tracestore.ErrNotFound), errors.Is(err, graphfile.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNoTrigger):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrStopped):
		return http.StatusConflict
	case errors.Is(err, runtime.ErrBusy), errors.Is(err, runtime.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, graph.ErrInvalidGraph):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response.", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("Request failed.", "status", status, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
