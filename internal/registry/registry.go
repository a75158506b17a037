package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/specialistvlad/nodeflow/internal/graph"
)

// ErrUnknownType is returned when no definition is registered for a type.
var ErrUnknownType = errors.New("unknown node type")

// Module is the interface that groups of node definitions implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the node definitions of a single application instance. It
// is read-mostly and safe for concurrent lookups.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]*Definition
	logger *slog.Logger
}

// New creates an empty registry. A nil logger means slog.Default().
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		defs:   make(map[string]*Definition),
		logger: logger,
	}
}

// Register stores a definition under its type. Registering a type twice
// replaces the previous definition and logs a warning, which keeps hot
// reloading of node modules possible. A malformed definition is a
// programmer error and panics.
func (r *Registry) Register(def *Definition) {
	if err := validateDefinition(def); err != nil {
		panic(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Type]; exists {
		r.logger.Warn("Node type already registered, overwriting.", "type", def.Type)
	} else {
		r.logger.Debug("Registering node type.", "type", def.Type, "category", def.Category)
	}
	r.defs[def.Type] = def
}

// RegisterModules registers every module in order.
func (r *Registry) RegisterModules(modules ...Module) {
	for _, m := range modules {
		m.Register(r)
	}
}

// Get returns the definition for a type.
func (r *Registry) Get(nodeType string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[nodeType]
	return def, ok
}

// Lookup is Get with an error for callers that propagate failures.
func (r *Registry) Lookup(nodeType string) (*Definition, error) {
	def, ok := r.Get(nodeType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, nodeType)
	}
	return def, nil
}

// Types returns all registered types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.defs))
	for t := range r.defs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Triggers returns the types whose nodes start executions for an event.
func (r *Registry) Triggers(event string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var types []string
	for t, def := range r.defs {
		if def.Trigger == event {
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

// Pins implements graph.PinLayout.
func (r *Registry) Pins(n *graph.Node) ([]graph.Pin, []graph.Pin, bool) {
	def, ok := r.Get(n.Type)
	if !ok {
		return nil, nil, false
	}
	return def.InputPins(n), def.OutputPins(n), true
}
