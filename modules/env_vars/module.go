// Package env_vars exposes process environment variables to graphs.
package env_vars

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
)

const TypeEnvVar = "data:env_var"

// Module implements the registry.Module interface for this package. Lookup
// defaults to os.LookupEnv.
type Module struct {
	Lookup func(string) (string, bool)
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	lookup := m.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	r.Register(&registry.Definition{
		Type:        TypeEnvVar,
		Category:    registry.CategoryData,
		Label:       "Environment Variable",
		Description: "Reads an environment variable of the server process.",
		Inputs:      registry.Static(registry.DataIn("default", graph.KindString, false)),
		Outputs: registry.Static(
			registry.DataOut("value", graph.KindString),
			registry.DataOut("present", graph.KindBoolean),
		),
		Evaluate: func(ctx context.Context, n *graph.Node, pinID string, h registry.Helpers) (any, error) {
			name, _ := n.Data["name"].(string)
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, fmt.Errorf("node %s has no variable name", n.ID)
			}
			v, ok := lookup(name)
			if pinID == "present" {
				return ok, nil
			}
			if !ok {
				return h.ResolvePinValue(ctx, n, "default", ""), nil
			}
			return v, nil
		},
	})
}
