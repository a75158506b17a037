// Package events holds the trigger nodes that start an execution.
package events

import (
	"context"

	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
)

const (
	TypeCommand = "event:command"
	TypeChat    = "event:chat"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the trigger node types.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Type:        TypeCommand,
		Category:    registry.CategoryEvent,
		Label:       "On Command",
		Description: "Fires when a user runs the command bound to this graph.",
		Trigger:     "command",
		Outputs: registry.Static(
			registry.ExecOut("exec"),
			registry.DataOut("username", graph.KindString),
			registry.DataOut("args", graph.KindObject),
		),
		Execute: onCommand,
	})
	r.Register(&registry.Definition{
		Type:        TypeChat,
		Category:    registry.CategoryEvent,
		Label:       "On Chat",
		Description: "Fires for every chat message the agent receives.",
		Trigger:     "chat",
		Outputs: registry.Static(
			registry.ExecOut("exec"),
			registry.DataOut("username", graph.KindString),
			registry.DataOut("message", graph.KindString),
		),
		Execute: onChat,
	})
}

func onCommand(ctx context.Context, n *graph.Node, h registry.Helpers) error {
	ev := h.Event()
	args := ev.Args
	if args == nil {
		args = map[string]any{}
	}
	h.SetOutput(n, "username", ev.User.Username)
	h.SetOutput(n, "args", args)
	return h.Traverse(ctx, n, "exec")
}

func onChat(ctx context.Context, n *graph.Node, h registry.Helpers) error {
	ev := h.Event()
	message, _ := ev.Data["message"].(string)
	h.SetOutput(n, "username", ev.User.Username)
	h.SetOutput(n, "message", message)
	return h.Traverse(ctx, n, "exec")
}
