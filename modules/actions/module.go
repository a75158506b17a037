// Package actions holds the nodes with side effects on the agent. Expected
// failures, such as an offline agent or a missing item, continue on the
// exec_failed output instead of failing the execution.
package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/nodeflow/internal/agent"
	"github.com/specialistvlad/nodeflow/internal/ctxlog"
	"github.com/specialistvlad/nodeflow/internal/expr"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
)

const (
	TypeLog         = "action:log"
	TypeSendMessage = "action:send_message"
	TypeDeposit     = "action:deposit"
)

// ErrNoAgent is returned when an action runs without an agent adapter.
var ErrNoAgent = errors.New("no agent attached to the execution")

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the action node types.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Type:        TypeLog,
		Category:    registry.CategoryAction,
		Label:       "Log",
		Description: "Writes a message to the server log.",
		Inputs: registry.Static(
			registry.ExecIn("exec"),
			registry.DataIn("message", graph.KindWildcard, false),
		),
		Outputs: registry.Static(
			registry.ExecOut("exec"),
			registry.DataOut("message", graph.KindString),
		),
		Execute: logMessage,
	})
	r.Register(&registry.Definition{
		Type:        TypeSendMessage,
		Category:    registry.CategoryAction,
		Label:       "Send Message",
		Description: "Says a message in chat, or whispers it when a recipient is set.",
		Inputs: registry.Static(
			registry.ExecIn("exec"),
			registry.DataIn("message", graph.KindString, true),
			registry.DataIn("recipient", graph.KindString, false),
		),
		Outputs: registry.Static(
			registry.ExecOut("exec"),
			registry.ExecOut("exec_failed"),
		),
		Execute: sendMessage,
	})
	r.Register(&registry.Definition{
		Type:        TypeDeposit,
		Category:    registry.CategoryAction,
		Label:       "Deposit",
		Description: "Deposits items into the nearest container. A count of zero deposits everything held.",
		Inputs: registry.Static(
			registry.ExecIn("exec"),
			registry.DataIn("item", graph.KindString, true),
			registry.DataIn("count", graph.KindNumber, false),
		),
		Outputs: registry.Static(
			registry.ExecOut("exec"),
			registry.ExecOut("exec_failed"),
			registry.DataOut("success", graph.KindBoolean),
			registry.DataOut("count", graph.KindNumber),
		),
		Execute:  deposit,
		Evaluate: depositDefaults,
	})
}

func logMessage(ctx context.Context, n *graph.Node, h registry.Helpers) error {
	raw := h.ResolvePinValue(ctx, n, "message", "")
	msg, err := expr.AsString(raw)
	if err != nil {
		msg = fmt.Sprint(raw)
	}
	ctxlog.FromContext(ctx).Info("Graph log.", "node", n.ID, "message", msg)
	h.SetOutput(n, "message", msg)
	return h.Traverse(ctx, n, "exec")
}

func sendMessage(ctx context.Context, n *graph.Node, h registry.Helpers) error {
	logger := ctxlog.FromContext(ctx).With("node", n.ID)
	msg, err := expr.AsString(h.ResolvePinValue(ctx, n, "message", ""))
	if err != nil {
		return fmt.Errorf("message: %w", err)
	}
	recipient, _ := expr.AsString(h.ResolvePinValue(ctx, n, "recipient", ""))

	a := h.Agent()
	if a == nil {
		logger.Warn("Cannot send message.", "error", ErrNoAgent)
		return h.Traverse(ctx, n, "exec_failed")
	}
	if recipient != "" {
		err = a.Whisper(ctx, recipient, msg)
	} else {
		err = a.Chat(ctx, msg)
	}
	if err != nil {
		logger.Warn("Sending message failed.", "error", err)
		return h.Traverse(ctx, n, "exec_failed")
	}
	return h.Traverse(ctx, n, "exec")
}

func deposit(ctx context.Context, n *graph.Node, h registry.Helpers) error {
	logger := ctxlog.FromContext(ctx).With("node", n.ID)
	item, err := expr.AsString(h.ResolvePinValue(ctx, n, "item", ""))
	if err != nil || item == "" {
		return errors.New("item is required")
	}
	count, err := expr.AsNumber(h.ResolvePinValue(ctx, n, "count", 0.0))
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}

	fail := func(err error) error {
		logger.Warn("Deposit failed.", "item", item, "error", err)
		h.SetOutput(n, "success", false)
		h.SetOutput(n, "count", 0.0)
		return h.Traverse(ctx, n, "exec_failed")
	}

	a := h.Agent()
	if a == nil {
		return fail(ErrNoAgent)
	}
	deposited, err := a.Deposit(ctx, item, int(count))
	if err != nil {
		if errors.Is(err, agent.ErrItemNotFound) || errors.Is(err, agent.ErrUnavailable) {
			return fail(err)
		}
		return err
	}
	h.SetOutput(n, "success", true)
	h.SetOutput(n, "count", float64(deposited))
	return h.Traverse(ctx, n, "exec")
}

// depositDefaults answers reads of the outputs before the node has run.
func depositDefaults(ctx context.Context, n *graph.Node, pinID string, h registry.Helpers) (any, error) {
	switch pinID {
	case "success":
		return false, nil
	case "count":
		return 0.0, nil
	}
	return nil, fmt.Errorf("unknown output %q", pinID)
}
