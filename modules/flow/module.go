// Package flow holds the control-flow nodes. They decide which exec outputs
// to traverse, how often and in which order; the engine only follows the
// connections they name.
package flow

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/specialistvlad/nodeflow/internal/ctxlog"
	"github.com/specialistvlad/nodeflow/internal/expr"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
)

const (
	TypeBranch   = "flow:branch"
	TypeSequence = "flow:sequence"
	TypeForLoop  = "flow:for_loop"
)

// MaxIterations bounds a single for-loop node.
const MaxIterations = 1000

// ErrTooManyIterations is returned by a loop whose range exceeds MaxIterations.
var ErrTooManyIterations = errors.New("loop range too large")

// ErrBadRange is returned by a loop whose bounds are not finite numbers
// an index can hold.
var ErrBadRange = errors.New("loop bounds out of range")

// maxIndex keeps loop indexes exactly representable as float64.
const maxIndex = 1 << 53

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the flow node types.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Type:        TypeBranch,
		Category:    registry.CategoryFlow,
		Label:       "Branch",
		Description: "Continues on true or false depending on the condition.",
		Inputs: registry.Static(
			registry.ExecIn("exec"),
			registry.DataIn("condition", graph.KindBoolean, true),
		),
		Outputs: registry.Static(registry.ExecOut("true"), registry.ExecOut("false")),
		Execute: branch,
	})
	r.Register(&registry.Definition{
		Type:        TypeSequence,
		Category:    registry.CategoryFlow,
		Label:       "Sequence",
		Description: "Runs each output to completion, in order.",
		Inputs:      registry.Static(registry.ExecIn("exec")),
		Outputs:     sequencePins,
		Execute:     sequence,
	})
	r.Register(&registry.Definition{
		Type:        TypeForLoop,
		Category:    registry.CategoryFlow,
		Label:       "For Loop",
		Description: "Runs the body once per index from first to last, inclusive.",
		Inputs: registry.Static(
			registry.ExecIn("exec"),
			registry.DataIn("first_index", graph.KindNumber, false),
			registry.DataIn("last_index", graph.KindNumber, false),
		),
		Outputs: registry.Static(
			registry.ExecOut("body"),
			registry.ExecOut("completed"),
			registry.DataOut("index", graph.KindNumber),
		),
		Execute: forLoop,
	})
}

func branch(ctx context.Context, n *graph.Node, h registry.Helpers) error {
	raw := h.ResolvePinValue(ctx, n, "condition", false)
	cond, err := expr.AsBool(raw)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Branch condition is not a boolean, taking false.", "node", n.ID, "value", raw)
		cond = false
	}
	if cond {
		return h.Traverse(ctx, n, "true")
	}
	return h.Traverse(ctx, n, "false")
}

func sequence(ctx context.Context, n *graph.Node, h registry.Helpers) error {
	for i := range SequenceSize(n) {
		if err := h.Traverse(ctx, n, graph.IndexedPinID("then", i)); err != nil {
			return err
		}
	}
	return nil
}

func forLoop(ctx context.Context, n *graph.Node, h registry.Helpers) error {
	first, err := expr.AsNumber(h.ResolvePinValue(ctx, n, "first_index", 0.0))
	if err != nil {
		return fmt.Errorf("first_index: %w", err)
	}
	last, err := expr.AsNumber(h.ResolvePinValue(ctx, n, "last_index", 0.0))
	if err != nil {
		return fmt.Errorf("last_index: %w", err)
	}
	for _, b := range []float64{first, last} {
		if math.IsNaN(b) || math.IsInf(b, 0) || math.Abs(b) > maxIndex {
			return fmt.Errorf("%w: %v..%v", ErrBadRange, first, last)
		}
	}
	first, last = math.Trunc(first), math.Trunc(last)
	if last-first+1 > MaxIterations {
		return fmt.Errorf("%w: %v..%v is more than %d iterations", ErrTooManyIterations, first, last, MaxIterations)
	}
	from, to := int64(first), int64(last)
	for i := from; i <= to; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		h.SetOutput(n, "index", float64(i))
		h.Invalidate(n.ID)
		if err := h.Traverse(ctx, n, "body"); err != nil {
			return err
		}
	}
	return h.Traverse(ctx, n, "completed")
}
