package tracestore

import (
	"context"
	"errors"

	"github.com/specialistvlad/nodeflow/internal/trace"
)

// ErrNotFound is returned by Get for an unknown execution id.
var ErrNotFound = errors.New("trace not found")

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 50

// Store retains finished traces.
type Store interface {
	Save(ctx context.Context, t *trace.Trace) error
	Get(ctx context.Context, executionID string) (*trace.Trace, error)
	// List returns summaries newest first. An empty graphID lists every
	// graph.
	List(ctx context.Context, graphID string, limit int) ([]trace.Summary, error)
	Close() error
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
