// Package http_request lets a graph call out to an HTTP endpoint.
package http_request

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/specialistvlad/nodeflow/internal/ctxlog"
	"github.com/specialistvlad/nodeflow/internal/expr"
	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/registry"
)

const TypeHTTPRequest = "action:http_request"

// maxBody caps how much of a response body is kept.
const maxBody = 1 << 20

// Module implements the registry.Module interface for this package. A nil
// Client gets one with a 30 second timeout.
type Module struct {
	Client *http.Client
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	client := m.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	r.Register(&registry.Definition{
		Type:        TypeHTTPRequest,
		Category:    registry.CategoryAction,
		Label:       "HTTP Request",
		Description: "Sends an HTTP request. Transport errors continue on exec_failed.",
		Inputs: registry.Static(
			registry.ExecIn("exec"),
			registry.DataIn("url", graph.KindString, true),
			registry.DataIn("method", graph.KindString, false),
			registry.DataIn("body", graph.KindWildcard, false),
		),
		Outputs: registry.Static(
			registry.ExecOut("exec"),
			registry.ExecOut("exec_failed"),
			registry.DataOut("status_code", graph.KindNumber),
			registry.DataOut("body", graph.KindString),
		),
		Execute: func(ctx context.Context, n *graph.Node, h registry.Helpers) error {
			return doRequest(ctx, client, n, h)
		},
		Evaluate: func(ctx context.Context, n *graph.Node, pinID string, h registry.Helpers) (any, error) {
			switch pinID {
			case "status_code":
				return 0.0, nil
			case "body":
				return "", nil
			}
			return nil, fmt.Errorf("unknown output %q", pinID)
		},
	})
}

func doRequest(ctx context.Context, client *http.Client, n *graph.Node, h registry.Helpers) error {
	logger := ctxlog.FromContext(ctx).With("node", n.ID)

	url, err := expr.AsString(h.ResolvePinValue(ctx, n, "url", ""))
	if err != nil || url == "" {
		return fmt.Errorf("url is required")
	}
	method, _ := expr.AsString(h.ResolvePinValue(ctx, n, "method", http.MethodGet))
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	contentType := ""
	switch v := h.ResolvePinValue(ctx, n, "body", nil).(type) {
	case nil:
	case string:
		body = strings.NewReader(v)
		contentType = "text/plain; charset=utf-8"
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("body: %w", err)
		}
		body = strings.NewReader(string(raw))
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	logger.Info("Making HTTP request.", "method", method, "url", url)
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("HTTP request failed.", "error", err)
		h.SetOutput(n, "status_code", 0.0)
		h.SetOutput(n, "body", "")
		return h.Traverse(ctx, n, "exec_failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	logger.Info("Received HTTP response.", "status", resp.Status)

	h.SetOutput(n, "status_code", float64(resp.StatusCode))
	h.SetOutput(n, "body", string(respBody))
	return h.Traverse(ctx, n, "exec")
}
