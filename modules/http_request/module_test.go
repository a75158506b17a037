package http_request

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/specialistvlad/nodeflow/internal/graph"
	"github.com/specialistvlad/nodeflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRequest(t *testing.T) {
	var gotMethod, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotMethod, gotType, gotBody = r.Method, r.Header.Get("Content-Type"), string(raw)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	ctx, _ := testutil.Context(t)

	t.Run("get", func(t *testing.T) {
		h := &testutil.Helpers{}
		n := &graph.Node{ID: "req", Data: map[string]any{"url": srv.URL}}
		require.NoError(t, doRequest(ctx, srv.Client(), n, h))
		assert.Equal(t, http.MethodGet, gotMethod)
		assert.Equal(t, []string{"exec"}, h.Traversed)
		assert.Equal(t, 201.0, h.Outputs["status_code"])
		assert.Equal(t, "ok", h.Outputs["body"])
	})

	t.Run("post object as json", func(t *testing.T) {
		h := &testutil.Helpers{Inputs: map[string]any{"body": map[string]any{"a": 1.0}}}
		n := &graph.Node{ID: "req", Data: map[string]any{"url": srv.URL, "method": "post"}}
		require.NoError(t, doRequest(ctx, srv.Client(), n, h))
		assert.Equal(t, http.MethodPost, gotMethod)
		assert.Equal(t, "application/json", gotType)
		assert.JSONEq(t, `{"a":1}`, gotBody)
	})

	t.Run("unreachable", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		url := dead.URL
		dead.Close()

		h := &testutil.Helpers{}
		require.NoError(t, doRequest(ctx, http.DefaultClient, &graph.Node{ID: "req", Data: map[string]any{"url": url}}, h))
		assert.Equal(t, []string{"exec_failed"}, h.Traversed)
		assert.Equal(t, 0.0, h.Outputs["status_code"])
	})

	t.Run("missing url", func(t *testing.T) {
		require.Error(t, doRequest(ctx, srv.Client(), &graph.Node{ID: "req"}, &testutil.Helpers{}))
	})
}
