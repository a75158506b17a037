package app

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/specialistvlad/nodeflow/internal/agent"
	"github.com/specialistvlad/nodeflow/internal/testutil"
	"github.com/specialistvlad/nodeflow/internal/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greeterGraph = `
id: greeter
nodes:
  - id: cmd
    type: event:command
  - id: say
    type: action:send_message
    data:
      message: hello
connections:
  - {sourceNodeId: cmd, sourcePinId: exec, targetNodeId: say, targetPinId: exec}
`

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greeter.yaml"), []byte(greeterGraph), 0o600))

	cfg := DefaultConfig()
	cfg.GraphsPath = dir
	cfg.Listen = "127.0.0.1:0"
	cfg.LogLevel = "debug"
	cfg.LogFormat = "text"
	cfg.Traces = TracesSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "traces.db")
	out, err := NewConfig(cfg)
	require.NoError(t, err)
	return out
}

func TestNewConfig(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "upper case level", mutate: func(c *Config) { c.LogLevel = "DEBUG" }},
		{name: "no graphs path", mutate: func(c *Config) { c.GraphsPath = "" }, wantErr: "GraphsPath"},
		{name: "bad format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "invalid log-format"},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "invalid log-level"},
		{name: "no workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: "workers must be positive"},
		{name: "bad store", mutate: func(c *Config) { c.Traces = "redis" }, wantErr: "invalid trace store"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Traces = TracesSQLite; c.SQLitePath = "" }, wantErr: "database path"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			got, err := NewConfig(cfg)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.ToLower(cfg.LogLevel), got.LogLevel)
		})
	}
}

func TestApplyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodeflow.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
server {
  listen       = ":9090"
  cors_origins = ["http://editor.local"]
}
engine {
  max_steps = 500
}
storage {
  traces      = "sqlite"
  sqlite_path = "/tmp/traces.db"
}
graphs {
  path = "./bots"
}
agent {
  inventory = { cobblestone = 64 }
}
`), 0o600))

	cfg := DefaultConfig()
	require.NoError(t, ApplyFile(path, &cfg))
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, []string{"http://editor.local"}, cfg.CORSOrigins)
	assert.Equal(t, 500, cfg.MaxSteps)
	assert.Equal(t, DefaultConfig().Workers, cfg.Workers, "unset values are kept")
	assert.Equal(t, TracesSQLite, cfg.Traces)
	assert.Equal(t, "./bots", cfg.GraphsPath)
	assert.Equal(t, map[string]int{"cobblestone": 64}, cfg.Inventory)
	assert.Equal(t, path, cfg.ConfigFile)

	bad := filepath.Join(t.TempDir(), "bad.hcl")
	require.NoError(t, os.WriteFile(bad, []byte(`surprise { }`), 0o600))
	assert.Error(t, ApplyFile(bad, &cfg))

	broken := filepath.Join(t.TempDir(), "broken.hcl")
	require.NoError(t, os.WriteFile(broken, []byte(`server {`), 0o600))
	err := ApplyFile(broken, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestApp_ServesAndRunsGraphs(t *testing.T) {
	cfg := testConfig(t)
	logs := &testutil.SafeBuffer{}
	a, err := NewApp(logs, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if os.Getenv("NODEFLOW_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case <-a.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	base := "http://" + a.Addr()

	res, err := http.Get(base + "/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Post(base+"/api/graphs/greeter/trigger", "application/json", strings.NewReader(`{"user":{"username":"alex"}}`))
	require.NoError(t, err)
	var tr trace.Trace
	require.NoError(t, json.NewDecoder(res.Body).Decode(&tr))
	res.Body.Close()
	assert.Equal(t, trace.RunCompleted, tr.Status)
	assert.Equal(t, []agent.Message{{Text: "hello"}}, a.Agent().Messages())

	res, err = http.Get(base + "/api/traces/" + tr.ExecutionID)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode, "trace is persisted")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Contains(t, logs.String(), "Server stopped.")
}

func TestNewApp_RegistersCoreModules(t *testing.T) {
	a, err := NewApp(&testutil.SafeBuffer{}, testConfig(t))
	require.NoError(t, err)
	types := a.Registry().Types()
	for _, want := range []string{"event:command", "flow:branch", "flow:sequence", "action:send_message", "convert:to_string", "variable:get", "data:env_var", "action:http_request"} {
		assert.Contains(t, types, want)
	}
	require.NoError(t, a.traces.Close())
}
