package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/nodeflow/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, err.Error(), "unknown flag: --this-is-not-a-valid-flag")
}

func TestRun_InvalidConfigFile(t *testing.T) {
	t.Parallel()

	// Missing closing brace.
	path := filepath.Join(t.TempDir(), "nodeflow.hcl")
	require.NoError(t, os.WriteFile(path, []byte("server {\n  listen = \":9000\"\n"), 0o600))

	err := run(context.Background(), &bytes.Buffer{}, []string{"-c", path})
	require.Error(t, err)
}

func TestRun_StartupFailure(t *testing.T) {
	t.Parallel()

	// The parent directory of the database does not exist.
	dbPath := filepath.Join(t.TempDir(), "missing", "traces.db")
	err := run(context.Background(), &bytes.Buffer{}, []string{"--traces", "sqlite", "--sqlite-path", dbPath})
	require.ErrorContains(t, err, "failed to open trace store")
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, &bytes.Buffer{}, []string{"--listen", "127.0.0.1:0", "--graphs", t.TempDir()})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}
