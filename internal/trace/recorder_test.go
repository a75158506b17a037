package trace

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances one millisecond per call.
func fakeClock() func() time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func TestRecorder_StepsAndPlayback(t *testing.T) {
	r := NewRecorderWithClock("exec-1", "graph-1", "command", fakeClock())

	trigger := r.Begin("t", "event:command", nil)
	r.Complete(trigger, map[string]any{"user": "alex"})
	r.Traversal("t", "exec", "b", "exec")
	branch := r.Begin("b", "flow:branch", map[string]any{"condition": true})
	r.Complete(branch, nil)
	r.Traversal("b", "true", "l", "exec")
	log := r.Begin("l", "action:log", map[string]any{"message": "big"})
	r.Fail(log, errors.New("boom"))

	steps := r.Steps()
	require.Len(t, steps, 5)
	for i, s := range steps {
		assert.Equal(t, i, s.Index, "indexes are monotonic")
	}
	assert.Equal(t, KindTraversal, steps[1].Kind)
	assert.Equal(t, time.Millisecond, steps[0].Duration)
	assert.Equal(t, StatusError, steps[4].Status)
	assert.Equal(t, "boom", steps[4].Error)
	assert.Equal(t, 3, r.Executed())

	tr := r.Finish(RunFailed, errors.New("boom"))
	assert.Equal(t, RunFailed, tr.Status)
	assert.Equal(t, []string{"t", "b", "l"}, tr.ExecutedNodes())

	frames := tr.Playback()
	require.Len(t, frames, 3)
	assert.Equal(t, 1, frames[0].Number)
	assert.Equal(t, 3, frames[2].Total)
	assert.Equal(t, "l", frames[2].Step.NodeID)

	sum := tr.Summarize()
	assert.Equal(t, 3, sum.Steps)
	assert.Equal(t, "exec-1", sum.ExecutionID)
}

func TestRecorder_SnapshotsAreCopies(t *testing.T) {
	r := NewRecorder("e", "g", "chat")
	inputs := map[string]any{"a": 1}
	idx := r.Begin("n", "x", inputs)
	inputs["a"] = 2

	snap := r.Steps()
	snap[idx].NodeID = "changed"

	again := r.Steps()
	assert.Equal(t, "n", again[idx].NodeID)
	assert.Equal(t, 1, again[idx].Inputs["a"])

	r.Complete(99, nil)
	r.Fail(-1, nil)
	assert.Len(t, r.Steps(), 1, "out of range indexes are ignored")
}
