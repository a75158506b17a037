package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Deposit(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(nil, map[string]int{"dirt": 10})

	n, err := r.Deposit(ctx, "dirt", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 6, r.Held("dirt"))

	n, err = r.Deposit(ctx, "dirt", 0)
	require.NoError(t, err)
	assert.Equal(t, 6, n, "zero deposits everything held")

	_, err = r.Deposit(ctx, "dirt", 1)
	assert.ErrorIs(t, err, ErrItemNotFound)

	r.SetOffline(true)
	_, err = r.Deposit(ctx, "stone", 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRecorder_Messages(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(nil, nil)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Chat(ctx, "hi"))
		}()
	}
	wg.Wait()
	require.NoError(t, r.Whisper(ctx, "steve", "psst"))

	msgs := r.Messages()
	require.Len(t, msgs, 11)
	assert.Equal(t, Message{To: "steve", Text: "psst"}, msgs[10])

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, r.Chat(cancelled, "late"), context.Canceled)
}

func TestNewRecorder_CopiesInventory(t *testing.T) {
	inv := map[string]int{"dirt": 1}
	r := NewRecorder(nil, inv)
	inv["dirt"] = 99
	assert.Equal(t, 1, r.Held("dirt"))
}
