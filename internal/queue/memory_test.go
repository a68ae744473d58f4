package queue

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_FullIsNonBlocking(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Request{JobID: "1"}))
	require.NoError(t, q.Enqueue(ctx, Request{JobID: "2"}))
	err := q.Enqueue(ctx, Request{JobID: "3"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 2, q.Depth())
}

func TestMemoryQueue_ConsumeDrainsAfterClose(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, Request{JobID: id}))
	}
	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Enqueue(ctx, Request{JobID: "d"}), ErrClosed)

	var got []string
	err := q.Consume(ctx, func(_ context.Context, r Request) {
		got = append(got, r.JobID)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestMemoryQueue_ConsumeStopsOnCancel(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- q.Consume(ctx, func(context.Context, Request) {}) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Consume did not return after cancel")
	}
}

func TestMemoryQueue_ConcurrentConsumers(t *testing.T) {
	q := NewMemoryQueue(100)
	ctx := context.Background()
	for i := range 50 {
		require.NoError(t, q.Enqueue(ctx, Request{ChunkSize: i}))
	}
	require.NoError(t, q.Close())

	var mu sync.Mutex
	seen := map[int]bool{}
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Consume(ctx, func(_ context.Context, r Request) {
				mu.Lock()
				seen[r.ChunkSize] = true
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestRequest_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(Request{JobID: "j", DocumentID: "d", MultiLabel: true})
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "j", m["job_id"])
	assert.Equal(t, "d", m["document_id"])
	assert.Equal(t, true, m["multi_label"])
}
