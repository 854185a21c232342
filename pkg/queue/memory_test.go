package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue(t *testing.T) {
	q := NewInMemoryQueue[int](2)
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	assert.ErrorIs(t, q.Enqueue(3), ErrQueueFull)
	assert.Equal(t, 2, q.Size())

	items, err := q.ReadAllMessages()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, items)

	items, err = q.ReadAllMessages()
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, q.Enqueue(4))
	q.ClearQueue()
	assert.Equal(t, 0, q.Size())
}

func TestInMemoryQueue_Dequeue(t *testing.T) {
	q := NewInMemoryQueue[string](0)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.Enqueue("turn")
	}()
	item, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "turn", item)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
