package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btc-scenario-lab/internal/domain"
)

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, domain.RunRequest{SimulationID: "a"}))
	require.NoError(t, q.Enqueue(ctx, domain.RunRequest{SimulationID: "b"}))
	assert.Equal(t, 2, q.Len())

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", first.Request.SimulationID)
	require.NoError(t, q.Ack(ctx, first))

	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", second.Request.SimulationID)
}

func TestMemoryQueue_DequeueHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		done <- err
	}()

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after Close")
	}

	assert.ErrorIs(t, q.Enqueue(ctx, domain.RunRequest{SimulationID: "x"}), ErrClosed)
}

func TestMemoryQueue_EnqueueBlocksWhenFull(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), domain.RunRequest{SimulationID: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, domain.RunRequest{SimulationID: "b"}), context.DeadlineExceeded)
}

func TestNewKafkaQueue_Validation(t *testing.T) {
	_, err := NewKafkaQueue(KafkaConfig{Topic: "runs"}, nil)
	assert.Error(t, err)

	_, err = NewKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	assert.Error(t, err)

	q, err := NewKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "runs", GroupID: "lab"}, nil)
	require.NoError(t, err)
	assert.Error(t, q.Ack(context.Background(), &Message{}))
	_ = q.Close()
}
