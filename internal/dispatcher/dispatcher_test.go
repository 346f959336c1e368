package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitebaker/internal/site"
	"github.com/JakeFAU/sitebaker/internal/storage/memory"
	"github.com/JakeFAU/sitebaker/internal/worker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestDispatcherRunStartsWorkers ensures workers begin dequeuing and stop on cancel.
func TestDispatcherRunStartsWorkers(t *testing.T) {
	queue := &blockingQueue{started: make(chan struct{}, 1)}
	w := worker.New(queue, memory.NewJobStore(), nil, nil, nil, worker.Config{}, zap.NewNop())
	dispatch := New(queue, []Runner{w})
	assert.False(t, dispatch.Running())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	select {
	case <-queue.started:
	case <-time.After(time.Second):
		t.Fatal("worker did not begin dequeuing")
	}
	require.Eventually(t, dispatch.Running, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
	assert.False(t, dispatch.Running())
}

// TestDispatcherEnqueueForwardsErrors verifies queue errors are wrapped for callers.
func TestDispatcherEnqueueForwardsErrors(t *testing.T) {
	boom := errors.New("boom")
	dispatch := New(&errorQueue{err: boom}, nil)

	err := dispatch.Enqueue(context.Background(), site.QueueItem{JobID: "job"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "queue enqueue: boom", err.Error())
}

type blockingQueue struct {
	started chan struct{}
}

func (q *blockingQueue) Enqueue(context.Context, site.QueueItem) error {
	return nil
}

func (q *blockingQueue) Dequeue(ctx context.Context) (site.QueueItem, error) {
	select {
	case q.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return site.QueueItem{}, fmt.Errorf("blocking dequeue canceled: %w", ctx.Err())
}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(context.Context, site.QueueItem) error {
	return q.err
}

func (q *errorQueue) Dequeue(context.Context) (site.QueueItem, error) {
	return site.QueueItem{}, nil
}
