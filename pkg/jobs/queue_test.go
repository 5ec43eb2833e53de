package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{MaxRetries: 5, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "drop_repair", Payload: int64(7)}))
	require.NoError(t, q.Drain(context.Background()))

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueCallsExhaustedHook(t *testing.T) {
	exhausted := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		return errors.New("permanent")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond, OnExhausted: func(j Job, err error) { exhausted <- j }})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "drop_repair"}))
	require.NoError(t, q.Drain(context.Background()))

	select {
	case j := <-exhausted:
		assert.Equal(t, "job-1", j.ID)
		assert.Equal(t, 3, j.Attempt)
	default:
		t.Fatal("exhausted hook not called")
	}
}

func TestEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{}))
}

func TestStopReportsBufferedJobs(t *testing.T) {
	var mu sync.Mutex
	var reported []string
	started := make(chan struct{})
	var once sync.Once
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond, OnExhausted: func(j Job, err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, j.ID)
	}})

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	require.NoError(t, q.Enqueue(Job{ID: "job-2"}))
	<-started

	cancel()
	q.Stop()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer drainCancel()
	require.NoError(t, q.Drain(drainCtx))

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"job-1", "job-2"}, reported)
	assert.Error(t, q.Enqueue(Job{ID: "job-3"}))
}

func TestStopAbandonsScheduledRetries(t *testing.T) {
	ran := make(chan struct{}, 1)
	exhausted := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return errors.New("transient")
	}, QueueConfig{MaxRetries: 5, RetryDelay: time.Hour, OnExhausted: func(j Job, err error) { exhausted <- j }})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	<-ran

	q.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, q.Drain(ctx))
	select {
	case j := <-exhausted:
		assert.Equal(t, "job-1", j.ID)
	default:
		t.Fatal("scheduled retry was not reported")
	}
}

func TestDrainHonoursContext(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		<-release
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()
	defer close(release)

	require.NoError(t, q.Enqueue(Job{}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Drain(ctx), context.DeadlineExceeded)
}
