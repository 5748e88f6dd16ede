package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mitesh006/Code-duel-backend/internal/models"
	"github.com/mitesh006/Code-duel-backend/internal/queue"
	mockqueue "github.com/mitesh006/Code-duel-backend/internal/queue/mock"
	"github.com/mitesh006/Code-duel-backend/internal/ratelimit"
	"github.com/mitesh006/Code-duel-backend/internal/types"
	"github.com/mitesh006/Code-duel-backend/internal/worker"
)

type handlerFunc func(ctx context.Context, job *models.Job) error

func (f handlerFunc) Handle(ctx context.Context, job *models.Job) error {
	return f(ctx, job)
}

func newJob() *models.Job {
	job := &models.Job{Kind: types.JobKindMemberEvaluation, State: types.JobStateActive, Attempt: 1}
	job.ID = uuid.New()
	return job
}

// Hands out `jobs` once each, then reports an empty queue
func feed(q *mockqueue.MockQueuer, jobs ...*models.Job) {
	var mu sync.Mutex
	q.EXPECT().
		Dequeue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string) (*models.Job, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(jobs) == 0 {
				return nil, nil
			}
			job := jobs[0]
			jobs = jobs[1:]
			return job, nil
		}).
		AnyTimes()
}

func newPool(q queue.Queuer, h worker.Handler, concurrency int) *worker.Pool {
	return worker.NewPool(q, h, ratelimit.NewLocalLimiter(1000, 100), worker.Config{
		Concurrency:  concurrency,
		PollInterval: 5 * time.Millisecond,
		WorkerID:     "test-worker",
	})
}

func TestPoolAcksSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mockqueue.NewMockQueuer(ctrl)

	job := newJob()
	feed(q, job)

	acked := make(chan struct{})
	q.EXPECT().Ack(gomock.Any(), job).DoAndReturn(func(context.Context, *models.Job) error {
		close(acked)
		return nil
	})

	var handled atomic.Int32
	pool := newPool(q, handlerFunc(func(_ context.Context, got *models.Job) error {
		handled.Add(1)
		assert.Equal(t, job.ID, got.ID)
		return nil
	}), 2)

	pool.Start(t.Context())
	select {
	case <-acked:
	case <-time.After(5 * time.Second):
		t.Fatal("job was never acked")
	}

	require.NoError(t, pool.Stop(t.Context()))
	assert.Equal(t, int32(1), handled.Load())
}

func TestPoolFailsErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mockqueue.NewMockQueuer(ctrl)

	retryable := newJob()
	poisoned := newJob()
	panicking := newJob()
	feed(q, retryable, poisoned, panicking)

	upstream := errors.New("upstream timeout")

	var wg sync.WaitGroup
	wg.Add(3)
	q.EXPECT().Fail(gomock.Any(), retryable, upstream).DoAndReturn(
		func(context.Context, *models.Job, error) error { wg.Done(); return nil },
	)
	q.EXPECT().Fail(gomock.Any(), poisoned, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ *models.Job, err error) error {
			assert.True(t, queue.IsPoison(err), "poison should reach the queue intact")
			wg.Done()
			return nil
		},
	)
	q.EXPECT().Fail(gomock.Any(), panicking, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ *models.Job, err error) error {
			assert.ErrorContains(t, err, "handler panicked")
			wg.Done()
			return nil
		},
	)

	pool := newPool(q, handlerFunc(func(_ context.Context, job *models.Job) error {
		switch job.ID {
		case retryable.ID:
			return upstream
		case poisoned.ID:
			return queue.WrapPoisonError(errors.New("member not found"))
		default:
			panic("boom")
		}
	}), 3)

	pool.Start(t.Context())
	wg.Wait()
	require.NoError(t, pool.Stop(t.Context()))
}

func TestPoolConcurrencyCap(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mockqueue.NewMockQueuer(ctrl)

	jobs := make([]*models.Job, 0, 12)
	for range 12 {
		jobs = append(jobs, newJob())
	}
	feed(q, jobs...)

	var done sync.WaitGroup
	done.Add(len(jobs))
	q.EXPECT().Ack(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, *models.Job) error {
		done.Done()
		return nil
	}).Times(len(jobs))

	var running, peak atomic.Int32
	pool := newPool(q, handlerFunc(func(context.Context, *models.Job) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil
	}), 3)

	pool.Start(t.Context())
	done.Wait()
	require.NoError(t, pool.Stop(t.Context()))

	assert.LessOrEqual(t, peak.Load(), int32(3), "never more jobs than slots")
	assert.Equal(t, int32(3), peak.Load(), "slots should all be used under load")
}

func TestPoolStopDrainsInFlight(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mockqueue.NewMockQueuer(ctrl)

	job := newJob()
	feed(q, job)

	started := make(chan struct{})
	release := make(chan struct{})
	q.EXPECT().Ack(gomock.Any(), job).Return(nil)

	pool := newPool(q, handlerFunc(func(ctx context.Context, _ *models.Job) error {
		close(started)
		<-release
		return ctx.Err()
	}), 1)

	pool.Start(t.Context())
	<-started

	stopped := make(chan error)
	go func() { stopped <- pool.Stop(t.Context()) }()

	select {
	case <-stopped:
		t.Fatal("stop returned before the in-flight job finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-stopped)
	assert.Zero(t, pool.InFlight())
}

func TestPoolStopTimeoutCancelsHandlers(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mockqueue.NewMockQueuer(ctrl)

	job := newJob()
	feed(q, job)

	started := make(chan struct{})
	failed := make(chan struct{})
	q.EXPECT().Fail(gomock.Any(), job, context.Canceled).DoAndReturn(
		func(context.Context, *models.Job, error) error { close(failed); return nil },
	)

	pool := newPool(q, handlerFunc(func(ctx context.Context, _ *models.Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}), 1)

	pool.Start(t.Context())
	<-started

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, pool.Stop(ctx))

	select {
	case <-failed:
	case <-time.After(5 * time.Second):
		t.Fatal("aborted job was not failed")
	}
}

func TestPoolHeartbeatExtendsLease(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mockqueue.NewMockQueuer(ctrl)

	job := newJob()
	feed(q, job)

	var extended atomic.Int32
	renewed := make(chan struct{})
	q.EXPECT().Extend(gomock.Any(), job).DoAndReturn(func(context.Context, *models.Job) error {
		if extended.Add(1) == 3 {
			close(renewed)
		}
		return nil
	}).MinTimes(3)

	acked := make(chan struct{})
	q.EXPECT().Ack(gomock.Any(), job).DoAndReturn(func(context.Context, *models.Job) error {
		close(acked)
		return nil
	})

	pool := worker.NewPool(q, handlerFunc(func(ctx context.Context, _ *models.Job) error {
		// outlive several heartbeats
		select {
		case <-renewed:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}), ratelimit.NewLocalLimiter(1000, 100), worker.Config{
		Concurrency:       1,
		PollInterval:      5 * time.Millisecond,
		WorkerID:          "test-worker",
		HeartbeatInterval: 5 * time.Millisecond,
	})

	pool.Start(t.Context())
	select {
	case <-acked:
	case <-time.After(5 * time.Second):
		t.Fatal("job was never acked")
	}
	require.NoError(t, pool.Stop(t.Context()))

	settled := extended.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, extended.Load(), "heartbeat must stop once the job settles")
}

func TestPoolLostLeaseCancelsHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mockqueue.NewMockQueuer(ctrl)

	job := newJob()
	feed(q, job)

	q.EXPECT().Extend(gomock.Any(), job).
		Return(fmt.Errorf("extend %s: %w", job.ID, queue.ErrNotActive)).
		Times(1)

	settled := make(chan struct{})
	q.EXPECT().Fail(gomock.Any(), job, context.Canceled).DoAndReturn(
		func(context.Context, *models.Job, error) error {
			close(settled)
			return fmt.Errorf("fail %s: %w", job.ID, queue.ErrNotActive)
		},
	)

	pool := worker.NewPool(q, handlerFunc(func(ctx context.Context, _ *models.Job) error {
		<-ctx.Done()
		return ctx.Err()
	}), ratelimit.NewLocalLimiter(1000, 100), worker.Config{
		Concurrency:       1,
		PollInterval:      5 * time.Millisecond,
		WorkerID:          "test-worker",
		HeartbeatInterval: 5 * time.Millisecond,
	})

	pool.Start(t.Context())
	select {
	case <-settled:
	case <-time.After(5 * time.Second):
		t.Fatal("handler kept running after its lease was lost")
	}
	require.NoError(t, pool.Stop(t.Context()))
}

func TestPoolStopBeforeStart(t *testing.T) {
	ctrl := gomock.NewController(t)
	// no Dequeue expectation, any dispatch fails the test
	q := mockqueue.NewMockQueuer(ctrl)

	pool := newPool(q, handlerFunc(func(context.Context, *models.Job) error { return nil }), 1)
	require.NoError(t, pool.Stop(t.Context()))

	pool.Start(t.Context())
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, pool.InFlight())
}

func TestPoolConcurrentStartStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	q := mockqueue.NewMockQueuer(ctrl)
	feed(q)

	pool := newPool(q, handlerFunc(func(context.Context, *models.Job) error { return nil }), 1)

	var wg sync.WaitGroup
	stopErr := make(chan error, 1)
	wg.Add(2)
	go func() {
		defer wg.Done()
		pool.Start(t.Context())
	}()
	go func() {
		defer wg.Done()
		stopErr <- pool.Stop(t.Context())
	}()
	wg.Wait()

	require.NoError(t, <-stopErr)
	// a pool that was stopped never starts again
	pool.Start(t.Context())
	assert.Zero(t, pool.InFlight())
}
