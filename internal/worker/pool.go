package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mitesh006/Code-duel-backend/internal/logger"
	"github.com/mitesh006/Code-duel-backend/internal/models"
	"github.com/mitesh006/Code-duel-backend/internal/queue"
	"github.com/mitesh006/Code-duel-backend/internal/ratelimit"
	"github.com/mitesh006/Code-duel-backend/internal/taskrunner"
)

var tracer = otel.Tracer("github.com/mitesh006/Code-duel-backend/internal/worker")

// settling a job outlives an aborted handler so the queue records the outcome
const settleTimeout = 10 * time.Second

type Handler interface {
	Handle(ctx context.Context, job *models.Job) error
}

type Config struct {
	// Jobs processed at once across every kind
	Concurrency int
	// Sleep between polls of an empty queue
	PollInterval time.Duration
	// Defaults to hostname plus a random suffix
	WorkerID string
	// Lease renewal period while a job runs, zero disables renewal
	HeartbeatInterval time.Duration
}

// Pulls jobs from a queue under a concurrency cap and a dispatch rate gate
type Pool struct {
	queue   queue.Queuer
	handler Handler
	limiter ratelimit.Limiter
	tasks   *taskrunner.Client

	id                string
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	slots             chan struct{}

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewPool(q queue.Queuer, handler Handler, limiter ratelimit.Limiter, cfg Config) *Pool {
	id := cfg.WorkerID
	if id == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "worker"
		}
		id = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}

	return &Pool{
		queue:        q,
		handler:      handler,
		limiter:      limiter,
		tasks:        taskrunner.Create(),
		id:           id,
		pollInterval:      cfg.PollInterval,
		heartbeatInterval: cfg.HeartbeatInterval,
		slots:             make(chan struct{}, max(cfg.Concurrency, 1)),
		done:              make(chan struct{}),
	}
}

func (p *Pool) ID() string {
	return p.id
}

func (p *Pool) InFlight() int64 {
	return p.tasks.InFlight()
}

// Starts dispatching in the background. Cancelling `ctx` stops dispatch like [Pool.Stop] does,
// without waiting for in-flight jobs. Starting a pool twice, or after Stop, does nothing.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || p.cancel != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	logger.Logger.InfoContext(ctx, "starting worker pool",
		"workerID", p.id,
		"concurrency", cap(p.slots),
	)
	go p.dispatch(ctx)
}

// Stops dequeuing, then waits for in-flight jobs until `ctx` is done. Jobs still running when
// `ctx` expires are cancelled, their leases return them to the queue.
func (p *Pool) Stop(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Pool.Stop", trace.WithAttributes(
		attribute.String("workerID", p.id),
		attribute.Int64("inFlight", p.InFlight()),
	))
	defer span.End()

	p.mu.Lock()
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel == nil {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "never started")
		return nil
	}
	cancel()

	select {
	case <-p.done:
	case <-ctx.Done():
	}

	if err := p.tasks.Shutdown(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to drain in-flight jobs")
		return err
	}

	logger.Logger.InfoContext(ctx, "worker pool drained", "workerID", p.id)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "drained")
	return nil
}

func (p *Pool) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.pollInterval):
	}
}

func (p *Pool) dispatch(ctx context.Context) {
	defer close(p.done)

	for {
		select {
		case <-ctx.Done():
			return
		case p.slots <- struct{}{}:
		}

		job, err := p.next(ctx)
		if err != nil || job == nil {
			<-p.slots
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				logger.Logger.ErrorContext(ctx, "failed to dequeue", "error", err, "workerID", p.id)
			}
			p.sleep(ctx)
			continue
		}

		p.tasks.Run(ctx, func(ctx context.Context) {
			defer func() { <-p.slots }()
			p.process(ctx, job)
		})
	}
}

func (p *Pool) next(ctx context.Context) (*models.Job, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.queue.Dequeue(ctx, p.id)
}

func (p *Pool) handle(ctx context.Context, job *models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return p.handler.Handle(ctx, job)
}

func (p *Pool) process(ctx context.Context, job *models.Job) {
	ctx, span := tracer.Start(ctx, "Pool.process", trace.WithAttributes(
		attribute.String("jobID", job.ID.String()),
		attribute.String("kind", string(job.Kind)),
		attribute.Int("attempt", job.Attempt),
	))
	defer span.End()

	start := time.Now()
	handleCtx, cancelHandle := context.WithCancel(ctx)
	defer cancelHandle()

	stopHeartbeat := p.heartbeat(handleCtx, job, cancelHandle)
	handleErr := p.handle(handleCtx, job)
	stopHeartbeat()

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if handleErr == nil {
		if err := p.queue.Ack(settleCtx, job); err != nil {
			msg := "failed to ack job"
			if errors.Is(err, queue.ErrNotActive) {
				msg = "job lease lost before completion was recorded"
			}
			logger.Logger.ErrorContext(ctx, msg, "jobID", job.ID, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to ack job")
			return
		}

		logger.Logger.DebugContext(ctx, "job completed",
			"jobID", job.ID,
			"kind", job.Kind,
			"duration", time.Since(start),
		)
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "job completed")
		return
	}

	span.RecordError(handleErr)
	logger.Logger.WarnContext(ctx, "job handler failed",
		"jobID", job.ID,
		"kind", job.Kind,
		"attempt", job.Attempt,
		"poisoned", queue.IsPoison(handleErr),
		"error", handleErr,
	)

	if err := p.queue.Fail(settleCtx, job, handleErr); err != nil {
		msg := "failed to record job failure"
		if errors.Is(err, queue.ErrNotActive) {
			msg = "job lease lost before failure was recorded"
		}
		logger.Logger.ErrorContext(ctx, msg, "jobID", job.ID, "error", err)
	}
	span.SetStatus(codes.Error, "job failed")
}

// Renews the lease of `job` until the returned func is called. Losing the lease calls `lost` so
// the handler stops working on a job another worker may already hold.
func (p *Pool) heartbeat(ctx context.Context, job *models.Job, lost context.CancelFunc) func() {
	if p.heartbeatInterval <= 0 {
		return func() {}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(p.heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			err := p.queue.Extend(ctx, job)
			if errors.Is(err, queue.ErrNotActive) {
				logger.Logger.WarnContext(ctx, "job lease lost, abandoning job",
					"jobID", job.ID,
					"attempt", job.Attempt,
					"workerID", p.id,
				)
				lost()
				return
			}
			if err != nil {
				logger.Logger.ErrorContext(ctx, "failed to extend job lease", "jobID", job.ID, "error", err)
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}
