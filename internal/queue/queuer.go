package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/mitesh006/Code-duel-backend/internal/models"
	"github.com/mitesh006/Code-duel-backend/internal/types"
)

var tracer = otel.Tracer("github.com/mitesh006/Code-duel-backend/internal/queue")

//go:generate mockgen -destination ./mock/mock.go -package mock . Queuer

// Durable job queue. Jobs are mutated only through these operations.
type Queuer interface {
	Enqueue(ctx context.Context, payload types.Payload, opts *EnqueueOptions) (uuid.UUID, error)
	// All or nothing
	EnqueueMany(ctx context.Context, payloads []types.Payload, opts *EnqueueOptions) ([]uuid.UUID, error)
	// Claims the next due job for `workerID`. Returns nil when nothing is due.
	//
	// The job stays invisible to other callers until Ack, Fail or its lease expires.
	Dequeue(ctx context.Context, workerID string) (*models.Job, error)
	// Ack, Fail and Extend only apply to the delivery that returned `job`. Once its lease
	// expired and another worker claimed the job they return ErrNotActive.
	Ack(ctx context.Context, job *models.Job) error
	// Poison errors fail the job terminally, other errors are retried per the retry policy
	Fail(ctx context.Context, job *models.Job, cause error) error
	// Pushes the lease of a job still being worked on out by the lease duration
	Extend(ctx context.Context, job *models.Job) error
	Counts(ctx context.Context) (types.JobCounts, error)
	ListFailed(ctx context.Context, limit int) ([]types.FailedJob, error)
	RetentionSweep(ctx context.Context) (*SweepResult, error)
}

type EnqueueOptions struct {
	// Zero uses the queue's retry policy
	MaxAttempts int
	// Postpones the first delivery
	Delay time.Duration
}

// The delivery no longer holds the job, usually because its lease expired
var ErrNotActive = errors.New("job is not active")

// Mark a job as unprocessable. It will not be retried.
type PoisonError struct {
	Err error
}

func (p PoisonError) Error() string {
	return fmt.Sprintf("Poisoned job: %v", p.Err)
}

func (p PoisonError) Unwrap() error {
	return p.Err
}

func WrapPoisonError(err error) error {
	return &PoisonError{Err: err}
}

func IsPoison(err error) bool {
	var pe *PoisonError
	return errors.As(err, &pe)
}
