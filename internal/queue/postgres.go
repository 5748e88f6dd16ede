package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mitesh006/Code-duel-backend/internal/audit"
	"github.com/mitesh006/Code-duel-backend/internal/config"
	"github.com/mitesh006/Code-duel-backend/internal/logger"
	"github.com/mitesh006/Code-duel-backend/internal/models"
	"github.com/mitesh006/Code-duel-backend/internal/types"
	"github.com/mitesh006/Code-duel-backend/internal/upload"
)

// Postgres backed queuer. Claims use FOR UPDATE SKIP LOCKED so any number of pools can share a table.
type PostgresQueuer struct {
	db        *gorm.DB
	retry     RetryPolicy
	retention RetentionPolicy
	lease     time.Duration
	archiver  upload.Uploader
	now       func() time.Time
}

var _ Queuer = (*PostgresQueuer)(nil)

type Options struct {
	Retry         RetryPolicy
	Retention     RetentionPolicy
	LeaseDuration time.Duration
	// Failed jobs are archived here before being purged. Nil purges without archiving.
	Archiver upload.Uploader
	Clock    func() time.Time
}

func NewPostgresQueuer(db *gorm.DB, opts Options) *PostgresQueuer {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &PostgresQueuer{
		db:        db,
		retry:     opts.Retry,
		retention: opts.Retention,
		lease:     opts.LeaseDuration,
		archiver:  opts.Archiver,
		now:       clock,
	}
}

func (q *PostgresQueuer) newJob(payload types.Payload, opts *EnqueueOptions, now time.Time) (*models.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", payload.Kind(), err)
	}

	maxAttempts := q.retry.MaxAttempts
	var delay time.Duration
	if opts != nil {
		if opts.MaxAttempts > 0 {
			maxAttempts = opts.MaxAttempts
		}
		delay = opts.Delay
	}

	return &models.Job{
		Kind:          payload.Kind(),
		State:         types.JobStateWaiting,
		Payload:       datatypes.JSON(raw),
		MaxAttempts:   maxAttempts,
		EnqueuedAt:    now,
		NextAttemptAt: now.Add(delay),
	}, nil
}

func (q *PostgresQueuer) Enqueue(
	ctx context.Context,
	payload types.Payload,
	opts *EnqueueOptions,
) (uuid.UUID, error) {
	ctx, span := tracer.Start(ctx, "PostgresQueuer.Enqueue", trace.WithAttributes(
		attribute.String("kind", string(payload.Kind())),
	))
	defer span.End()

	job, err := q.newJob(payload, opts, q.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build job")
		return uuid.Nil, err
	}

	if err := q.db.WithContext(ctx).Create(job).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert job")
		return uuid.Nil, err
	}

	span.SetAttributes(attribute.String("jobID", job.ID.String()))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "enqueued job")
	return job.ID, nil
}

func (q *PostgresQueuer) EnqueueMany(
	ctx context.Context,
	payloads []types.Payload,
	opts *EnqueueOptions,
) ([]uuid.UUID, error) {
	ctx, span := tracer.Start(ctx, "PostgresQueuer.EnqueueMany", trace.WithAttributes(
		attribute.Int("count", len(payloads)),
	))
	defer span.End()

	if len(payloads) == 0 {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "nothing to enqueue")
		return nil, nil
	}

	now := q.now()
	jobs := make([]*models.Job, 0, len(payloads))
	for _, p := range payloads {
		job, err := q.newJob(p, opts, now)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to build job")
			return nil, err
		}
		jobs = append(jobs, job)
	}

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(jobs, 500).Error
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert jobs")
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "enqueued jobs")
	return ids, nil
}

// Expired leases go back to waiting, or to failed when they already used their last attempt
const reapSQL = `
UPDATE job SET
	state = CASE WHEN attempt >= max_attempts THEN 'failed' ELSE 'waiting' END,
	finished_at = CASE WHEN attempt >= max_attempts THEN CAST(@now AS timestamptz) ELSE NULL END,
	next_attempt_at = @now,
	last_error = @reason,
	locked_by = NULL,
	lease_expires_at = NULL
WHERE state = 'active' AND lease_expires_at < @now
RETURNING *`

const leaseExpired = "lease expired"

const claimSQL = `
UPDATE job SET
	state = 'active',
	attempt = attempt + 1,
	locked_by = @worker,
	lease_expires_at = @lease
WHERE id = (
	SELECT id FROM job
	WHERE state = 'waiting' AND next_attempt_at <= @now
	ORDER BY next_attempt_at, enqueued_at
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING *`

func (q *PostgresQueuer) Dequeue(ctx context.Context, workerID string) (*models.Job, error) {
	ctx, span := tracer.Start(ctx, "PostgresQueuer.Dequeue", trace.WithAttributes(
		attribute.String("workerID", workerID),
	))
	defer span.End()

	now := q.now()
	var job models.Job
	var reaped []models.Job
	var claimed int64

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Raw(reapSQL, map[string]any{"now": now, "reason": leaseExpired}).Scan(&reaped)
		if result.Error != nil {
			return fmt.Errorf("failed to reap expired leases: %w", result.Error)
		}
		if len(reaped) > 0 {
			span.AddEvent("reaped_leases", trace.WithAttributes(
				attribute.Int("count", len(reaped)),
			))
		}

		result = tx.Raw(claimSQL, map[string]any{
			"worker": workerID,
			"lease":  now.Add(q.lease),
			"now":    now,
		}).Scan(&job)
		if result.Error != nil {
			return fmt.Errorf("failed to claim job: %w", result.Error)
		}
		claimed = result.RowsAffected
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to dequeue")
		return nil, err
	}

	for i := range reaped {
		if reaped[i].State == types.JobStateFailed {
			q.recordTerminalFailure(ctx, &reaped[i], false)
		}
	}

	if claimed == 0 {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "nothing due")
		return nil, nil
	}

	span.SetAttributes(
		attribute.String("jobID", job.ID.String()),
		attribute.String("kind", string(job.Kind)),
		attribute.Int("attempt", job.Attempt),
	)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "claimed job")
	return &job, nil
}

// Matches the row only while it is still held by the delivery that produced job
func heldBy(tx *gorm.DB, job *models.Job) *gorm.DB {
	lockedBy := ""
	if job.LockedBy != nil {
		lockedBy = *job.LockedBy
	}
	return tx.Where("id = ? AND state = ? AND locked_by = ? AND attempt = ?",
		job.ID, types.JobStateActive, lockedBy, job.Attempt)
}

func (q *PostgresQueuer) Ack(ctx context.Context, job *models.Job) error {
	ctx, span := tracer.Start(ctx, "PostgresQueuer.Ack", trace.WithAttributes(
		attribute.String("jobID", job.ID.String()),
		attribute.Int("attempt", job.Attempt),
	))
	defer span.End()

	result := heldBy(q.db.WithContext(ctx).Model(&models.Job{}), job).
		Updates(map[string]any{
			"state":            types.JobStateCompleted,
			"finished_at":      q.now(),
			"locked_by":        nil,
			"lease_expires_at": nil,
		})
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to ack job")
		return result.Error
	}
	if result.RowsAffected == 0 {
		span.RecordError(ErrNotActive)
		span.SetStatus(codes.Error, "job was not active")
		return fmt.Errorf("ack %s: %w", job.ID, ErrNotActive)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "acked job")
	return nil
}

func (q *PostgresQueuer) Extend(ctx context.Context, job *models.Job) error {
	ctx, span := tracer.Start(ctx, "PostgresQueuer.Extend", trace.WithAttributes(
		attribute.String("jobID", job.ID.String()),
		attribute.Int("attempt", job.Attempt),
	))
	defer span.End()

	expires := q.now().Add(q.lease)
	result := heldBy(q.db.WithContext(ctx).Model(&models.Job{}), job).
		Update("lease_expires_at", expires)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to extend lease")
		return result.Error
	}
	if result.RowsAffected == 0 {
		span.RecordError(ErrNotActive)
		span.SetStatus(codes.Error, "job was not active")
		return fmt.Errorf("extend %s: %w", job.ID, ErrNotActive)
	}

	span.SetAttributes(attribute.String("leaseExpiresAt", expires.Format(time.RFC3339)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "extended lease")
	return nil
}

func (q *PostgresQueuer) Fail(ctx context.Context, held *models.Job, cause error) error {
	ctx, span := tracer.Start(ctx, "PostgresQueuer.Fail", trace.WithAttributes(
		attribute.String("jobID", held.ID.String()),
		attribute.Int("attempt", held.Attempt),
	))
	defer span.End()

	poisoned := IsPoison(cause)
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	span.SetAttributes(attribute.Bool("poisoned", poisoned))

	now := q.now()
	var job models.Job
	var retried bool

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := heldBy(tx.Clauses(clause.Locking{Strength: "UPDATE"}), held).
			Take(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("fail %s: %w", held.ID, ErrNotActive)
		}
		if err != nil {
			return err
		}

		updates := map[string]any{
			"last_error":       message,
			"locked_by":        nil,
			"lease_expires_at": nil,
		}
		retried = q.retry.ShouldRetry(job.Attempt, job.MaxAttempts, poisoned)
		if retried {
			updates["state"] = types.JobStateWaiting
			updates["next_attempt_at"] = now.Add(q.retry.Backoff(job.Attempt))
		} else {
			updates["state"] = types.JobStateFailed
			updates["finished_at"] = now
		}

		return tx.Model(&job).Updates(updates).Error
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fail job")
		return err
	}

	if retried {
		span.AddEvent("scheduled_retry", trace.WithAttributes(
			attribute.Int("attempt", job.Attempt),
			attribute.Int64("backoffMillis", q.retry.Backoff(job.Attempt).Milliseconds()),
		))
	} else {
		job.LastError = &message
		job.FinishedAt = &now
		q.recordTerminalFailure(ctx, &job, poisoned)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "recorded job failure")
	return nil
}

func (q *PostgresQueuer) recordTerminalFailure(ctx context.Context, job *models.Job, poisoned bool) {
	message := ""
	if job.LastError != nil {
		message = *job.LastError
	}
	logger.Logger.WarnContext(ctx, "job failed terminally",
		"jobID", job.ID,
		"kind", job.Kind,
		"attempt", job.Attempt,
		"maxAttempts", job.MaxAttempts,
		"poisoned", poisoned,
		"error", message,
	)
	audit.LogJobFailed(audit.Context{}, job.AsFailedJob(), poisoned)
}

func (q *PostgresQueuer) Counts(ctx context.Context) (types.JobCounts, error) {
	ctx, span := tracer.Start(ctx, "PostgresQueuer.Counts")
	defer span.End()

	var rows []struct {
		State types.JobState
		Count int64
	}
	err := q.db.WithContext(ctx).
		Model(&models.Job{}).
		Select("state, count(*) AS count").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count jobs")
		return nil, err
	}

	counts := make(types.JobCounts, len(types.JobStates))
	for _, state := range types.JobStates {
		counts[state] = 0
	}
	for _, row := range rows {
		counts[row.State] = row.Count
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "counted jobs")
	return counts, nil
}

// Most recently failed first
func (q *PostgresQueuer) ListFailed(ctx context.Context, limit int) ([]types.FailedJob, error) {
	ctx, span := tracer.Start(ctx, "PostgresQueuer.ListFailed", trace.WithAttributes(
		attribute.Int("limit", limit),
	))
	defer span.End()

	var jobs []models.Job
	err := q.db.WithContext(ctx).
		Where("state = ?", types.JobStateFailed).
		Order("finished_at DESC, id DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list failed jobs")
		return nil, err
	}

	failed := make([]types.FailedJob, 0, len(jobs))
	for _, job := range jobs {
		failed = append(failed, job.AsFailedJob())
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed failed jobs")
	return failed, nil
}

// Queue options as configured. `archiver` may be nil.
func OptionsFromConfig(cfg *config.Config, archiver upload.Uploader) Options {
	r := cfg.Queue.Retention
	return Options{
		Retry: RetryPolicy{
			MaxAttempts: cfg.Queue.MaxAttempts,
			BackoffBase: cfg.Queue.BackoffBase,
		},
		Retention: RetentionPolicy{
			CompletedAge:   r.CompletedAge,
			CompletedCount: r.CompletedCount,
			FailedAge:      r.FailedAge,
			FailedCount:    r.FailedCount,
		},
		LeaseDuration: cfg.Worker.LeaseDuration,
		Archiver:      archiver,
	}
}
