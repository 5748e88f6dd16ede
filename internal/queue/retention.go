package queue

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mitesh006/Code-duel-backend/internal/models"
	"github.com/mitesh006/Code-duel-backend/internal/types"
	"github.com/mitesh006/Code-duel-backend/internal/upload"
)

const sweepBatch = 500

// Terminal jobs past the age cutoff or beyond the newest `keep`
const expiredSQL = `
SELECT id FROM job
WHERE state = @state AND (
	finished_at < @cutoff
	OR id IN (
		SELECT id FROM (
			SELECT id, row_number() OVER (ORDER BY finished_at DESC, id DESC) AS rank
			FROM job
			WHERE state = @state
		) ranked
		WHERE rank > @keep
	)
)
ORDER BY finished_at
LIMIT @batch`

// Purges terminal jobs past their retention thresholds. Failed jobs are archived first when an
// archiver is configured; a batch whose archive fails is left in place for the next sweep.
func (q *PostgresQueuer) RetentionSweep(ctx context.Context) (*SweepResult, error) {
	ctx, span := tracer.Start(ctx, "PostgresQueuer.RetentionSweep")
	defer span.End()

	now := q.now()
	result := &SweepResult{}

	completed, _, err := q.purge(
		ctx,
		types.JobStateCompleted,
		cutoff(now, q.retention.CompletedAge),
		q.retention.CompletedCount,
		false,
	)
	result.CompletedPurged = completed
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to purge completed jobs")
		return result, err
	}

	failed, archived, err := q.purge(
		ctx,
		types.JobStateFailed,
		cutoff(now, q.retention.FailedAge),
		q.retention.FailedCount,
		q.archiver != nil,
	)
	result.FailedPurged = failed
	result.FailedArchived = archived
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to purge failed jobs")
		return result, err
	}

	span.SetAttributes(
		attribute.Int64("completedPurged", result.CompletedPurged),
		attribute.Int64("failedPurged", result.FailedPurged),
		attribute.Int64("failedArchived", result.FailedArchived),
	)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "swept queue")
	return result, nil
}

// Non positive ages disable the age threshold
func cutoff(now time.Time, age time.Duration) time.Time {
	if age <= 0 {
		return time.Time{}
	}
	return now.Add(-age)
}

func (q *PostgresQueuer) purge(
	ctx context.Context,
	state types.JobState,
	before time.Time,
	keep int,
	archive bool,
) (int64, int64, error) {
	ctx, span := tracer.Start(ctx, "PostgresQueuer.purge", trace.WithAttributes(
		attribute.String("state", string(state)),
		attribute.Int("keep", keep),
	))
	defer span.End()

	if keep <= 0 {
		keep = math.MaxInt32
	}

	var purged, archived int64
	for {
		var ids []uuid.UUID
		err := q.db.WithContext(ctx).Raw(expiredSQL, map[string]any{
			"state":  state,
			"cutoff": before,
			"keep":   keep,
			"batch":  sweepBatch,
		}).Scan(&ids).Error
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to select expired jobs")
			return purged, archived, err
		}
		if len(ids) == 0 {
			break
		}

		if archive {
			n, err := q.archiveJobs(ctx, ids)
			archived += n
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to archive jobs")
				return purged, archived, err
			}
		}

		deleted := q.db.WithContext(ctx).
			Where("id IN ? AND state = ?", ids, state).
			Delete(&models.Job{})
		if deleted.Error != nil {
			span.RecordError(deleted.Error)
			span.SetStatus(codes.Error, "failed to delete expired jobs")
			return purged, archived, deleted.Error
		}
		purged += deleted.RowsAffected

		if len(ids) < sweepBatch {
			break
		}
	}

	span.SetAttributes(attribute.Int64("purged", purged))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "purged jobs")
	return purged, archived, nil
}

func archiveKey(job *models.Job) string {
	finished := job.UpdatedAt
	if job.FinishedAt != nil {
		finished = *job.FinishedAt
	}
	return fmt.Sprintf("failed-jobs/%s/%s.json", types.FormatDate(finished.UTC()), job.ID)
}

func (q *PostgresQueuer) archiveJobs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	var jobs []models.Job
	if err := q.db.WithContext(ctx).Where("id IN ?", ids).Find(&jobs).Error; err != nil {
		return 0, err
	}

	var archived int64
	for i := range jobs {
		// already present keys count too: an earlier sweep archived them but failed to delete
		_, err := upload.JSON(ctx, q.archiver, archiveKey(&jobs[i]), jobs[i].AsFailedJob())
		if err != nil {
			return archived, fmt.Errorf("failed to archive job %s: %w", jobs[i].ID, err)
		}
		archived++
	}

	return archived, nil
}
