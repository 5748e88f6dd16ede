package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mitesh006/Code-duel-backend/internal/common"
	"github.com/mitesh006/Code-duel-backend/internal/logger"
	"github.com/mitesh006/Code-duel-backend/internal/models"
	"github.com/mitesh006/Code-duel-backend/internal/queue"
	"github.com/mitesh006/Code-duel-backend/internal/types"
)

var tracer = otel.Tracer("github.com/mitesh006/Code-duel-backend/cmd/scheduler/internal/trigger")

type ChallengeLister interface {
	ListActiveChallenges(ctx context.Context, day time.Time) ([]models.Challenge, error)
}

// The day a run started at `now` evaluates: yesterday on the wall clock of `loc`
func DefaultDate(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()-1, 0, 0, 0, 0, time.UTC)
}

// Enqueues one challenge evaluation per challenge active on `day`.
//
// Rerunning for the same day is harmless, members already evaluated are skipped downstream.
func Trigger(
	ctx context.Context,
	lister ChallengeLister,
	q queue.Queuer,
	day time.Time,
) ([]uuid.UUID, error) {
	date := types.FormatDate(day)

	ctx, span := tracer.Start(ctx, "Trigger", trace.WithAttributes(
		attribute.String("evaluationDate", date),
	))
	defer span.End()

	challenges, err := lister.ListActiveChallenges(ctx, day)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list active challenges")
		return nil, fmt.Errorf("failed to list active challenges: %w", err)
	}

	payloads := make([]types.Payload, 0, len(challenges))
	for _, c := range challenges {
		payloads = append(payloads, &types.ChallengeEvaluation{
			ChallengeID:    c.ID,
			EvaluationDate: date,
		})
	}

	ids, err := q.EnqueueMany(ctx, payloads, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enqueue challenge evaluations")
		return nil, fmt.Errorf("failed to enqueue challenge evaluations: %w", err)
	}

	logger.Logger.InfoContext(ctx, "triggered evaluation", "date", date, "challenges", len(ids))

	span.SetAttributes(
		attribute.Int("enqueued", len(ids)),
		attribute.StringSlice("jobIDs", common.SliceToStringSlice(ids)),
	)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "triggered evaluation")
	return ids, nil
}
