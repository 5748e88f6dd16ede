package jobs

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mitesh006/Code-duel-backend/internal/audit"
	"github.com/mitesh006/Code-duel-backend/internal/logger"
	"github.com/mitesh006/Code-duel-backend/internal/queue"
	"github.com/mitesh006/Code-duel-backend/internal/store"
	"github.com/mitesh006/Code-duel-backend/internal/types"
)

// Expands a challenge-evaluation into one member-evaluation per active member. It never
// evaluates anyone itself so a failing member is retried alone.
type FanoutHandler struct {
	store ChallengeStore
	queue queue.Queuer
}

func NewFanoutHandler(s ChallengeStore, q queue.Queuer) *FanoutHandler {
	return &FanoutHandler{store: s, queue: q}
}

// Returns how many member jobs were enqueued
func (h *FanoutHandler) FanOut(ctx context.Context, p *types.ChallengeEvaluation) (int, error) {
	ctx, span := tracer.Start(ctx, "FanoutHandler.FanOut", trace.WithAttributes(
		attribute.String("challengeID", p.ChallengeID.String()),
		attribute.String("evaluationDate", p.EvaluationDate),
	))
	defer span.End()

	auditCtx := audit.Context{ChallengeID: &p.ChallengeID, EvaluationDate: p.EvaluationDate}

	day, err := p.Date()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid evaluation date")
		return 0, queue.WrapPoisonError(err)
	}

	challenge, err := h.store.GetChallenge(ctx, p.ChallengeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load challenge")
		if errors.Is(err, store.ErrNotFound) {
			return 0, queue.WrapPoisonError(err)
		}
		return 0, fmt.Errorf("failed to load challenge: %w", err)
	}

	skip := ""
	switch {
	case challenge.Status != types.ChallengeStatusActive:
		skip = fmt.Sprintf("challenge is %s", challenge.Status)
	case !challenge.Covers(day):
		skip = "evaluation date outside challenge window"
	}
	if skip != "" {
		logger.Logger.InfoContext(ctx, "skipping challenge evaluation",
			"challengeID", p.ChallengeID,
			"evaluationDate", p.EvaluationDate,
			"reason", skip,
		)
		audit.LogEvaluationFannedOut(auditCtx, 0, skip)

		span.AddEvent("skipped", trace.WithAttributes(attribute.String("reason", skip)))
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "nothing to fan out")
		return 0, nil
	}

	memberIDs, err := h.store.ListActiveMemberIDs(ctx, challenge.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list members")
		return 0, fmt.Errorf("failed to list members: %w", err)
	}

	payloads := make([]types.Payload, 0, len(memberIDs))
	for _, id := range memberIDs {
		payloads = append(payloads, &types.MemberEvaluation{
			ChallengeID:    challenge.ID,
			MemberID:       id,
			EvaluationDate: p.EvaluationDate,
		})
	}

	if len(payloads) > 0 {
		// one transaction, so a crash never leaves half a batch behind
		if _, err := h.queue.EnqueueMany(ctx, payloads, nil); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to enqueue member evaluations")
			return 0, fmt.Errorf("failed to enqueue member evaluations: %w", err)
		}
	}

	logger.Logger.InfoContext(ctx, "fanned out challenge evaluation",
		"challengeID", challenge.ID,
		"evaluationDate", p.EvaluationDate,
		"members", len(payloads),
	)
	audit.LogEvaluationFannedOut(auditCtx, len(payloads), "")

	span.SetAttributes(attribute.Int("enqueued", len(payloads)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "fanned out")
	return len(payloads), nil
}
