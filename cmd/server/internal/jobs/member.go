package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mitesh006/Code-duel-backend/internal/audit"
	"github.com/mitesh006/Code-duel-backend/internal/evaluation"
	"github.com/mitesh006/Code-duel-backend/internal/logger"
	"github.com/mitesh006/Code-duel-backend/internal/queue"
	"github.com/mitesh006/Code-duel-backend/internal/store"
	"github.com/mitesh006/Code-duel-backend/internal/submissions"
	"github.com/mitesh006/Code-duel-backend/internal/types"
)

// Evaluates one member for one day: fetch, evaluate, apply.
//
// Safe to redeliver. The store only advances the standing for the delivery that first
// materializes the day's result.
type MemberHandler struct {
	store       ChallengeStore
	submissions SubmissionFetcher
	loc         *time.Location
}

// `loc` is the timezone evaluation days are measured in
func NewMemberHandler(s ChallengeStore, f SubmissionFetcher, loc *time.Location) *MemberHandler {
	return &MemberHandler{store: s, submissions: f, loc: loc}
}

func poisonIfMissing(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return queue.WrapPoisonError(err)
	}
	return err
}

func (h *MemberHandler) Evaluate(ctx context.Context, p *types.MemberEvaluation) (*store.Applied, error) {
	ctx, span := tracer.Start(ctx, "MemberHandler.Evaluate", trace.WithAttributes(
		attribute.String("challengeID", p.ChallengeID.String()),
		attribute.String("memberID", p.MemberID.String()),
		attribute.String("evaluationDate", p.EvaluationDate),
	))
	defer span.End()

	fail := func(err error, msg string) (*store.Applied, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		return nil, err
	}

	day, err := p.Date()
	if err != nil {
		return fail(queue.WrapPoisonError(err), "invalid evaluation date")
	}

	member, err := h.store.GetMember(ctx, p.MemberID)
	if err != nil {
		return fail(poisonIfMissing(err), "failed to load member")
	}
	if member.ChallengeID != p.ChallengeID {
		err = fmt.Errorf("member %s does not belong to challenge %s", member.ID, p.ChallengeID)
		return fail(queue.WrapPoisonError(err), "member challenge mismatch")
	}

	challenge, err := h.store.GetChallenge(ctx, p.ChallengeID)
	if err != nil {
		return fail(poisonIfMissing(err), "failed to load challenge")
	}

	// a redelivery of an already applied day costs no upstream traffic
	exists, err := h.store.DailyResultExists(ctx, member.ID, day)
	if err != nil {
		return fail(err, "failed to check for existing result")
	}
	if exists {
		span.AddEvent("already_applied")
		logger.Logger.DebugContext(ctx, "daily result already recorded",
			"memberID", member.ID,
			"evaluationDate", p.EvaluationDate,
		)
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "already applied")
		return &store.Applied{Standing: evaluation.StandingOf(member)}, nil
	}

	if member.User == nil || member.User.PlatformUsername == "" {
		err = fmt.Errorf("member %s has no platform username", member.ID)
		return fail(queue.WrapPoisonError(err), "missing platform username")
	}

	window := evaluation.DayWindow(day, h.loc)
	subs, err := h.submissions.FetchSubmissions(
		ctx,
		member.User.PlatformUsername,
		window.Start,
		window.End,
	)
	if err != nil {
		return fail(fmt.Errorf("failed to fetch submissions: %w", err), "failed to fetch submissions")
	}
	span.AddEvent("fetched", trace.WithAttributes(attribute.Int("submissions", len(subs))))

	rules := evaluation.RulesOf(challenge)
	if len(rules.DifficultyFilter) > 0 {
		if err := h.enrich(ctx, subs, window); err != nil {
			return fail(err, "failed to enrich submissions")
		}
	}

	outcome := evaluation.Evaluate(rules, subs, window)
	span.AddEvent("evaluated", trace.WithAttributes(
		attribute.Int("qualifying", outcome.QualifyingCount),
		attribute.Bool("passed", outcome.Passed),
	))

	applied, err := h.store.ApplyEvaluation(ctx, member.ID, day, outcome, challenge.PenaltyAmount)
	if err != nil {
		return fail(poisonIfMissing(err), "failed to apply evaluation")
	}

	auditCtx := audit.Context{
		ChallengeID:    &challenge.ID,
		MemberID:       &member.ID,
		EvaluationDate: p.EvaluationDate,
	}
	audit.LogDailyResult(
		auditCtx,
		outcome.SubmissionCount,
		outcome.QualifyingCount,
		outcome.Passed,
		applied.Standing.CurrentStreak,
		applied.Standing.LongestStreak,
		applied.Applied,
	)
	if applied.Applied && applied.Transition.Penalized {
		audit.LogPenaltyAssessed(
			auditCtx,
			types.PenaltyReasonMissedDay,
			applied.Transition.Penalty,
			applied.Standing.TotalPenalties,
		)
	}

	span.SetAttributes(attribute.Bool("applied", applied.Applied))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "evaluated member")
	return applied, nil
}

// Fills in missing difficulties for accepted submissions in `window`. Problems upstream does
// not know stay blank and never match a difficulty filter.
func (h *MemberHandler) enrich(ctx context.Context, subs []types.Submission, window evaluation.Window) error {
	known := make(map[string]types.Difficulty)
	for i := range subs {
		s := &subs[i]
		if s.Difficulty != "" || !s.Accepted || !window.Contains(s.Timestamp) {
			continue
		}

		difficulty, ok := known[s.ProblemSlug]
		if !ok {
			meta, err := h.submissions.FetchProblemMetadata(ctx, s.ProblemSlug)
			switch {
			case errors.Is(err, submissions.ErrProblemNotFound):
				logger.Logger.WarnContext(ctx, "unknown problem in submissions", "slug", s.ProblemSlug)
			case err != nil:
				return fmt.Errorf("failed to fetch metadata for %s: %w", s.ProblemSlug, err)
			default:
				difficulty = meta.Difficulty
			}
			known[s.ProblemSlug] = difficulty
		}

		s.Difficulty = difficulty
	}

	return nil
}
