package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mitesh006/Code-duel-backend/internal/evaluation"
	"github.com/mitesh006/Code-duel-backend/internal/models"
	"github.com/mitesh006/Code-duel-backend/internal/types"
)

var tracer = otel.Tracer("github.com/mitesh006/Code-duel-backend/internal/store")

var ErrNotFound = errors.New("record not found")

// Repository over the challenge tables. The evaluation pipeline only ever mutates members
// through ApplyEvaluation.
type Store struct {
	db      *gorm.DB
	backoff func() retry.Backoff
}

func New(db *gorm.DB) *Store {
	return &Store{
		db: db,
		backoff: func() retry.Backoff {
			b := retry.NewExponential(50 * time.Millisecond)
			b = retry.WithJitterPercent(20, b)
			return retry.WithMaxRetries(4, b)
		},
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

func (s *Store) GetChallenge(ctx context.Context, id uuid.UUID) (*models.Challenge, error) {
	challenge, err := models.ByID[models.Challenge](ctx, s.db, id)
	if err != nil {
		return nil, notFound(err)
	}

	return challenge, nil
}

func (s *Store) GetMember(ctx context.Context, id uuid.UUID) (*models.ChallengeMember, error) {
	ctx, span := tracer.Start(ctx, "Store.GetMember", trace.WithAttributes(
		attribute.String("memberID", id.String()),
	))
	defer span.End()

	var member models.ChallengeMember
	err := s.db.WithContext(ctx).Preload("User").First(&member, "id = ?", id).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get member")
		return nil, notFound(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got member")
	return &member, nil
}

func (s *Store) ListActiveMemberIDs(ctx context.Context, challengeID uuid.UUID) ([]uuid.UUID, error) {
	ctx, span := tracer.Start(ctx, "Store.ListActiveMemberIDs", trace.WithAttributes(
		attribute.String("challengeID", challengeID.String()),
	))
	defer span.End()

	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&models.ChallengeMember{}).
		Where("challenge_id = ? AND status = ?", challengeID, types.MemberStatusActive).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list members")
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(ids)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed members")
	return ids, nil
}

// Active challenges whose window covers `day`
func (s *Store) ListActiveChallenges(ctx context.Context, day time.Time) ([]models.Challenge, error) {
	ctx, span := tracer.Start(ctx, "Store.ListActiveChallenges", trace.WithAttributes(
		attribute.String("day", types.FormatDate(day)),
	))
	defer span.End()

	date := models.DateOf(day)

	var challenges []models.Challenge
	err := s.db.WithContext(ctx).
		Where("status = ? AND start_date <= ? AND end_date >= ?", types.ChallengeStatusActive, date, date).
		Order("id").
		Find(&challenges).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list challenges")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed challenges")
	return challenges, nil
}

func (s *Store) DailyResultExists(ctx context.Context, memberID uuid.UUID, day time.Time) (bool, error) {
	return models.Exists[models.DailyResult](
		ctx,
		s.db,
		"member_id = ? AND date = ?",
		memberID,
		models.DateOf(day),
	)
}

type Applied struct {
	// False when a previous delivery already materialized this (member, day)
	Applied    bool
	Standing   evaluation.Standing
	Transition evaluation.Transition
}

// Records `outcome` for (memberID, day) and moves the member's standing exactly once.
//
// The DailyResult insert is the gate: only the transaction that creates the row advances the
// streak and appends to the ledger, so redelivered jobs are absorbed without double effects.
func (s *Store) ApplyEvaluation(
	ctx context.Context,
	memberID uuid.UUID,
	day time.Time,
	outcome evaluation.Outcome,
	penaltyAmount int64,
) (*Applied, error) {
	ctx, span := tracer.Start(ctx, "Store.ApplyEvaluation", trace.WithAttributes(
		attribute.String("memberID", memberID.String()),
		attribute.String("day", types.FormatDate(day)),
		attribute.Bool("passed", outcome.Passed),
	))
	defer span.End()

	var applied *Applied
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		var err error
		applied, err = s.applyEvaluation(ctx, memberID, day, outcome, penaltyAmount)
		if err != nil && serializationFailure(err) {
			span.AddEvent("retrying_conflicting_transaction")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to apply evaluation")
		return nil, err
	}

	span.SetAttributes(attribute.Bool("applied", applied.Applied))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "applied evaluation")
	return applied, nil
}

func (s *Store) applyEvaluation(
	ctx context.Context,
	memberID uuid.UUID,
	day time.Time,
	outcome evaluation.Outcome,
	penaltyAmount int64,
) (*Applied, error) {
	date := models.DateOf(day)
	applied := &Applied{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := models.DailyResult{
			MemberID:           memberID,
			Date:               date,
			SubmissionCount:    outcome.SubmissionCount,
			QualifyingProblems: outcome.QualifyingCount,
			Passed:             outcome.Passed,
		}
		insert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}, {Name: "date"}},
			DoNothing: true,
		}).Create(&result)
		if insert.Error != nil {
			return fmt.Errorf("failed to insert daily result: %w", insert.Error)
		}

		var member models.ChallengeMember
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&member, "id = ?", memberID).Error
		if err != nil {
			return notFound(err)
		}

		if insert.RowsAffected == 0 {
			applied.Standing = evaluation.StandingOf(&member)
			return nil
		}

		transition := evaluation.Advance(evaluation.StandingOf(&member), outcome.Passed, penaltyAmount)
		err = tx.Model(&member).Updates(map[string]any{
			"current_streak":  transition.Next.CurrentStreak,
			"longest_streak":  transition.Next.LongestStreak,
			"total_penalties": transition.Next.TotalPenalties,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update member standing: %w", err)
		}

		if transition.Penalized {
			entry := models.PenaltyLedgerEntry{
				MemberID: memberID,
				Amount:   transition.Penalty,
				Reason:   types.PenaltyReasonMissedDay,
				Date:     date,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return fmt.Errorf("failed to append penalty: %w", err)
			}
		}

		applied.Applied = true
		applied.Standing = transition.Next
		applied.Transition = transition
		return nil
	})
	if err != nil {
		return nil, err
	}

	return applied, nil
}

// Sum of every ledger entry for `memberID`
func (s *Store) LedgerTotal(ctx context.Context, memberID uuid.UUID) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.PenaltyLedgerEntry{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("member_id = ?", memberID).
		Scan(&total).Error
	return total, err
}

type Drift struct {
	MemberID       uuid.UUID
	TotalPenalties int64
	LedgerTotal    int64
}

// Members of `challengeID` whose total_penalties disagrees with their ledger
func (s *Store) Reconcile(ctx context.Context, challengeID uuid.UUID) ([]Drift, error) {
	ctx, span := tracer.Start(ctx, "Store.Reconcile", trace.WithAttributes(
		attribute.String("challengeID", challengeID.String()),
	))
	defer span.End()

	var drifts []Drift
	err := s.db.WithContext(ctx).Raw(`
SELECT m.id AS member_id, m.total_penalties, COALESCE(SUM(l.amount), 0) AS ledger_total
FROM challenge_member m
LEFT JOIN penalty_ledger l ON l.member_id = m.id
WHERE m.challenge_id = ?
GROUP BY m.id, m.total_penalties
HAVING m.total_penalties <> COALESCE(SUM(l.amount), 0)
ORDER BY m.id`, challengeID).Scan(&drifts).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reconcile ledger")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "reconciled ledger")
	return drifts, nil
}

// Postgres aborts one side of a conflicting pair with these codes, the whole transaction is safe to rerun
func serializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
