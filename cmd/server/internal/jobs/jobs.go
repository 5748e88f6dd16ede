// Handlers for every job kind the evaluator runs, plus the retention sweeper that keeps the
// job table bounded.
package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/mitesh006/Code-duel-backend/internal/evaluation"
	"github.com/mitesh006/Code-duel-backend/internal/models"
	"github.com/mitesh006/Code-duel-backend/internal/queue"
	"github.com/mitesh006/Code-duel-backend/internal/store"
	"github.com/mitesh006/Code-duel-backend/internal/types"
)

var tracer = otel.Tracer(
	"github.com/mitesh006/Code-duel-backend/cmd/server/internal/jobs",
)

//go:generate mockgen -destination ./mock/mock.go -package mock . ChallengeStore,SubmissionFetcher,Sweeper

// The slice of the store the handlers need
type ChallengeStore interface {
	GetChallenge(ctx context.Context, id uuid.UUID) (*models.Challenge, error)
	GetMember(ctx context.Context, id uuid.UUID) (*models.ChallengeMember, error)
	ListActiveMemberIDs(ctx context.Context, challengeID uuid.UUID) ([]uuid.UUID, error)
	DailyResultExists(ctx context.Context, memberID uuid.UUID, day time.Time) (bool, error)
	ApplyEvaluation(
		ctx context.Context,
		memberID uuid.UUID,
		day time.Time,
		outcome evaluation.Outcome,
		penaltyAmount int64,
	) (*store.Applied, error)
}

type SubmissionFetcher interface {
	FetchSubmissions(
		ctx context.Context,
		username string,
		from, to time.Time,
	) ([]types.Submission, error)
	FetchProblemMetadata(ctx context.Context, slug string) (*types.ProblemMetadata, error)
}

type Sweeper interface {
	RetentionSweep(ctx context.Context) (*queue.SweepResult, error)
}
