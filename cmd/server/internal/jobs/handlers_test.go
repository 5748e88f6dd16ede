package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"gorm.io/datatypes"

	"github.com/mitesh006/Code-duel-backend/cmd/server/internal/jobs"
	mockjobs "github.com/mitesh006/Code-duel-backend/cmd/server/internal/jobs/mock"
	"github.com/mitesh006/Code-duel-backend/internal/evaluation"
	"github.com/mitesh006/Code-duel-backend/internal/models"
	"github.com/mitesh006/Code-duel-backend/internal/queue"
	mockqueue "github.com/mitesh006/Code-duel-backend/internal/queue/mock"
	"github.com/mitesh006/Code-duel-backend/internal/store"
	"github.com/mitesh006/Code-duel-backend/internal/submissions"
	"github.com/mitesh006/Code-duel-backend/internal/types"
)

const evaluationDate = "2024-03-10"

type HandlersTestSuite struct {
	suite.Suite

	ctrl      *gomock.Controller
	store     *mockjobs.MockChallengeStore
	fetcher   *mockjobs.MockSubmissionFetcher
	queue     *mockqueue.MockQueuer
	router    *jobs.Router
	fanout    *jobs.FanoutHandler
	member    *jobs.MemberHandler
	loc       *time.Location
	day       time.Time
	challenge *models.Challenge
	target    *models.ChallengeMember
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func (s *HandlersTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mockjobs.NewMockChallengeStore(s.ctrl)
	s.fetcher = mockjobs.NewMockSubmissionFetcher(s.ctrl)
	s.queue = mockqueue.NewMockQueuer(s.ctrl)

	loc, err := time.LoadLocation("Asia/Kolkata")
	s.Require().NoError(err)
	s.loc = loc

	s.day, err = types.ParseDate(evaluationDate)
	s.Require().NoError(err)

	s.challenge = &models.Challenge{
		Name:                 "march madness",
		Status:               types.ChallengeStatusActive,
		StartDate:            models.DateOf(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:              models.DateOf(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)),
		MinSubmissionsPerDay: 1,
		PenaltyAmount:        25,
	}
	s.challenge.ID = uuid.New()

	s.target = &models.ChallengeMember{
		Status:        types.MemberStatusActive,
		User:          &models.User{Username: "alice", PlatformUsername: "alice_codes"},
		ChallengeID:   s.challenge.ID,
		CurrentStreak: 3,
		LongestStreak: 5,
	}
	s.target.ID = uuid.New()
	s.target.UserID = uuid.New()

	s.fanout = jobs.NewFanoutHandler(s.store, s.queue)
	s.member = jobs.NewMemberHandler(s.store, s.fetcher, s.loc)
	s.router = jobs.NewRouter(s.fanout, s.member)
}

func (s *HandlersTestSuite) challengePayload() *types.ChallengeEvaluation {
	return &types.ChallengeEvaluation{ChallengeID: s.challenge.ID, EvaluationDate: evaluationDate}
}

func (s *HandlersTestSuite) memberPayload() *types.MemberEvaluation {
	return &types.MemberEvaluation{
		ChallengeID:    s.challenge.ID,
		MemberID:       s.target.ID,
		EvaluationDate: evaluationDate,
	}
}

// an instant inside the evaluation day as seen from the platform timezone
func (s *HandlersTestSuite) during(hour int) time.Time {
	return time.Date(2024, 3, 10, hour, 0, 0, 0, s.loc).UTC()
}

func (s *HandlersTestSuite) expectMember() {
	s.store.EXPECT().GetMember(gomock.Any(), s.target.ID).Return(s.target, nil)
	s.store.EXPECT().GetChallenge(gomock.Any(), s.challenge.ID).Return(s.challenge, nil)
	s.store.EXPECT().DailyResultExists(gomock.Any(), s.target.ID, s.day).Return(false, nil)
}

func (s *HandlersTestSuite) TestFanOutEnqueuesEveryMember() {
	memberIDs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	s.store.EXPECT().GetChallenge(gomock.Any(), s.challenge.ID).Return(s.challenge, nil)
	s.store.EXPECT().ListActiveMemberIDs(gomock.Any(), s.challenge.ID).Return(memberIDs, nil)
	s.queue.EXPECT().
		EnqueueMany(gomock.Any(), gomock.Len(3), gomock.Nil()).
		DoAndReturn(func(_ context.Context, payloads []types.Payload, _ *queue.EnqueueOptions) ([]uuid.UUID, error) {
			for i, p := range payloads {
				member, ok := p.(*types.MemberEvaluation)
				s.Require().True(ok, "fan out must only produce member evaluations")
				s.Equal(memberIDs[i], member.MemberID)
				s.Equal(s.challenge.ID, member.ChallengeID)
				s.Equal(evaluationDate, member.EvaluationDate)
			}
			return []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}, nil
		})

	n, err := s.fanout.FanOut(s.T().Context(), s.challengePayload())
	s.Require().NoError(err)
	s.Equal(3, n)
}

func (s *HandlersTestSuite) TestFanOutNoMembers() {
	s.store.EXPECT().GetChallenge(gomock.Any(), s.challenge.ID).Return(s.challenge, nil)
	s.store.EXPECT().ListActiveMemberIDs(gomock.Any(), s.challenge.ID).Return(nil, nil)

	n, err := s.fanout.FanOut(s.T().Context(), s.challengePayload())
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *HandlersTestSuite) TestFanOutSkipsInactiveChallenge() {
	for _, status := range []types.ChallengeStatus{
		types.ChallengeStatusDraft,
		types.ChallengeStatusCompleted,
		types.ChallengeStatusCancelled,
	} {
		s.Run(string(status), func() {
			challenge := *s.challenge
			challenge.Status = status
			s.store.EXPECT().GetChallenge(gomock.Any(), s.challenge.ID).Return(&challenge, nil)

			n, err := s.fanout.FanOut(s.T().Context(), s.challengePayload())
			s.Require().NoError(err, "an inactive challenge is not an error")
			s.Zero(n)
		})
	}
}

func (s *HandlersTestSuite) TestFanOutSkipsOutsideWindow() {
	challenge := *s.challenge
	challenge.EndDate = datatypes.Date(time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))
	s.store.EXPECT().GetChallenge(gomock.Any(), s.challenge.ID).Return(&challenge, nil)

	n, err := s.fanout.FanOut(s.T().Context(), s.challengePayload())
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *HandlersTestSuite) TestFanOutErrors() {
	s.Run("MissingChallengeIsPoison", func() {
		s.store.EXPECT().GetChallenge(gomock.Any(), s.challenge.ID).Return(nil, store.ErrNotFound)

		_, err := s.fanout.FanOut(s.T().Context(), s.challengePayload())
		s.Require().Error(err)
		s.True(queue.IsPoison(err))
	})

	s.Run("EnqueueFailureIsRetryable", func() {
		s.store.EXPECT().GetChallenge(gomock.Any(), s.challenge.ID).Return(s.challenge, nil)
		s.store.EXPECT().ListActiveMemberIDs(gomock.Any(), s.challenge.ID).Return([]uuid.UUID{uuid.New()}, nil)
		s.queue.EXPECT().EnqueueMany(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("conn reset"))

		_, err := s.fanout.FanOut(s.T().Context(), s.challengePayload())
		s.Require().Error(err)
		s.False(queue.IsPoison(err))
	})
}

func (s *HandlersTestSuite) TestMemberPasses() {
	s.expectMember()
	s.fetcher.EXPECT().
		FetchSubmissions(gomock.Any(), "alice_codes", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, from, to time.Time) ([]types.Submission, error) {
			s.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, s.loc), from, "window starts at local midnight")
			s.Equal(24*time.Hour, to.Sub(from))
			return []types.Submission{
				{ProblemSlug: "two-sum", Difficulty: types.DifficultyEasy, Timestamp: s.during(9), Accepted: true},
				{ProblemSlug: "lru-cache", Difficulty: types.DifficultyMedium, Timestamp: s.during(21), Accepted: true},
			}, nil
		})
	s.store.EXPECT().
		ApplyEvaluation(gomock.Any(), s.target.ID, s.day, evaluation.Outcome{
			SubmissionCount: 2,
			QualifyingCount: 2,
			Passed:          true,
		}, int64(25)).
		Return(&store.Applied{
			Applied:  true,
			Standing: evaluation.Standing{CurrentStreak: 4, LongestStreak: 5},
		}, nil)

	applied, err := s.member.Evaluate(s.T().Context(), s.memberPayload())
	s.Require().NoError(err)
	s.True(applied.Applied)
	s.Equal(4, applied.Standing.CurrentStreak)
}

func (s *HandlersTestSuite) TestMemberMisses() {
	s.expectMember()
	s.fetcher.EXPECT().
		FetchSubmissions(gomock.Any(), "alice_codes", gomock.Any(), gomock.Any()).
		Return([]types.Submission{
			{ProblemSlug: "two-sum", Difficulty: types.DifficultyEasy, Timestamp: s.during(9), Accepted: false},
		}, nil)
	s.store.EXPECT().
		ApplyEvaluation(gomock.Any(), s.target.ID, s.day, evaluation.Outcome{
			SubmissionCount: 1,
			QualifyingCount: 0,
			Passed:          false,
		}, int64(25)).
		Return(&store.Applied{
			Applied:    true,
			Standing:   evaluation.Standing{LongestStreak: 5, TotalPenalties: 25},
			Transition: evaluation.Transition{Penalized: true, Penalty: 25},
		}, nil)

	applied, err := s.member.Evaluate(s.T().Context(), s.memberPayload())
	s.Require().NoError(err)
	s.True(applied.Transition.Penalized)
}

func (s *HandlersTestSuite) TestMemberAlreadyApplied() {
	s.store.EXPECT().GetMember(gomock.Any(), s.target.ID).Return(s.target, nil)
	s.store.EXPECT().GetChallenge(gomock.Any(), s.challenge.ID).Return(s.challenge, nil)
	s.store.EXPECT().DailyResultExists(gomock.Any(), s.target.ID, s.day).Return(true, nil)
	// no upstream traffic and no second application

	applied, err := s.member.Evaluate(s.T().Context(), s.memberPayload())
	s.Require().NoError(err)
	s.False(applied.Applied)
	s.Equal(3, applied.Standing.CurrentStreak)
}

func (s *HandlersTestSuite) TestMemberEnrichesDifficulty() {
	challenge := *s.challenge
	challenge.DifficultyFilter = []types.Difficulty{types.DifficultyMedium, types.DifficultyHard}

	s.store.EXPECT().GetMember(gomock.Any(), s.target.ID).Return(s.target, nil)
	s.store.EXPECT().GetChallenge(gomock.Any(), s.challenge.ID).Return(&challenge, nil)
	s.store.EXPECT().DailyResultExists(gomock.Any(), s.target.ID, s.day).Return(false, nil)
	s.fetcher.EXPECT().
		FetchSubmissions(gomock.Any(), "alice_codes", gomock.Any(), gomock.Any()).
		Return([]types.Submission{
			{ProblemSlug: "lru-cache", Timestamp: s.during(8), Accepted: true},
			{ProblemSlug: "lru-cache", Timestamp: s.during(9), Accepted: true},
			{ProblemSlug: "two-sum", Timestamp: s.during(10), Accepted: true},
			{ProblemSlug: "deleted-problem", Timestamp: s.during(11), Accepted: true},
			{ProblemSlug: "median-of-two", Difficulty: types.DifficultyHard, Timestamp: s.during(12), Accepted: true},
		}, nil)
	s.fetcher.EXPECT().FetchProblemMetadata(gomock.Any(), "lru-cache").
		Return(&types.ProblemMetadata{Slug: "lru-cache", Difficulty: types.DifficultyMedium}, nil)
	s.fetcher.EXPECT().FetchProblemMetadata(gomock.Any(), "two-sum").
		Return(&types.ProblemMetadata{Slug: "two-sum", Difficulty: types.DifficultyEasy}, nil)
	s.fetcher.EXPECT().FetchProblemMetadata(gomock.Any(), "deleted-problem").
		Return(nil, submissions.ErrProblemNotFound)
	s.store.EXPECT().
		ApplyEvaluation(gomock.Any(), s.target.ID, s.day, evaluation.Outcome{
			SubmissionCount: 5,
			QualifyingCount: 3,
			Passed:          true,
		}, int64(25)).
		Return(&store.Applied{Applied: true}, nil)

	_, err := s.member.Evaluate(s.T().Context(), s.memberPayload())
	s.Require().NoError(err)
}

func (s *HandlersTestSuite) TestMemberErrors() {
	s.Run("MissingMemberIsPoison", func() {
		s.store.EXPECT().GetMember(gomock.Any(), s.target.ID).Return(nil, store.ErrNotFound)

		_, err := s.member.Evaluate(s.T().Context(), s.memberPayload())
		s.True(queue.IsPoison(err))
	})

	s.Run("WrongChallengeIsPoison", func() {
		payload := s.memberPayload()
		payload.ChallengeID = uuid.New()
		s.store.EXPECT().GetMember(gomock.Any(), s.target.ID).Return(s.target, nil)

		_, err := s.member.Evaluate(s.T().Context(), payload)
		s.True(queue.IsPoison(err))
	})

	s.Run("MissingUsernameIsPoison", func() {
		member := *s.target
		member.User = &models.User{Username: "alice"}
		s.store.EXPECT().GetMember(gomock.Any(), s.target.ID).Return(&member, nil)
		s.store.EXPECT().GetChallenge(gomock.Any(), s.challenge.ID).Return(s.challenge, nil)
		s.store.EXPECT().DailyResultExists(gomock.Any(), s.target.ID, s.day).Return(false, nil)

		_, err := s.member.Evaluate(s.T().Context(), s.memberPayload())
		s.True(queue.IsPoison(err))
	})

	s.Run("UpstreamFailureIsRetryable", func() {
		s.expectMember()
		s.fetcher.EXPECT().
			FetchSubmissions(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, &submissions.RateLimitedError{Attempts: 5})

		_, err := s.member.Evaluate(s.T().Context(), s.memberPayload())
		s.Require().Error(err)
		s.False(queue.IsPoison(err))

		var rateLimited *submissions.RateLimitedError
		s.ErrorAs(err, &rateLimited)
	})

	s.Run("MetadataFailureIsRetryable", func() {
		challenge := *s.challenge
		challenge.DifficultyFilter = []types.Difficulty{types.DifficultyHard}
		s.store.EXPECT().GetMember(gomock.Any(), s.target.ID).Return(s.target, nil)
		s.store.EXPECT().GetChallenge(gomock.Any(), s.challenge.ID).Return(&challenge, nil)
		s.store.EXPECT().DailyResultExists(gomock.Any(), s.target.ID, s.day).Return(false, nil)
		s.fetcher.EXPECT().
			FetchSubmissions(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]types.Submission{{ProblemSlug: "x", Timestamp: s.during(1), Accepted: true}}, nil)
		s.fetcher.EXPECT().FetchProblemMetadata(gomock.Any(), "x").
			Return(nil, &submissions.StatusError{StatusCode: 502})

		_, err := s.member.Evaluate(s.T().Context(), s.memberPayload())
		s.Require().Error(err)
		s.False(queue.IsPoison(err))
	})

	s.Run("StoreFailureIsRetryable", func() {
		s.expectMember()
		s.fetcher.EXPECT().
			FetchSubmissions(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, nil)
		s.store.EXPECT().
			ApplyEvaluation(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("statement timeout"))

		_, err := s.member.Evaluate(s.T().Context(), s.memberPayload())
		s.Require().Error(err)
		s.False(queue.IsPoison(err))
	})
}

func (s *HandlersTestSuite) job(kind types.JobKind, payload any) *models.Job {
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)

	job := &models.Job{Kind: kind, State: types.JobStateActive, Payload: raw, Attempt: 1, MaxAttempts: 3}
	job.ID = uuid.New()
	return job
}

func (s *HandlersTestSuite) TestRouter() {
	s.Run("ChallengeEvaluation", func() {
		s.store.EXPECT().GetChallenge(gomock.Any(), s.challenge.ID).Return(s.challenge, nil)
		s.store.EXPECT().ListActiveMemberIDs(gomock.Any(), s.challenge.ID).Return(nil, nil)

		err := s.router.Handle(s.T().Context(), s.job(types.JobKindChallengeEvaluation, s.challengePayload()))
		s.Require().NoError(err)
	})

	s.Run("MemberEvaluation", func() {
		s.store.EXPECT().GetMember(gomock.Any(), s.target.ID).Return(s.target, nil)
		s.store.EXPECT().GetChallenge(gomock.Any(), s.challenge.ID).Return(s.challenge, nil)
		s.store.EXPECT().DailyResultExists(gomock.Any(), s.target.ID, s.day).Return(true, nil)

		err := s.router.Handle(s.T().Context(), s.job(types.JobKindMemberEvaluation, s.memberPayload()))
		s.Require().NoError(err)
	})

	s.Run("UnknownKindIsPoison", func() {
		err := s.router.Handle(s.T().Context(), s.job(types.JobKind("leaderboard-refresh"), s.challengePayload()))
		s.Require().Error(err)
		s.True(queue.IsPoison(err))
		s.ErrorIs(err, types.ErrUnknownJobKind)
	})

	s.Run("MalformedPayloadIsPoison", func() {
		err := s.router.Handle(s.T().Context(), s.job(types.JobKindMemberEvaluation, map[string]string{
			"challenge_id": "not-a-uuid",
		}))
		s.Require().Error(err)
		s.True(queue.IsPoison(err))
	})
}

func TestEvaluateUsesDayWindow(t *testing.T) {
	// submissions just outside the local day are ignored even when upstream returns them
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	day, err := types.ParseDate(evaluationDate)
	require.NoError(t, err)

	window := evaluation.DayWindow(day, loc)
	outcome := evaluation.Evaluate(evaluation.Rules{MinSubmissionsPerDay: 1}, []types.Submission{
		{ProblemSlug: "late", Timestamp: window.End, Accepted: true},
		{ProblemSlug: "early", Timestamp: window.Start.Add(-time.Second), Accepted: true},
	}, window)
	assert.False(t, outcome.Passed)
	assert.Zero(t, outcome.SubmissionCount)
}
