package store_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	sloggorm "github.com/imdatngo/slog-gorm/v2"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mitesh006/Code-duel-backend/internal/evaluation"
	"github.com/mitesh006/Code-duel-backend/internal/migrations"
	"github.com/mitesh006/Code-duel-backend/internal/models"
	"github.com/mitesh006/Code-duel-backend/internal/store"
	"github.com/mitesh006/Code-duel-backend/internal/types"
)

var day = time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

type StoreTestSuite struct {
	suite.Suite

	postgres *postgres.PostgresContainer
	db       *gorm.DB
	store    *store.Store

	challenge models.Challenge
}

func (s *StoreTestSuite) SetupSuite() {
	postgresContainer, err := postgres.Run(
		s.T().Context(),
		"postgres:16.4-alpine",
		postgres.WithDatabase("evaluator"),
		postgres.WithUsername("evaluator"),
		postgres.WithPassword("evaluator"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	s.Require().NoError(err, "failed to start postgres container")
	s.postgres = postgresContainer

	dsn, err := s.postgres.ConnectionString(s.T().Context())
	s.Require().NoError(err, "failed to get connection string to container")

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: sloggorm.New(),
	})
	s.Require().NoError(err, "failed to connect to the database")
	s.db = db

	s.Require().NoError(migrations.Up(s.T().Context(), db), "failed to run up migrations")

	s.store = store.New(db)
}

func (s *StoreTestSuite) SetupTest() {
	s.challenge = models.Challenge{
		Name:                 "march",
		Status:               types.ChallengeStatusActive,
		StartDate:            models.DateOf(day.AddDate(0, 0, -5)),
		EndDate:              models.DateOf(day.AddDate(0, 0, 5)),
		MinSubmissionsPerDay: 1,
		DifficultyFilter:     []types.Difficulty{},
		PenaltyAmount:        25,
	}
	s.Require().NoError(s.db.Create(&s.challenge).Error, "failed to seed challenge")
}

func (s *StoreTestSuite) TearDownSuite() {
	s.Require().NoError(testcontainers.TerminateContainer(s.postgres))
}

func (s *StoreTestSuite) member(status types.MemberStatus) models.ChallengeMember {
	user := models.User{Username: uuid.NewString(), PlatformUsername: "coder"}
	s.Require().NoError(s.db.Create(&user).Error, "failed to seed user")

	member := models.ChallengeMember{
		ChallengeID: s.challenge.ID,
		UserID:      user.ID,
		Status:      status,
	}
	s.Require().NoError(s.db.Create(&member).Error, "failed to seed member")
	return member
}

func (s *StoreTestSuite) TestGetChallengeNotFound() {
	_, err := s.store.GetChallenge(s.T().Context(), uuid.New())
	s.Require().ErrorIs(err, store.ErrNotFound)
}

func (s *StoreTestSuite) TestGetMemberPreloadsUser() {
	m := s.member(types.MemberStatusActive)

	got, err := s.store.GetMember(s.T().Context(), m.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.User)
	s.Equal("coder", got.User.PlatformUsername)

	_, err = s.store.GetMember(s.T().Context(), uuid.New())
	s.Require().ErrorIs(err, store.ErrNotFound)
}

func (s *StoreTestSuite) TestListActiveMemberIDs() {
	a := s.member(types.MemberStatusActive)
	b := s.member(types.MemberStatusActive)
	s.member(types.MemberStatusLeft)

	ids, err := s.store.ListActiveMemberIDs(s.T().Context(), s.challenge.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]uuid.UUID{a.ID, b.ID}, ids)
}

func (s *StoreTestSuite) TestListActiveChallenges() {
	challenges, err := s.store.ListActiveChallenges(s.T().Context(), day)
	s.Require().NoError(err)

	ids := make([]uuid.UUID, 0, len(challenges))
	for _, c := range challenges {
		ids = append(ids, c.ID)
	}
	s.Contains(ids, s.challenge.ID)

	challenges, err = s.store.ListActiveChallenges(s.T().Context(), day.AddDate(0, 0, 6))
	s.Require().NoError(err)
	for _, c := range challenges {
		s.NotEqual(s.challenge.ID, c.ID, "challenge should be outside its window")
	}
}

func (s *StoreTestSuite) TestApplyEvaluationPassed() {
	m := s.member(types.MemberStatusActive)
	outcome := evaluation.Outcome{SubmissionCount: 2, QualifyingCount: 2, Passed: true}

	applied, err := s.store.ApplyEvaluation(s.T().Context(), m.ID, day, outcome, s.challenge.PenaltyAmount)
	s.Require().NoError(err)
	s.True(applied.Applied)
	s.Equal(1, applied.Standing.CurrentStreak)
	s.Equal(1, applied.Standing.LongestStreak)

	total, err := s.store.LedgerTotal(s.T().Context(), m.ID)
	s.Require().NoError(err)
	s.Zero(total, "passing day should not be penalized")

	exists, err := s.store.DailyResultExists(s.T().Context(), m.ID, day)
	s.Require().NoError(err)
	s.True(exists)
}

func (s *StoreTestSuite) TestApplyEvaluationIsIdempotent() {
	m := s.member(types.MemberStatusActive)
	s.Require().NoError(
		s.db.Model(&m).Updates(map[string]any{"current_streak": 3, "longest_streak": 5}).Error,
	)
	missed := evaluation.Outcome{Passed: false}

	first, err := s.store.ApplyEvaluation(s.T().Context(), m.ID, day, missed, s.challenge.PenaltyAmount)
	s.Require().NoError(err)
	s.True(first.Applied)

	second, err := s.store.ApplyEvaluation(s.T().Context(), m.ID, day, missed, s.challenge.PenaltyAmount)
	s.Require().NoError(err)
	s.False(second.Applied, "second delivery must not reapply")
	s.Equal(first.Standing, second.Standing)

	var results int64
	s.Require().NoError(
		s.db.Model(&models.DailyResult{}).Where("member_id = ?", m.ID).Count(&results).Error,
	)
	s.Equal(int64(1), results)

	var entries []models.PenaltyLedgerEntry
	s.Require().NoError(s.db.Where("member_id = ?", m.ID).Find(&entries).Error)
	s.Require().Len(entries, 1)
	s.Equal(types.PenaltyReasonMissedDay, entries[0].Reason)
	s.Equal(int64(25), entries[0].Amount)

	got, err := s.store.GetMember(s.T().Context(), m.ID)
	s.Require().NoError(err)
	s.Zero(got.CurrentStreak)
	s.Equal(5, got.LongestStreak)
	s.Equal(int64(25), got.TotalPenalties)
}

func (s *StoreTestSuite) TestApplyEvaluationConcurrentDeliveries() {
	m := s.member(types.MemberStatusActive)
	missed := evaluation.Outcome{Passed: false}

	var wg sync.WaitGroup
	appliedCount := make(chan bool, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, err := s.store.ApplyEvaluation(s.T().Context(), m.ID, day, missed, 10)
			if err == nil {
				appliedCount <- applied.Applied
			}
		}()
	}
	wg.Wait()
	close(appliedCount)

	var applications int
	for a := range appliedCount {
		if a {
			applications++
		}
	}
	s.Equal(1, applications, "exactly one delivery should apply the delta")

	drifts, err := s.store.Reconcile(s.T().Context(), s.challenge.ID)
	s.Require().NoError(err)
	s.Empty(drifts)
}

func (s *StoreTestSuite) TestLedgerMatchesTotalsAcrossDays() {
	m := s.member(types.MemberStatusActive)

	for i, passed := range []bool{true, false, true, true, false, false, true} {
		_, err := s.store.ApplyEvaluation(
			s.T().Context(),
			m.ID,
			day.AddDate(0, 0, i-4),
			evaluation.Outcome{Passed: passed},
			s.challenge.PenaltyAmount,
		)
		s.Require().NoError(err)
	}

	got, err := s.store.GetMember(s.T().Context(), m.ID)
	s.Require().NoError(err)
	total, err := s.store.LedgerTotal(s.T().Context(), m.ID)
	s.Require().NoError(err)

	s.Equal(got.TotalPenalties, total)
	s.Equal(int64(75), total)
	s.Equal(1, got.CurrentStreak)
	s.Equal(2, got.LongestStreak)
	s.GreaterOrEqual(got.LongestStreak, got.CurrentStreak)
}

func (s *StoreTestSuite) TestReconcileReportsDrift() {
	m := s.member(types.MemberStatusActive)
	s.Require().NoError(s.db.Model(&m).Update("total_penalties", 40).Error)

	drifts, err := s.store.Reconcile(s.T().Context(), s.challenge.ID)
	s.Require().NoError(err)
	s.Require().Len(drifts, 1)
	s.Equal(m.ID, drifts[0].MemberID)
	s.Equal(int64(40), drifts[0].TotalPenalties)
	s.Zero(drifts[0].LedgerTotal)
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
