package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mitesh006/Code-duel-backend/internal/types"
)

type (
	// Owned by the account service, read here only to resolve upstream usernames
	User struct {
		Username         string
		PlatformUsername string
		Model
	}

	Challenge struct {
		Name             string
		Status           types.ChallengeStatus `gorm:"type:text"`
		DifficultyFilter []types.Difficulty    `gorm:"type:jsonb;serializer:json"`
		Model

		StartDate               datatypes.Date
		EndDate                 datatypes.Date
		MinSubmissionsPerDay    int
		PenaltyAmount           int64
		UniqueProblemConstraint bool
	}

	ChallengeMember struct {
		Status types.MemberStatus `gorm:"type:text;default:'active'"`
		User   *User              `gorm:"foreignKey:UserID"`
		Model

		ChallengeID    uuid.UUID
		UserID         uuid.UUID
		CurrentStreak  int
		LongestStreak  int
		TotalPenalties int64
	}

	// One row per member per evaluated day
	DailyResult struct {
		Model

		MemberID           uuid.UUID
		Date               datatypes.Date
		SubmissionCount    int
		QualifyingProblems int
		Passed             bool
	}

	// Append-only. Sum of Amount per member equals ChallengeMember.TotalPenalties.
	PenaltyLedgerEntry struct {
		Reason string
		Model

		MemberID uuid.UUID
		Date     datatypes.Date
		Amount   int64
	}
)

func (User) TableName() string { return "app_user" }
func (Challenge) TableName() string { return "challenge" }
func (ChallengeMember) TableName() string { return "challenge_member" }
func (DailyResult) TableName() string { return "daily_result" }
func (PenaltyLedgerEntry) TableName() string { return "penalty_ledger" }

func (u User) GetID() uuid.UUID { return u.ID }
func (c Challenge) GetID() uuid.UUID { return c.ID }
func (m ChallengeMember) GetID() uuid.UUID { return m.ID }
func (r DailyResult) GetID() uuid.UUID { return r.ID }
func (p PenaltyLedgerEntry) GetID() uuid.UUID { return p.ID }

// Whether `day` falls inside the inclusive [StartDate, EndDate] window
func (c Challenge) Covers(day time.Time) bool {
	d := DateOf(day)
	return !TimeOf(d).Before(TimeOf(c.StartDate)) && !TimeOf(d).After(TimeOf(c.EndDate))
}
