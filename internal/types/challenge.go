package types

import (
	"strings"
	"time"
)

type (
	ChallengeStatus string
	MemberStatus    string
	Difficulty      string
)

const (
	ChallengeStatusDraft     ChallengeStatus = "draft"
	ChallengeStatusActive    ChallengeStatus = "active"
	ChallengeStatusCompleted ChallengeStatus = "completed"
	ChallengeStatusCancelled ChallengeStatus = "cancelled"
)

const (
	MemberStatusActive MemberStatus = "active"
	MemberStatusLeft   MemberStatus = "left"
)

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

const PenaltyReasonMissedDay = "missed day"

// Compares difficulties the way upstream spells them inconsistently ("EASY", "easy", "Easy")
func (d Difficulty) Matches(other Difficulty) bool {
	return strings.EqualFold(strings.TrimSpace(string(d)), strings.TrimSpace(string(other)))
}

type (
	// A single upstream submission, never persisted verbatim
	Submission struct {
		ProblemSlug string
		Difficulty  Difficulty
		Timestamp   time.Time
		Accepted    bool
	}

	ProblemMetadata struct {
		Slug       string     `json:"slug"`
		Title      string     `json:"title"`
		Difficulty Difficulty `json:"difficulty"`
	}
)
