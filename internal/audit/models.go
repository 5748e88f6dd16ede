package audit

import (
	"github.com/mitesh006/Code-duel-backend/internal/types"
)

var schemaVersion = "0.1.0"
var logContext = "audit"

type Disposition string

const (
	DispositionNeutral Disposition = "neutral"
	DispositionGood    Disposition = "good"
	DispositionBad     Disposition = "bad"
)

type EventType string

const (
	EvtEvaluationFannedOut EventType = "evaluation_fanned_out"
	EvtDailyResult         EventType = "daily_result"
	EvtPenaltyAssessed     EventType = "penalty_assessed"
	EvtJobFailed           EventType = "job_failed"
)

type Message struct {
	ChallengeID    *string     `json:"challenge_id"`
	MemberID       *string     `json:"member_id"`
	LogContext     string      `json:"log_context"     validate:"required"`
	SchemaVersion  string      `json:"version"         validate:"required"`
	EvaluationDate string      `json:"evaluation_date"`
	Disposition    Disposition `json:"disposition"     validate:"required"`
	Type           EventType   `json:"event_type"      validate:"required"`

	Timestamp types.UnixMilli `json:"timestamp" validate:"required"`
}

type EvaluationFannedOutEvent struct {
	Skipped  bool   `json:"skipped"`
	Reason   string `json:"reason,omitempty"`
	Enqueued int    `json:"enqueued"`
}

type EvaluationFannedOut struct {
	Event EvaluationFannedOutEvent `json:"event" validate:"required"`
	Message
}

type DailyResultEvent struct {
	SubmissionCount    int  `json:"submission_count"`
	QualifyingProblems int  `json:"qualifying_problems"`
	Passed             bool `json:"passed"`
	CurrentStreak      int  `json:"current_streak"`
	LongestStreak      int  `json:"longest_streak"`
	// false when an earlier delivery already materialized the same day
	Applied bool `json:"applied"`
}

type DailyResult struct {
	Event DailyResultEvent `json:"event" validate:"required"`
	Message
}

type PenaltyAssessedEvent struct {
	Reason         string `json:"reason"          validate:"required"`
	Amount         int64  `json:"amount"`
	TotalPenalties int64  `json:"total_penalties"`
}

type PenaltyAssessed struct {
	Event PenaltyAssessedEvent `json:"event" validate:"required"`
	Message
}

type JobFailedEvent struct {
	JobID       string        `json:"job_id"       validate:"required"`
	Kind        types.JobKind `json:"kind"         validate:"required"`
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"max_attempts"`
	Error       string        `json:"error"`
	Poisoned    bool          `json:"poisoned"`
}

type JobFailed struct {
	Event JobFailedEvent `json:"event" validate:"required"`
	Message
}
