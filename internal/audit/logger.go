package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mitesh006/Code-duel-backend/internal/logger"
	"github.com/mitesh006/Code-duel-backend/internal/types"
)

type Context struct {
	ChallengeID    *uuid.UUID
	MemberID       *uuid.UUID
	EvaluationDate string
}

func (c Context) message(evt EventType, disp Disposition) Message {
	m := Message{
		LogContext:     logContext,
		SchemaVersion:  schemaVersion,
		EvaluationDate: c.EvaluationDate,
		Disposition:    disp,
		Type:           evt,
		Timestamp:      types.NewUnixMilli(time.Now()),
	}
	if c.ChallengeID != nil {
		id := c.ChallengeID.String()
		m.ChallengeID = &id
	}
	if c.MemberID != nil {
		id := c.MemberID.String()
		m.MemberID = &id
	}

	return m
}

func emit(event any, evt EventType) {
	evtStr, err := json.Marshal(event)
	if err != nil {
		logger.Logger.Error("could not serialize audit event", "eventType", evt, "error", err)
		return
	}

	fmt.Println(string(evtStr))
}

func LogEvaluationFannedOut(c Context, enqueued int, skipReason string) {
	event := EvaluationFannedOut{}
	event.Message = c.message(EvtEvaluationFannedOut, DispositionNeutral)

	event.Event.Enqueued = enqueued
	event.Event.Skipped = skipReason != ""
	event.Event.Reason = skipReason

	emit(event, EvtEvaluationFannedOut)
}

func LogDailyResult(
	c Context,
	submissionCount int,
	qualifyingProblems int,
	passed bool,
	currentStreak int,
	longestStreak int,
	applied bool,
) {
	disp := DispositionBad
	if passed {
		disp = DispositionGood
	}

	event := DailyResult{}
	event.Message = c.message(EvtDailyResult, disp)

	event.Event.SubmissionCount = submissionCount
	event.Event.QualifyingProblems = qualifyingProblems
	event.Event.Passed = passed
	event.Event.CurrentStreak = currentStreak
	event.Event.LongestStreak = longestStreak
	event.Event.Applied = applied

	emit(event, EvtDailyResult)
}

func LogPenaltyAssessed(c Context, reason string, amount int64, totalPenalties int64) {
	event := PenaltyAssessed{}
	event.Message = c.message(EvtPenaltyAssessed, DispositionBad)

	event.Event.Reason = reason
	event.Event.Amount = amount
	event.Event.TotalPenalties = totalPenalties

	emit(event, EvtPenaltyAssessed)
}

func LogJobFailed(c Context, job types.FailedJob, poisoned bool) {
	event := JobFailed{}
	event.Message = c.message(EvtJobFailed, DispositionBad)

	event.Event.JobID = job.ID
	event.Event.Kind = job.Kind
	event.Event.Attempt = job.Attempt
	event.Event.MaxAttempts = job.MaxAttempts
	event.Event.Poisoned = poisoned
	if job.LastError != nil {
		event.Event.Error = *job.LastError
	}

	emit(event, EvtJobFailed)
}
