package types

type (
	JobKind  string
	JobState string
)

const (
	JobKindChallengeEvaluation JobKind = "challenge-evaluation"
	JobKindMemberEvaluation    JobKind = "member-evaluation"
)

const (
	JobStateWaiting   JobState = "waiting"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// Every state a job can be in, in lifecycle order
var JobStates = []JobState{
	JobStateWaiting,
	JobStateActive,
	JobStateCompleted,
	JobStateFailed,
}

// Terminal states are subject to retention
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

type (
	// Snapshot of how many jobs sit in each state
	JobCounts map[JobState]int64

	FailedJob struct {
		ID          string     `json:"id"`
		Kind        JobKind    `json:"kind"`
		Payload     any        `json:"payload"`
		Attempt     int        `json:"attempt"`
		MaxAttempts int        `json:"max_attempts"`
		LastError   *string    `json:"last_error"`
		EnqueuedAt  UnixMilli  `json:"enqueued_at"`
		FinishedAt  *UnixMilli `json:"finished_at"`
	}
)
