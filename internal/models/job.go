package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mitesh006/Code-duel-backend/internal/types"
)

type Job struct {
	Kind  types.JobKind  `gorm:"type:text"`
	State types.JobState `gorm:"type:text;default:'waiting'"`
	Model

	Payload        datatypes.JSON
	Attempt        int
	MaxAttempts    int
	EnqueuedAt     time.Time
	NextAttemptAt  time.Time
	LockedBy       *string
	LeaseExpiresAt *time.Time
	LastError      *string
	FinishedAt     *time.Time
}

func (Job) TableName() string {
	return "job"
}

func (j Job) GetID() uuid.UUID {
	return j.ID
}

// Maps a terminally failed job into its inspection shape
func (j Job) AsFailedJob() types.FailedJob {
	failed := types.FailedJob{
		ID:          j.ID.String(),
		Kind:        j.Kind,
		Payload:     j.Payload,
		Attempt:     j.Attempt,
		MaxAttempts: j.MaxAttempts,
		LastError:   j.LastError,
		EnqueuedAt:  types.NewUnixMilli(j.EnqueuedAt),
	}
	if j.FinishedAt != nil {
		finished := types.NewUnixMilli(*j.FinishedAt)
		failed.FinishedAt = &finished
	}

	return failed
}
