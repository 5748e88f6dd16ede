package queue

import (
	"time"
)

type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// Delay before the next delivery after `attempt` (1 based) failed: base, 2*base, 4*base...
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// keeps the shift from overflowing on absurd attempt counts
	shift := min(attempt-1, 30)
	return p.BackoffBase * time.Duration(1<<shift)
}

// Whether a job that failed `attempt` out of `maxAttempts` should go back to waiting
func (p RetryPolicy) ShouldRetry(attempt, maxAttempts int, poisoned bool) bool {
	return !poisoned && attempt < maxAttempts
}

type RetentionPolicy struct {
	CompletedAge   time.Duration
	CompletedCount int
	FailedAge      time.Duration
	FailedCount    int
}

type SweepResult struct {
	CompletedPurged int64 `json:"completed_purged"`
	FailedPurged    int64 `json:"failed_purged"`
	FailedArchived  int64 `json:"failed_archived"`
}
