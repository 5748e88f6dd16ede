package submissions

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrProblemNotFound = errors.New("problem not found")

// Upstream kept answering 429 after the client's retry budget was spent
type RateLimitedError struct {
	Attempts   int
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf(
			"upstream rate limited after %d attempts, retry after %s",
			e.Attempts,
			e.RetryAfter,
		)
	}
	return fmt.Sprintf("upstream rate limited after %d attempts", e.Attempts)
}

type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected upstream status %d: %s", e.StatusCode, e.Body)
}

// GraphQL level errors returned with a 200
type QueryError struct {
	Messages []string
}

func (e *QueryError) Error() string {
	return "upstream query failed: " + strings.Join(e.Messages, "; ")
}
