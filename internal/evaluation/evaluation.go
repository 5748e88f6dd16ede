// Pure rules for deciding whether a member met a challenge's daily requirement and how their
// streak and penalty standing moves as a result.
package evaluation

import (
	"time"

	"github.com/mitesh006/Code-duel-backend/internal/models"
	"github.com/mitesh006/Code-duel-backend/internal/types"
)

type Rules struct {
	// Empty means every difficulty qualifies
	DifficultyFilter     []types.Difficulty
	MinSubmissionsPerDay int
	UniqueProblems       bool
}

func RulesOf(c *models.Challenge) Rules {
	return Rules{
		DifficultyFilter:     c.DifficultyFilter,
		MinSubmissionsPerDay: c.MinSubmissionsPerDay,
		UniqueProblems:       c.UniqueProblemConstraint,
	}
}

// Half open [Start, End) interval
type Window struct {
	Start time.Time
	End   time.Time
}

// The calendar day `date` as observed in `loc`
func DayWindow(date time.Time, loc *time.Location) Window {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

type Outcome struct {
	// Every submission inside the window regardless of status
	SubmissionCount int
	QualifyingCount int
	Passed          bool
}

func (r Rules) qualifies(s types.Submission) bool {
	if !s.Accepted {
		return false
	}
	if len(r.DifficultyFilter) == 0 {
		return true
	}
	for _, d := range r.DifficultyFilter {
		if d.Matches(s.Difficulty) {
			return true
		}
	}

	return false
}

func Evaluate(rules Rules, submissions []types.Submission, window Window) Outcome {
	var outcome Outcome
	seen := make(map[string]struct{})

	for _, s := range submissions {
		if !window.Contains(s.Timestamp) {
			continue
		}
		outcome.SubmissionCount++

		if !rules.qualifies(s) {
			continue
		}
		if rules.UniqueProblems {
			if _, ok := seen[s.ProblemSlug]; ok {
				continue
			}
			seen[s.ProblemSlug] = struct{}{}
		}
		outcome.QualifyingCount++
	}

	outcome.Passed = outcome.QualifyingCount >= rules.MinSubmissionsPerDay
	return outcome
}

type Standing struct {
	CurrentStreak  int
	LongestStreak  int
	TotalPenalties int64
}

func StandingOf(m *models.ChallengeMember) Standing {
	return Standing{
		CurrentStreak:  m.CurrentStreak,
		LongestStreak:  m.LongestStreak,
		TotalPenalties: m.TotalPenalties,
	}
}

type Transition struct {
	Next Standing
	// Set when a ledger entry of Penalty must be appended alongside Next
	Penalized bool
	Penalty   int64
}

// Moves `s` forward by one evaluated day.
//
// Keeps LongestStreak >= CurrentStreak even when `s` arrives violating it.
func Advance(s Standing, passed bool, penaltyAmount int64) Transition {
	next := s
	if passed {
		next.CurrentStreak++
		next.LongestStreak = max(next.LongestStreak, next.CurrentStreak)
		return Transition{Next: next}
	}

	next.CurrentStreak = 0
	next.TotalPenalties += penaltyAmount
	return Transition{Next: next, Penalized: true, Penalty: penaltyAmount}
}
