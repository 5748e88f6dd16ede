package evaluation_test

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitesh006/Code-duel-backend/internal/evaluation"
	"github.com/mitesh006/Code-duel-backend/internal/types"
)

var day = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time {
	return day.Add(time.Duration(hour) * time.Hour)
}

func accepted(slug string, difficulty types.Difficulty, ts time.Time) types.Submission {
	return types.Submission{
		ProblemSlug: slug,
		Difficulty:  difficulty,
		Timestamp:   ts,
		Accepted:    true,
	}
}

func TestDayWindow(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err, "failed to load timezone")

	w := evaluation.DayWindow(day, loc)
	assert.Equal(t, 24*time.Hour, w.End.Sub(w.Start))
	assert.True(t, w.Contains(w.Start), "start is inclusive")
	assert.False(t, w.Contains(w.End), "end is exclusive")
	// 20:00 UTC on the 1st is already the 2nd in Kolkata
	assert.False(t, w.Contains(at(20)))
	assert.True(t, w.Contains(at(-2)))
}

func TestEvaluate(t *testing.T) {
	window := evaluation.DayWindow(day, time.UTC)
	rules := evaluation.Rules{MinSubmissionsPerDay: 1}

	t.Run("TwoAcceptedPasses", func(t *testing.T) {
		outcome := evaluation.Evaluate(rules, []types.Submission{
			accepted("two-sum", types.DifficultyEasy, at(3)),
			accepted("add-two-numbers", types.DifficultyMedium, at(9)),
		}, window)

		assert.True(t, outcome.Passed)
		assert.Equal(t, 2, outcome.QualifyingCount)
		assert.Equal(t, 2, outcome.SubmissionCount)
	})

	t.Run("NothingFails", func(t *testing.T) {
		outcome := evaluation.Evaluate(rules, nil, window)

		assert.False(t, outcome.Passed)
		assert.Zero(t, outcome.QualifyingCount)
	})

	t.Run("RejectedDoesNotQualify", func(t *testing.T) {
		rejected := accepted("two-sum", types.DifficultyEasy, at(3))
		rejected.Accepted = false

		outcome := evaluation.Evaluate(rules, []types.Submission{rejected}, window)

		assert.False(t, outcome.Passed)
		assert.Equal(t, 1, outcome.SubmissionCount, "rejected submissions still count as activity")
	})

	t.Run("OutsideWindowIgnored", func(t *testing.T) {
		outcome := evaluation.Evaluate(rules, []types.Submission{
			accepted("two-sum", types.DifficultyEasy, at(-1)),
			accepted("two-sum", types.DifficultyEasy, at(24)),
		}, window)

		assert.False(t, outcome.Passed)
		assert.Zero(t, outcome.SubmissionCount)
	})

	t.Run("UniqueProblems", func(t *testing.T) {
		unique := rules
		unique.UniqueProblems = true
		subs := []types.Submission{
			accepted("two-sum", types.DifficultyEasy, at(1)),
			accepted("two-sum", types.DifficultyEasy, at(2)),
			accepted("valid-parentheses", types.DifficultyEasy, at(3)),
		}

		assert.Equal(t, 2, evaluation.Evaluate(unique, subs, window).QualifyingCount)
		assert.Equal(t, 3, evaluation.Evaluate(rules, subs, window).QualifyingCount)
	})

	t.Run("DifficultyFilter", func(t *testing.T) {
		filtered := evaluation.Rules{
			MinSubmissionsPerDay: 2,
			DifficultyFilter:     []types.Difficulty{types.DifficultyMedium, types.DifficultyHard},
		}
		outcome := evaluation.Evaluate(filtered, []types.Submission{
			accepted("two-sum", types.DifficultyEasy, at(1)),
			accepted("lru-cache", "MEDIUM", at(2)),
			accepted("unknown", "", at(3)),
		}, window)

		assert.Equal(t, 1, outcome.QualifyingCount)
		assert.False(t, outcome.Passed)
	})

	t.Run("ZeroMinimumAlwaysPasses", func(t *testing.T) {
		outcome := evaluation.Evaluate(evaluation.Rules{}, nil, window)
		assert.True(t, outcome.Passed)
	})
}

func TestAdvance(t *testing.T) {
	t.Run("PassExtendsStreak", func(t *testing.T) {
		tr := evaluation.Advance(evaluation.Standing{CurrentStreak: 4, LongestStreak: 4}, true, 50)

		assert.False(t, tr.Penalized)
		assert.Equal(t, 5, tr.Next.CurrentStreak)
		assert.Equal(t, 5, tr.Next.LongestStreak)
		assert.Zero(t, tr.Next.TotalPenalties)
	})

	t.Run("PassKeepsLongerRecord", func(t *testing.T) {
		tr := evaluation.Advance(evaluation.Standing{CurrentStreak: 1, LongestStreak: 9}, true, 50)

		assert.Equal(t, 2, tr.Next.CurrentStreak)
		assert.Equal(t, 9, tr.Next.LongestStreak)
	})

	t.Run("MissResetsAndPenalizes", func(t *testing.T) {
		tr := evaluation.Advance(
			evaluation.Standing{CurrentStreak: 3, LongestStreak: 7, TotalPenalties: 100},
			false,
			50,
		)

		assert.True(t, tr.Penalized)
		assert.Equal(t, int64(50), tr.Penalty)
		assert.Zero(t, tr.Next.CurrentStreak)
		assert.Equal(t, 7, tr.Next.LongestStreak)
		assert.Equal(t, int64(150), tr.Next.TotalPenalties)
	})

	t.Run("Invariants", func(t *testing.T) {
		rng := rand.New(rand.NewPCG(1, 2))

		var s evaluation.Standing
		var ledger int64
		for range 1000 {
			tr := evaluation.Advance(s, rng.IntN(3) > 0, rng.Int64N(100))
			if tr.Penalized {
				ledger += tr.Penalty
			}
			s = tr.Next

			require.GreaterOrEqual(t, s.CurrentStreak, 0)
			require.GreaterOrEqual(t, s.LongestStreak, s.CurrentStreak)
			require.Equal(t, ledger, s.TotalPenalties, "ledger sum drifted from total")
		}
	})
}
