package app

import (
	"edulearn-quiz-service/internal/domain"
)

// ApplyOutcome folds one quiz outcome into a copy of stats and returns it.
// The input is never mutated.
func ApplyOutcome(stats domain.UserStats, outcome domain.QuizOutcome) domain.UserStats {
	next := stats.Clone()

	next.TotalQuizzes++
	next.TotalQuestions += outcome.TotalQuestions
	next.CorrectAnswers += outcome.CorrectAnswers
	// Recomputed from totals, never an average of averages.
	next.AverageScore = percent(next.CorrectAnswers, next.TotalQuestions)

	if outcome.Score >= domain.StreakThreshold {
		next.StreakCount++
		if next.StreakCount > next.BestStreak {
			next.BestStreak = next.StreakCount
		}
	} else {
		next.StreakCount = 0
	}

	ts := next.TopicStats[outcome.Topic]
	ts.Attempts++
	ts.TotalScore += outcome.Score
	ts.AverageScore = roundDiv(ts.TotalScore, ts.Attempts)
	if outcome.Score > ts.BestScore {
		ts.BestScore = outcome.Score
	}
	next.TopicStats[outcome.Topic] = ts

	return next
}
