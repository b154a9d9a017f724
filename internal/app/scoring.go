package app

import (
	"edulearn-quiz-service/internal/domain"
)

// Score compares answers with the questions' correct indices. answers must be
// position-aligned with questions; domain.Unanswered marks a skip.
func Score(questions []domain.Question, answers []int) (domain.ScoreReport, error) {
	if len(questions) == 0 {
		return domain.ScoreReport{}, domain.ErrNoQuestions
	}
	if len(answers) != len(questions) {
		return domain.ScoreReport{}, domain.ErrAnswerCountMismatch
	}

	outcomes := make([]domain.QuestionOutcome, len(questions))
	correct := 0
	for i, q := range questions {
		var chosen *int
		if answers[i] != domain.Unanswered {
			v := answers[i]
			chosen = &v
		}
		isCorrect := chosen != nil && *chosen == q.CorrectAnswer
		if isCorrect {
			correct++
		}
		outcomes[i] = domain.QuestionOutcome{
			Question:      q.Question,
			Options:       append([]string(nil), q.Options...),
			UserAnswer:    chosen,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     isCorrect,
			Explanation:   q.Explanation,
		}
	}

	return domain.ScoreReport{
		Score:          percent(correct, len(questions)),
		CorrectAnswers: correct,
		TotalQuestions: len(questions),
		Outcomes:       outcomes,
	}, nil
}

// percent is round-half-up of part/whole*100 in integer arithmetic.
func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return (part*200 + whole) / (2 * whole)
}

// roundDiv is round-half-up of a/b for non-negative operands.
func roundDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (2*a + b) / (2 * b)
}
