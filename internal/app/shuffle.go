package app

import (
	"math/rand"

	"edulearn-quiz-service/internal/domain"
)

// Shuffler permutes answer options. intn must return a uniform value in [0, n).
type Shuffler struct {
	intn func(n int) int
}

// NewShuffler uses math/rand's global source when intn is nil.
func NewShuffler(intn func(n int) int) Shuffler {
	if intn == nil {
		intn = rand.Intn
	}
	return Shuffler{intn: intn}
}

// Shuffle returns a copy of q with its options reordered and CorrectAnswer
// moved so it still addresses the same option text. q must already be validated.
func (s Shuffler) Shuffle(q domain.Question) domain.Question {
	perm := make([]int, len(q.Options))
	for i := range perm {
		perm[i] = i
	}
	for i := len(perm) - 1; i > 0; i-- {
		j := s.intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}

	out := q
	out.Options = make([]string, len(q.Options))
	for pos, from := range perm {
		out.Options[pos] = q.Options[from]
		if from == q.CorrectAnswer {
			out.CorrectAnswer = pos
		}
	}
	return out
}
