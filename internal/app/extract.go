package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"edulearn-quiz-service/internal/domain"
)

// ExtractQuestions finds the first well-formed JSON array in payload and
// validates every element. Surrounding prose and code fences are ignored.
func ExtractQuestions(payload string) ([]domain.Question, error) {
	elems, ok := firstJSONArray(payload)
	if !ok {
		return nil, domain.ErrMalformedQuestionData
	}

	questions := make([]domain.Question, 0, len(elems))
	for i, raw := range elems {
		q, err := decodeQuestion(i, raw)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

type rawQuestion struct {
	Question      string          `json:"question"`
	Options       []string        `json:"options"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	Explanation   string          `json:"explanation"`
	Difficulty    string          `json:"difficulty"`
	Category      string          `json:"category"`
}

func decodeQuestion(index int, raw json.RawMessage) (domain.Question, error) {
	var rq rawQuestion
	if err := json.Unmarshal(raw, &rq); err != nil {
		return domain.Question{}, &domain.InvalidQuestionFormatError{Index: index, Reason: "not a question object"}
	}
	if strings.TrimSpace(rq.Question) == "" {
		return domain.Question{}, &domain.InvalidQuestionFormatError{Index: index, Reason: "empty question text"}
	}
	if len(rq.Options) != domain.OptionsPerQuestion {
		return domain.Question{}, &domain.InvalidQuestionFormatError{
			Index:  index,
			Reason: fmt.Sprintf("expected %d options, got %d", domain.OptionsPerQuestion, len(rq.Options)),
		}
	}
	correct, ok := parseAnswerIndex(rq.CorrectAnswer)
	if !ok {
		return domain.Question{}, &domain.InvalidQuestionFormatError{Index: index, Reason: "correctAnswer must be an integer in [0,3]"}
	}
	return domain.Question{
		Question:      rq.Question,
		Options:       rq.Options,
		CorrectAnswer: correct,
		Explanation:   rq.Explanation,
		Difficulty:    rq.Difficulty,
		Category:      rq.Category,
	}, nil
}

func parseAnswerIndex(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) || f < 0 || f >= domain.OptionsPerQuestion {
		return 0, false
	}
	return int(f), true
}

// firstJSONArray tries each '[' in order and returns the elements of the
// first balanced span that parses as a non-empty JSON array of objects.
// Arrays of scalars (an options list nested in a broken outer array) are skipped.
func firstJSONArray(s string) ([]json.RawMessage, bool) {
	for start := strings.IndexByte(s, '['); start >= 0; {
		if end, ok := matchBracket(s, start); ok {
			span := s[start : end+1]
			if json.Valid([]byte(span)) {
				var elems []json.RawMessage
				if err := json.Unmarshal([]byte(span), &elems); err == nil && allObjects(elems) {
					return elems, true
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

func allObjects(elems []json.RawMessage) bool {
	if len(elems) == 0 {
		return false
	}
	for _, e := range elems {
		trimmed := bytes.TrimSpace(e)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return false
		}
	}
	return true
}

// matchBracket returns the index of the ']' closing the '[' at start,
// skipping brackets inside JSON string literals.
func matchBracket(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
