package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"edulearn-quiz-service/internal/catalog"
	"edulearn-quiz-service/internal/domain"
	"edulearn-quiz-service/internal/logger"
)

// Message is one role-tagged chat message sent to the generation service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a single chat-completion call.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Completer is the generation service as seen by the app layer. It returns
// the text content of the first choice.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

const (
	defaultQuizMaxTokens = 3000
	advancedTemperature  = 0.9
	standardTemperature  = 0.8
)

// Generator turns a topic/difficulty/count request into a shuffled Quiz.
type Generator struct {
	topics    *catalog.Catalog
	llm       Completer
	shuffler  Shuffler
	log       *logger.Logger
	now       func() time.Time
	maxTokens int
}

// GeneratorOption customises a Generator.
type GeneratorOption func(*Generator)

// WithShuffler replaces the random source used for option shuffling.
func WithShuffler(s Shuffler) GeneratorOption {
	return func(g *Generator) { g.shuffler = s }
}

// WithClock is used by tests for deterministic ids and timestamps.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// WithMaxTokens overrides the output token budget for quiz generation.
func WithMaxTokens(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

func NewGenerator(topics *catalog.Catalog, llm Completer, log *logger.Logger, opts ...GeneratorOption) *Generator {
	g := &Generator{
		topics:    topics,
		llm:       llm,
		shuffler:  NewShuffler(nil),
		log:       log,
		now:       time.Now,
		maxTokens: defaultQuizMaxTokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate validates the request, calls the generation service once and
// returns a complete quiz or an error. No partial quiz is ever returned.
func (g *Generator) Generate(ctx context.Context, topicID, difficulty string, count int) (domain.Quiz, error) {
	prompt, err := BuildPrompt(g.topics, topicID, difficulty, count)
	if err != nil {
		return domain.Quiz{}, err
	}

	temperature := standardTemperature
	if difficulty == domain.DifficultyAdvanced {
		temperature = advancedTemperature
	}

	payload, err := g.llm.Complete(ctx, CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: generatorSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrGenerationService) {
			err = fmt.Errorf("%w: %v", domain.ErrGenerationService, err)
		}
		return domain.Quiz{}, err
	}
	if strings.TrimSpace(payload) == "" {
		return domain.Quiz{}, fmt.Errorf("%w: empty completion", domain.ErrGenerationService)
	}

	questions, err := ExtractQuestions(payload)
	if err != nil {
		g.log.Error("generated questions rejected", "topic", topicID, "difficulty", difficulty, "err", err, "payload", payload)
		return domain.Quiz{}, err
	}
	if len(questions) < count {
		g.log.Error("generated too few questions", "topic", topicID, "want", count, "got", len(questions), "payload", payload)
		return domain.Quiz{}, fmt.Errorf("%w: expected %d questions, got %d", domain.ErrMalformedQuestionData, count, len(questions))
	}
	questions = questions[:count]

	for i := range questions {
		questions[i] = g.shuffler.Shuffle(questions[i])
	}

	now := g.now()
	return domain.Quiz{
		ID:            newQuizID(now),
		Topic:         topicID,
		Difficulty:    difficulty,
		QuestionCount: len(questions),
		Questions:     questions,
		CreatedAt:     now,
		TimeLimit:     len(questions) * domain.SecondsPerQuestion,
	}, nil
}

// newQuizID is quiz_<unix millis>_<9 base36 chars>.
func newQuizID(now time.Time) string {
	suffix := strconv.FormatInt(rand.Int63(), 36)
	for len(suffix) < 9 {
		suffix = "0" + suffix
	}
	return fmt.Sprintf("quiz_%d_%s", now.UnixMilli(), suffix[len(suffix)-9:])
}
