package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"edulearn-quiz-service/internal/domain"
	"edulearn-quiz-service/internal/logger"
)

const defaultStudentContext = "General programming questions"

const tutorSystemPrompt = `You are EduLearn's expert programming tutor and educational assistant. Your role is to:

1. Provide clear, helpful explanations on programming and computer science topics
2. Break down complex concepts into understandable parts
3. Offer practical examples and code snippets when relevant
4. Encourage learning and critical thinking
5. Be patient and supportive

Guidelines:
- Keep responses focused and educational
- Use simple language but maintain technical accuracy
- Provide step-by-step explanations for complex topics
- Include relevant examples or analogies

Student context: %s`

// TutorReply is one answer from the AI tutor.
type TutorReply struct {
	Response  string
	Timestamp time.Time
}

// TutorService answers free-form learning questions through the generation service.
type TutorService struct {
	llm Completer
	log *logger.Logger
	now func() time.Time
}

func NewTutorService(llm Completer, log *logger.Logger) *TutorService {
	return &TutorService{llm: llm, log: log, now: time.Now}
}

// Chat sends message with optional student context and returns the trimmed reply.
func (t *TutorService) Chat(ctx context.Context, message, studentContext string) (TutorReply, error) {
	if strings.TrimSpace(message) == "" {
		return TutorReply{}, domain.NewValidationError("Message is required")
	}
	if strings.TrimSpace(studentContext) == "" {
		studentContext = defaultStudentContext
	}

	reply, err := t.llm.Complete(ctx, CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: fmt.Sprintf(tutorSystemPrompt, studentContext)},
			{Role: "user", Content: message},
		},
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		t.log.Error("tutor completion failed", "err", err)
		if !errors.Is(err, domain.ErrGenerationService) {
			err = fmt.Errorf("%w: %v", domain.ErrGenerationService, err)
		}
		return TutorReply{}, err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return TutorReply{}, fmt.Errorf("%w: empty tutor reply", domain.ErrGenerationService)
	}
	return TutorReply{Response: reply, Timestamp: t.now().UTC()}, nil
}
