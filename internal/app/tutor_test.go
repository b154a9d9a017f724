package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"edulearn-quiz-service/internal/domain"
	"edulearn-quiz-service/internal/logger"
)

func TestTutorChat(t *testing.T) {
	llm := &fakeCompleter{reply: "  A closure captures variables.  "}
	tutor := NewTutorService(llm, logger.Nop())

	reply, err := tutor.Chat(context.Background(), "What is a closure?", "")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply.Response != "A closure captures variables." || reply.Timestamp.IsZero() {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if llm.last.Temperature != 0.7 || llm.last.MaxTokens != 1000 {
		t.Fatalf("unexpected request: %+v", llm.last)
	}
	if !strings.Contains(llm.last.Messages[0].Content, defaultStudentContext) {
		t.Fatalf("default context missing from system prompt")
	}
	if llm.last.Messages[1].Content != "What is a closure?" {
		t.Fatalf("user message not forwarded: %+v", llm.last.Messages[1])
	}
}

func TestTutorChatErrors(t *testing.T) {
	tutor := NewTutorService(&fakeCompleter{reply: "ok"}, logger.Nop())
	if _, err := tutor.Chat(context.Background(), "   ", ""); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	failing := NewTutorService(&fakeCompleter{err: errors.New("timeout")}, logger.Nop())
	if _, err := failing.Chat(context.Background(), "hi", "arrays"); !errors.Is(err, domain.ErrGenerationService) {
		t.Fatalf("expected generation error, got %v", err)
	}

	empty := NewTutorService(&fakeCompleter{reply: " "}, logger.Nop())
	if _, err := empty.Chat(context.Background(), "hi", ""); !errors.Is(err, domain.ErrGenerationService) {
		t.Fatalf("expected generation error for empty reply, got %v", err)
	}
}
