package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"edulearn-quiz-service/internal/domain"
	"edulearn-quiz-service/internal/logger"
)

const msgTooManyRequests = "Too many requests, please try again later."

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Success: false, Error: msg})
}

// respondError maps a use-case error to a status and user-facing message.
// fallback is shown for unclassified failures; details only go to the log.
func respondError(w http.ResponseWriter, log *logger.Logger, err error, fallback string) {
	status, msg := classify(err, fallback)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "err", err)
	}
	writeError(w, status, msg)
}

func classify(err error, fallback string) (int, string) {
	var diffErr *domain.InvalidDifficultyError
	switch {
	case errors.As(err, &diffErr):
		return http.StatusBadRequest, capitalize(diffErr.Error())
	case errors.Is(err, domain.ErrUnknownTopic):
		return http.StatusBadRequest, "Valid topic is required"
	case errors.Is(err, domain.ErrInvalidQuestionCount):
		return http.StatusBadRequest, capitalize(domain.ErrInvalidQuestionCount.Error())
	case errors.Is(err, domain.ErrAnswerCountMismatch), errors.Is(err, domain.ErrNoQuestions):
		return http.StatusBadRequest, "Invalid quiz submission data"
	case domain.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, domain.ErrUserInactive):
		return http.StatusUnauthorized, "User not found or inactive"
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusForbidden, "Invalid or expired token"
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "Account with this email already exists"
	case errors.Is(err, domain.ErrMalformedQuestionData), errors.Is(err, domain.ErrInvalidQuestionFormat):
		return http.StatusBadGateway, "Failed to parse quiz questions from AI response"
	case errors.Is(err, domain.ErrGenerationService):
		return http.StatusBadGateway, "Failed to generate quiz questions"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	}
	return http.StatusInternalServerError, fallback
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
