package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownTopic is returned when a topic id is not in the catalog.
	ErrUnknownTopic = errors.New("valid topic is required")
	// ErrInvalidDifficulty is returned when a topic does not offer the difficulty.
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	// ErrInvalidQuestionCount is returned for counts outside [MinQuestions, MaxQuestions].
	ErrInvalidQuestionCount = fmt.Errorf("question count must be between %d and %d", MinQuestions, MaxQuestions)
	// ErrAnswerCountMismatch indicates answers and questions are not position-aligned.
	ErrAnswerCountMismatch = errors.New("answer count does not match question count")
	// ErrNoQuestions indicates a submission without questions.
	ErrNoQuestions = errors.New("submission has no questions")

	// ErrGenerationService covers transport-level failures of the generation service.
	ErrGenerationService = errors.New("generation service error")
	// ErrMalformedQuestionData indicates no parseable question array in the payload.
	ErrMalformedQuestionData = errors.New("malformed question data")
	// ErrInvalidQuestionFormat indicates a parsed question failed validation.
	ErrInvalidQuestionFormat = errors.New("invalid question format")

	// ErrUserNotFound is returned when the owning user record is missing.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering an existing email.
	ErrEmailTaken = errors.New("account with this email already exists")
	// ErrInvalidCredentials hides which of email or password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated is returned when no token was presented.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidToken is returned for malformed, forged or expired tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUserInactive is returned when a token belongs to a disabled account.
	ErrUserInactive = errors.New("user not found or inactive")
)

// InvalidQuestionFormatError names the offending question in a generated batch.
type InvalidQuestionFormatError struct {
	Index  int
	Reason string
}

func (e *InvalidQuestionFormatError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid question format at index %d", e.Index)
	}
	return fmt.Sprintf("invalid question format at index %d: %s", e.Index, e.Reason)
}

func (e *InvalidQuestionFormatError) Is(target error) bool {
	return target == ErrInvalidQuestionFormat
}

// InvalidDifficultyError carries the difficulties the topic does accept.
type InvalidDifficultyError struct {
	Topic string
	Valid []string
}

func (e *InvalidDifficultyError) Error() string {
	return fmt.Sprintf("invalid difficulty. Valid options: %s", strings.Join(e.Valid, ", "))
}

func (e *InvalidDifficultyError) Is(target error) bool {
	return target == ErrInvalidDifficulty
}

// ValidationError is a user-facing input problem.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError builds a ValidationError.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a request-validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	return errors.Is(err, ErrUnknownTopic) ||
		errors.Is(err, ErrInvalidDifficulty) ||
		errors.Is(err, ErrInvalidQuestionCount) ||
		errors.Is(err, ErrAnswerCountMismatch) ||
		errors.Is(err, ErrNoQuestions)
}
