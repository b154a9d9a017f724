package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"edulearn-quiz-service/internal/app"
	"edulearn-quiz-service/internal/domain"
	"edulearn-quiz-service/internal/logger"
)

const (
	defaultDifficulty    = domain.DifficultyIntermediate
	defaultQuestionCount = 5
	maxBodyBytes         = 10 << 20
)

// HealthInfo describes which backing services the process was wired with.
type HealthInfo struct {
	Version   string `json:"version"`
	Generator bool   `json:"generator"`
	Auth      bool   `json:"auth"`
	Database  string `json:"database"`
	Cache     string `json:"cache"`
}

// Handlers serves the REST API.
type Handlers struct {
	quizzes *app.QuizService
	auth    *app.AuthService
	tutor   *app.TutorService
	health  HealthInfo
	log     *logger.Logger
	now     func() time.Time
}

func NewHandlers(quizzes *app.QuizService, auth *app.AuthService, tutor *app.TutorService, health HealthInfo, log *logger.Logger) *Handlers {
	return &Handlers{
		quizzes: quizzes,
		auth:    auth,
		tutor:   tutor,
		health:  health,
		log:     log,
		now:     time.Now,
	}
}

type publicUser struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type authResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Token   string     `json:"token"`
	User    publicUser `json:"user"`
}

func toPublicUser(u domain.User) publicUser {
	return publicUser{ID: u.ID, FullName: u.FullName, Email: u.Email, CreatedAt: u.CreatedAt}
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in app.RegisterInput
	if !h.decode(w, r, &in) {
		return
	}
	user, token, err := h.auth.Register(r.Context(), in)
	if err != nil {
		respondError(w, h.log, err, "Failed to create account. Please try again.")
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{
		Success: true,
		Message: "Account created successfully",
		Token:   token,
		User:    toPublicUser(user),
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in app.LoginInput
	if !h.decode(w, r, &in) {
		return
	}
	user, token, err := h.auth.Login(r.Context(), in)
	if err != nil {
		respondError(w, h.log, err, "Login failed. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		Success: true,
		Message: "Login successful",
		Token:   token,
		User:    toPublicUser(user),
	})
}

func (h *Handlers) Topics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"topics":  h.quizzes.Topics(),
	})
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"status":    "healthy",
		"timestamp": h.now().UTC(),
		"version":   h.health.Version,
		"services":  h.health,
		"topics":    len(h.quizzes.Topics()),
	})
}

type generateRequest struct {
	Topic         string `json:"topic"`
	Difficulty    string `json:"difficulty"`
	QuestionCount *int   `json:"questionCount"`
}

func (h *Handlers) GenerateQuiz(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "Valid topic is required")
		return
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = defaultDifficulty
	}
	count := defaultQuestionCount
	if req.QuestionCount != nil {
		count = *req.QuestionCount
	}

	user, _ := userFrom(r.Context())
	h.log.Info("generating quiz", "user_id", user.ID, "topic", req.Topic, "difficulty", difficulty, "count", count)

	quiz, err := h.quizzes.Generate(r.Context(), req.Topic, difficulty, count)
	if err != nil {
		respondError(w, h.log, err, "Failed to generate quiz questions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"quiz":    quiz,
	})
}

type submitRequest struct {
	QuizID      string            `json:"quizId"`
	Topic       string            `json:"topic"`
	Difficulty  string            `json:"difficulty"`
	Questions   []domain.Question `json:"questions"`
	UserAnswers []*int            `json:"userAnswers"`
	TimeSpent   int               `json:"timeSpent"`
}

type submitResult struct {
	ID              string                   `json:"id"`
	Score           int                      `json:"score"`
	CorrectAnswers  int                      `json:"correctAnswers"`
	TotalQuestions  int                      `json:"totalQuestions"`
	Percentage      int                      `json:"percentage"`
	TimeSpent       int                      `json:"timeSpent"`
	DetailedResults []domain.QuestionOutcome `json:"detailedResults"`
}

func (h *Handlers) SubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Questions == nil || req.UserAnswers == nil {
		writeError(w, http.StatusBadRequest, "Invalid quiz submission data")
		return
	}

	answers := make([]int, len(req.UserAnswers))
	for i, a := range req.UserAnswers {
		answers[i] = domain.Unanswered
		if a != nil {
			answers[i] = *a
		}
	}

	user, _ := userFrom(r.Context())
	res, err := h.quizzes.Submit(r.Context(), user.ID, domain.Submission{
		QuizID:     req.QuizID,
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		Questions:  req.Questions,
		Answers:    answers,
		TimeSpent:  req.TimeSpent,
	})
	if err != nil {
		respondError(w, h.log, err, "Failed to submit quiz results")
		return
	}

	result := res.Result
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result": submitResult{
			ID:              result.ID,
			Score:           result.Score,
			CorrectAnswers:  result.CorrectAnswers,
			TotalQuestions:  result.TotalQuestions,
			Percentage:      result.Score,
			TimeSpent:       result.TimeSpent,
			DetailedResults: result.Questions,
		},
		"progress": res.Stats,
	})
}

func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())
	dash, err := h.quizzes.Dashboard(r.Context(), user.ID)
	if err != nil {
		respondError(w, h.log, err, "Failed to load dashboard data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"user":            dash.User,
		"stats":           dash.Stats,
		"recentActivity":  dash.RecentActivity,
		"availableTopics": dash.AvailableTopics,
	})
}

type chatRequest struct {
	Message string `json:"message"`
	Context string `json:"context"`
}

func (h *Handlers) TutorChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decode(w, r, &req) {
		return
	}
	reply, err := h.tutor.Chat(r.Context(), req.Message, req.Context)
	if err != nil {
		if domain.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, domain.ErrGenerationService) {
			writeError(w, http.StatusBadGateway, "AI tutor is temporarily unavailable. Please try again.")
			return
		}
		respondError(w, h.log, err, "AI tutor is temporarily unavailable. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"response":  reply.Response,
		"timestamp": reply.Timestamp,
	})
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}
