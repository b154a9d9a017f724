package domain

import "time"

// Difficulty levels a topic may offer.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// Quiz sizing and scoring constants.
const (
	MinQuestions        = 3
	MaxQuestions        = 20
	OptionsPerQuestion  = 4
	SecondsPerQuestion  = 60
	StreakThreshold     = 70
	RecentActivityLimit = 10
)

// Unanswered marks a question the user skipped.
const Unanswered = -1

// Topic is a static catalog entry.
type Topic struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Icon          string   `json:"icon"`
	Difficulties  []string `json:"difficulty"`
	Subcategories []string `json:"subcategories"`
	// ComplexityFocus asks the generator for time/space complexity framing.
	ComplexityFocus bool `json:"-"`
}

// SupportsDifficulty reports whether difficulty is valid for the topic.
func (t Topic) SupportsDifficulty(difficulty string) bool {
	for _, d := range t.Difficulties {
		if d == difficulty {
			return true
		}
	}
	return false
}

// Question models an MCQ question with exactly four options.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty"`
	Category      string   `json:"category"`
}

// Quiz is a generated, immutable set of questions. It is never stored.
type Quiz struct {
	ID            string     `json:"id"`
	Topic         string     `json:"topic"`
	Difficulty    string     `json:"difficulty"`
	QuestionCount int        `json:"questionCount"`
	Questions     []Question `json:"questions"`
	CreatedAt     time.Time  `json:"createdAt"`
	TimeLimit     int        `json:"timeLimit"`
}

// Submission is what a client sends back after answering a quiz.
// Answers are position-aligned with Questions; Unanswered marks a skip.
type Submission struct {
	QuizID     string
	Topic      string
	Difficulty string
	Questions  []Question
	Answers    []int
	TimeSpent  int
}

// QuestionOutcome is the per-question detail persisted with a result.
type QuestionOutcome struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	UserAnswer    *int     `json:"userAnswer"`
	CorrectAnswer int      `json:"correctAnswer"`
	IsCorrect     bool     `json:"isCorrect"`
	Explanation   string   `json:"explanation"`
}

// ScoreReport is the output of scoring one submission.
type ScoreReport struct {
	Score          int
	CorrectAnswers int
	TotalQuestions int
	Outcomes       []QuestionOutcome
}

// QuizResult is the persisted record of one submission.
type QuizResult struct {
	ID             string            `json:"id"`
	UserID         string            `json:"userId"`
	Topic          string            `json:"topic"`
	Difficulty     string            `json:"difficulty"`
	TotalQuestions int               `json:"totalQuestions"`
	CorrectAnswers int               `json:"correctAnswers"`
	Score          int               `json:"score"`
	TimeSpent      int               `json:"timeSpent"`
	Questions      []QuestionOutcome `json:"questions"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// Outcome is the slice of a result the statistics aggregator consumes.
func (r QuizResult) Outcome() QuizOutcome {
	return QuizOutcome{
		Topic:          r.Topic,
		TotalQuestions: r.TotalQuestions,
		CorrectAnswers: r.CorrectAnswers,
		Score:          r.Score,
	}
}

// QuizOutcome feeds one quiz into a user's running stats.
type QuizOutcome struct {
	Topic          string
	TotalQuestions int
	CorrectAnswers int
	Score          int
}

// TopicStats tracks per-topic progress. TotalScore is the sum of per-quiz
// percentage scores, not a question count.
type TopicStats struct {
	Attempts     int `json:"attempts"`
	TotalScore   int `json:"totalScore"`
	BestScore    int `json:"bestScore"`
	AverageScore int `json:"averageScore"`
}

// UserStats is embedded in the user document.
type UserStats struct {
	TotalQuizzes   int                   `json:"totalQuizzes"`
	TotalQuestions int                   `json:"totalQuestions"`
	CorrectAnswers int                   `json:"correctAnswers"`
	AverageScore   int                   `json:"averageScore"`
	StreakCount    int                   `json:"streakCount"`
	BestStreak     int                   `json:"bestStreak"`
	TopicStats     map[string]TopicStats `json:"topicStats"`
}

// NewUserStats returns zeroed stats with an empty topic map.
func NewUserStats() UserStats {
	return UserStats{TopicStats: make(map[string]TopicStats)}
}

// Clone returns a deep copy so callers can mutate freely.
func (s UserStats) Clone() UserStats {
	out := s
	out.TopicStats = make(map[string]TopicStats, len(s.TopicStats))
	for k, v := range s.TopicStats {
		out.TopicStats[k] = v
	}
	return out
}

// User is an account with embedded stats.
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"-"`
	Stats        UserStats `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Activity is a condensed result for the dashboard.
type Activity struct {
	Topic          string    `json:"topic"`
	Difficulty     string    `json:"difficulty"`
	Score          int       `json:"score"`
	Timestamp      time.Time `json:"timestamp"`
	TotalQuestions int       `json:"totalQuestions"`
	CorrectAnswers int       `json:"correctAnswers"`
}

// Activity condenses a result for the dashboard.
func (r QuizResult) Activity() Activity {
	return Activity{
		Topic:          r.Topic,
		Difficulty:     r.Difficulty,
		Score:          r.Score,
		Timestamp:      r.CreatedAt,
		TotalQuestions: r.TotalQuestions,
		CorrectAnswers: r.CorrectAnswers,
	}
}

// DashboardUser is the public profile shown on the dashboard.
type DashboardUser struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	JoinDate time.Time `json:"joinDate"`
}

// Dashboard aggregates everything the landing view needs.
type Dashboard struct {
	User            DashboardUser `json:"user"`
	Stats           UserStats     `json:"stats"`
	RecentActivity  []Activity    `json:"recentActivity"`
	AvailableTopics []Topic       `json:"availableTopics"`
}
