package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"edulearn-quiz-service/internal/catalog"
	"edulearn-quiz-service/internal/domain"
	"edulearn-quiz-service/internal/logger"
)

// UserRepository persists accounts (in-memory, Postgres).
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
}

// ProgressStore records a result and the owner's updated stats as one unit.
// apply receives the current stats and returns the stats to persist.
type ProgressStore interface {
	RecordResult(ctx context.Context, result domain.QuizResult, apply func(domain.UserStats) domain.UserStats) (domain.UserStats, error)
}

// ActivityLoader reads the newest results of a user from the backing store.
type ActivityLoader interface {
	LoadActivity(ctx context.Context, userID string, limit int) ([]domain.Activity, error)
}

// ActivityCache fronts an ActivityLoader (in-memory, Redis).
type ActivityCache interface {
	Recent(ctx context.Context, userID string) ([]domain.Activity, error)
	Invalidate(ctx context.Context, userID string) error
}

// SubmitResult is what a successful submission returns.
type SubmitResult struct {
	Result domain.QuizResult
	Stats  domain.UserStats
}

// QuizService contains the quiz use cases: generate, submit, dashboard.
type QuizService struct {
	topics    *catalog.Catalog
	generator *Generator
	users     UserRepository
	progress  ProgressStore
	activity  ActivityCache
	feed      *ProgressFeed
	log       *logger.Logger
	now       func() time.Time
}

func NewQuizService(
	topics *catalog.Catalog,
	generator *Generator,
	users UserRepository,
	progress ProgressStore,
	activity ActivityCache,
	feed *ProgressFeed,
	log *logger.Logger,
) *QuizService {
	return &QuizService{
		topics:    topics,
		generator: generator,
		users:     users,
		progress:  progress,
		activity:  activity,
		feed:      feed,
		log:       log,
		now:       time.Now,
	}
}

// SetClock is test-only for deterministic timestamps.
func (s *QuizService) SetClock(now func() time.Time) {
	s.now = now
}

// Topics returns the catalog in display order.
func (s *QuizService) Topics() []domain.Topic {
	return s.topics.All()
}

// Generate produces a new quiz. Nothing is persisted.
func (s *QuizService) Generate(ctx context.Context, topicID, difficulty string, count int) (domain.Quiz, error) {
	return s.generator.Generate(ctx, topicID, difficulty, count)
}

// Submit scores a submission, folds it into the user's stats and persists
// both atomically. Subscribers of the user's progress feed get the new stats.
func (s *QuizService) Submit(ctx context.Context, userID string, sub domain.Submission) (SubmitResult, error) {
	if _, err := s.topics.Resolve(sub.Topic, sub.Difficulty); err != nil {
		return SubmitResult{}, err
	}
	report, err := Score(sub.Questions, sub.Answers)
	if err != nil {
		return SubmitResult{}, err
	}

	timeSpent := sub.TimeSpent
	if timeSpent < 0 {
		timeSpent = 0
	}
	result := domain.QuizResult{
		ID:             uuid.NewString(),
		UserID:         userID,
		Topic:          sub.Topic,
		Difficulty:     sub.Difficulty,
		TotalQuestions: report.TotalQuestions,
		CorrectAnswers: report.CorrectAnswers,
		Score:          report.Score,
		TimeSpent:      timeSpent,
		Questions:      report.Outcomes,
		CreatedAt:      s.now().UTC(),
	}

	outcome := result.Outcome()
	stats, err := s.progress.RecordResult(ctx, result, func(current domain.UserStats) domain.UserStats {
		return ApplyOutcome(current, outcome)
	})
	if err != nil {
		return SubmitResult{}, err
	}

	if err := s.activity.Invalidate(ctx, userID); err != nil {
		s.log.Warn("activity cache invalidate failed", "user_id", userID, "err", err)
	}
	s.feed.Publish(userID, stats)

	s.log.Info("quiz submitted",
		"user_id", userID,
		"quiz_id", sub.QuizID,
		"topic", sub.Topic,
		"score", result.Score,
		"streak", stats.StreakCount,
	)
	return SubmitResult{Result: result, Stats: stats}, nil
}

// Dashboard assembles the user's profile, stats, recent activity and the catalog.
func (s *QuizService) Dashboard(ctx context.Context, userID string) (domain.Dashboard, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Dashboard{}, err
	}
	recent, err := s.activity.Recent(ctx, userID)
	if err != nil {
		return domain.Dashboard{}, err
	}
	if recent == nil {
		recent = []domain.Activity{}
	}
	stats := user.Stats.Clone()
	return domain.Dashboard{
		User: domain.DashboardUser{
			Name:     user.FullName,
			Email:    user.Email,
			JoinDate: user.CreatedAt,
		},
		Stats:           stats,
		RecentActivity:  recent,
		AvailableTopics: s.topics.All(),
	}, nil
}

// CurrentStats returns the persisted stats of a user.
func (s *QuizService) CurrentStats(ctx context.Context, userID string) (domain.UserStats, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.UserStats{}, err
	}
	return user.Stats.Clone(), nil
}

// Subscribe streams the user's stats: first the current snapshot, then one
// update per successful submission.
func (s *QuizService) Subscribe(ctx context.Context, userID string) (<-chan domain.UserStats, func(), error) {
	stats, err := s.CurrentStats(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.Subscribe(userID, stats)
	return ch, cancel, nil
}

// Subscribers reports how many live progress streams the user has open.
func (s *QuizService) Subscribers(userID string) int {
	return s.feed.Subscribers(userID)
}
