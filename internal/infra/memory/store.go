package memory

import (
	"context"
	"sort"
	"sync"

	"edulearn-quiz-service/internal/domain"
)

// Store keeps users and quiz results in process memory. It implements
// app.UserRepository, app.ProgressStore and ActivityLoader.
type Store struct {
	mu      sync.RWMutex
	users   map[string]domain.User
	byEmail map[string]string
	results map[string][]domain.QuizResult
}

func NewStore() *Store {
	return &Store{
		users:   make(map[string]domain.User),
		byEmail: make(map[string]string),
		results: make(map[string][]domain.QuizResult),
	}
}

func (s *Store) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[user.Email]; taken {
		return domain.ErrEmailTaken
	}
	user.Stats = user.Stats.Clone()
	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	user.Stats = user.Stats.Clone()
	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	id, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.GetUserByID(ctx, id)
}

// SetActive toggles whether a user may authenticate.
func (s *Store) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.IsActive = active
	s.users[id] = user
	return nil
}

// RecordResult applies the stats update and appends the result under one lock,
// so concurrent submissions by the same user never lose increments.
func (s *Store) RecordResult(_ context.Context, result domain.QuizResult, apply func(domain.UserStats) domain.UserStats) (domain.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[result.UserID]
	if !ok {
		return domain.UserStats{}, domain.ErrUserNotFound
	}
	updated := apply(user.Stats.Clone())
	user.Stats = updated.Clone()
	s.users[user.ID] = user
	s.results[user.ID] = append(s.results[user.ID], result)
	return updated, nil
}

// LoadActivity returns up to limit results for userID, newest first.
func (s *Store) LoadActivity(_ context.Context, userID string, limit int) ([]domain.Activity, error) {
	s.mu.RLock()
	results := append([]domain.QuizResult(nil), s.results[userID]...)
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	out := make([]domain.Activity, 0, len(results))
	for _, r := range results {
		out = append(out, r.Activity())
	}
	return out, nil
}

// Results returns every stored result of userID in insertion order.
func (s *Store) Results(userID string) []domain.QuizResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.QuizResult(nil), s.results[userID]...)
}
