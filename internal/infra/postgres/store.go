package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"edulearn-quiz-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolation = "23505"

// Store keeps users (stats embedded as JSONB) and quiz results (JSONB documents) in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	stats, err := json.Marshal(user.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO users (id, email, full_name, password_hash, is_active, stats, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $7)`,
		user.ID, user.Email, user.FullName, user.PasswordHash, user.IsActive, string(stats), user.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const selectUser = `SELECT id, email, full_name, password_hash, is_active, stats, created_at FROM users`

func (s *Store) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return s.getUser(ctx, selectUser+` WHERE id=$1`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.getUser(ctx, selectUser+` WHERE email=$1`, email)
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (domain.User, error) {
	var (
		user  domain.User
		stats []byte
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.IsActive, &stats, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	user.Stats, err = decodeStats(stats)
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// SetActive toggles whether a user may authenticate.
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET is_active=$2, updated_at=now() WHERE id=$1`, id, active)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// RecordResult locks the owner's row, applies the stats update and inserts
// the result in one transaction. Nothing is written when any step fails.
func (s *Store) RecordResult(ctx context.Context, result domain.QuizResult, apply func(domain.UserStats) domain.UserStats) (domain.UserStats, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("marshal result: %w", err)
	}

	var updated domain.UserStats
	err = s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx, `SELECT stats FROM users WHERE id=$1 FOR UPDATE`, result.UserID).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		current, err := decodeStats(raw)
		if err != nil {
			return err
		}

		updated = apply(current)
		encoded, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET stats=$2::jsonb, updated_at=now() WHERE id=$1`, result.UserID, string(encoded)); err != nil {
			return fmt.Errorf("update stats: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO quiz_results (id, user_id, topic, difficulty, score, data, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
			result.ID, result.UserID, result.Topic, result.Difficulty, result.Score, string(data), result.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.UserStats{}, err
	}
	return updated, nil
}

// LoadActivity returns up to limit results for userID, newest first.
func (s *Store) LoadActivity(ctx context.Context, userID string, limit int) ([]domain.Activity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM quiz_results WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Activity, 0, limit)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		var result domain.QuizResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		items = append(items, result.Activity())
	}
	return items, rows.Err()
}

func decodeStats(raw []byte) (domain.UserStats, error) {
	stats := domain.NewUserStats()
	if len(raw) == 0 {
		return stats, nil
	}
	if err := json.Unmarshal(raw, &stats); err != nil {
		return domain.UserStats{}, fmt.Errorf("unmarshal stats: %w", err)
	}
	if stats.TopicStats == nil {
		stats.TopicStats = make(map[string]domain.TopicStats)
	}
	return stats, nil
}
