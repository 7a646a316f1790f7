package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"trivia-quiz-service/internal/domain"
)

// ProgressRepository stores progress records as JSONB in user_progress.
type ProgressRepository struct {
	pool *pgxpool.Pool
}

func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

func (r *ProgressRepository) Get(ctx context.Context, userID string) (domain.Progress, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM user_progress WHERE user_id=$1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Progress{}, domain.ErrProgressNotFound
	}
	if err != nil {
		return domain.Progress{}, fmt.Errorf("load progress: %w", err)
	}
	var p domain.Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Progress{}, fmt.Errorf("unmarshal progress: %w", err)
	}
	if p.Achievements == nil {
		p.Achievements = make(map[string]domain.UnlockedAchievement)
	}
	return p, nil
}

func (r *ProgressRepository) Save(ctx context.Context, p domain.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO user_progress (user_id, username, xp, level, data, updated_at)
VALUES ($1, $2, $3, $4, $5::jsonb, $6)
ON CONFLICT (user_id) DO UPDATE
SET username=EXCLUDED.username, xp=EXCLUDED.xp, level=EXCLUDED.level, data=EXCLUDED.data, updated_at=EXCLUDED.updated_at`,
		p.UserID, p.Username, p.XP, p.Level, string(data), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
