package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"trivia-quiz-service/internal/domain"
)

// ProgressRepository stores progress records as JSON under quiz:progress:{user}. Records never
// expire.
type ProgressRepository struct {
	client *redis.Client
}

func NewProgressRepository(client *redis.Client) *ProgressRepository {
	return &ProgressRepository{client: client}
}

func (r *ProgressRepository) Get(ctx context.Context, userID string) (domain.Progress, error) {
	raw, err := r.client.Get(ctx, progressKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
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
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := r.client.Set(ctx, progressKey(p.UserID), raw, 0).Err(); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func progressKey(userID string) string {
	return "quiz:progress:" + userID
}
