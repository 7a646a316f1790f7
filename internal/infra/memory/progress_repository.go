package memory

import (
	"context"
	"sync"

	"trivia-quiz-service/internal/domain"
)

// ProgressRepository is an in-memory progression.Repository.
type ProgressRepository struct {
	mu      sync.RWMutex
	records map[string]domain.Progress
}

func NewProgressRepository() *ProgressRepository {
	return &ProgressRepository{records: make(map[string]domain.Progress)}
}

func (r *ProgressRepository) Get(_ context.Context, userID string) (domain.Progress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.records[userID]
	if !ok {
		return domain.Progress{}, domain.ErrProgressNotFound
	}
	return cloneProgress(p), nil
}

func (r *ProgressRepository) Save(_ context.Context, p domain.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[p.UserID] = cloneProgress(p)
	return nil
}

func cloneProgress(p domain.Progress) domain.Progress {
	achievements := make(map[string]domain.UnlockedAchievement, len(p.Achievements))
	for id, a := range p.Achievements {
		achievements[id] = a
	}
	p.Achievements = achievements
	p.History = append([]domain.HistoryEntry(nil), p.History...)
	return p
}
