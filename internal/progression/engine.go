package progression

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"trivia-quiz-service/internal/domain"
)

// Repository stores progress records keyed by user id.
type Repository interface {
	// Get returns domain.ErrProgressNotFound when the user has no record.
	Get(ctx context.Context, userID string) (domain.Progress, error)
	Save(ctx context.Context, progress domain.Progress) error
}

// Engine turns finished attempts into XP, levels and achievements.
type Engine struct {
	repo   Repository
	now    func() time.Time
	logger *zap.Logger
}

func NewEngine(repo Repository, logger *zap.Logger) *Engine {
	return NewEngineWithClock(repo, logger, time.Now)
}

// NewEngineWithClock allows deterministic timestamps in tests.
func NewEngineWithClock(repo Repository, logger *zap.Logger, now func() time.Time) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{repo: repo, now: now, logger: logger}
}

// Register creates an empty progress record for a new identity.
func (e *Engine) Register(ctx context.Context, username string) (domain.Progress, error) {
	id := UserKey(username)
	if id == "" {
		return domain.Progress{}, fmt.Errorf("register: empty username")
	}
	if _, err := e.repo.Get(ctx, id); err == nil {
		return domain.Progress{}, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrProgressNotFound) {
		return domain.Progress{}, fmt.Errorf("register: %w", err)
	}

	now := e.now()
	progress := domain.Progress{
		UserID:       id,
		Username:     strings.TrimSpace(username),
		Level:        1,
		Achievements: make(map[string]domain.UnlockedAchievement),
		History:      []domain.HistoryEntry{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.repo.Save(ctx, progress); err != nil {
		return domain.Progress{}, fmt.Errorf("register: %w", err)
	}
	return progress, nil
}

// Progress returns the record of userID.
func (e *Engine) Progress(ctx context.Context, userID string) (domain.Progress, error) {
	return e.repo.Get(ctx, UserKey(userID))
}

// Finalize applies the reward of a completed attempt. An attempt id that already appears in
// the history is not applied again; the result then has Duplicate set.
func (e *Engine) Finalize(ctx context.Context, userID string, outcome domain.Outcome) (domain.FinalizeResult, error) {
	progress, err := e.repo.Get(ctx, UserKey(userID))
	if err != nil {
		return domain.FinalizeResult{}, err
	}

	oldLevel := LevelFor(progress.XP)
	if outcome.AttemptID != "" && finalized(progress, outcome.AttemptID) {
		e.logger.Warn("attempt already finalized", zap.String("user", progress.UserID), zap.String("attempt", outcome.AttemptID))
		return domain.FinalizeResult{
			NewTotalXP:      progress.XP,
			OldLevel:        oldLevel,
			NewLevel:        oldLevel,
			NewAchievements: []domain.Achievement{},
			Duplicate:       true,
		}, nil
	}

	now := e.now()
	gained := XPFor(outcome.Correct, outcome.Total)
	progress.XP += gained
	progress.Level = LevelFor(progress.XP)
	progress.TotalQuizzes++
	progress.TotalCorrect += outcome.Correct
	progress.TotalQuestions += outcome.Total

	entry := domain.HistoryEntry{
		AttemptID:  outcome.AttemptID,
		Date:       now,
		Category:   outcome.Category,
		Difficulty: outcome.Difficulty,
		Score:      outcome.Correct,
		Total:      outcome.Total,
		XPEarned:   gained,
	}
	progress.History = append([]domain.HistoryEntry{entry}, progress.History...)
	if len(progress.History) > domain.MaxHistory {
		progress.History = progress.History[:domain.MaxHistory]
	}

	unlocked := evaluate(&progress, &outcome, false, now)
	progress.UpdatedAt = now
	if err := e.repo.Save(ctx, progress); err != nil {
		return domain.FinalizeResult{}, fmt.Errorf("save progress: %w", err)
	}

	return domain.FinalizeResult{
		XPGained:        gained,
		NewTotalXP:      progress.XP,
		LeveledUp:       progress.Level > oldLevel,
		OldLevel:        oldLevel,
		NewLevel:        progress.Level,
		NewAchievements: unlocked,
	}, nil
}

// ApplyAbandonPenalty deducts AbandonPenalty from the XP of userID, never below zero. Only
// level achievements are evaluated; quiz counters are untouched.
func (e *Engine) ApplyAbandonPenalty(ctx context.Context, userID string) (domain.PenaltyResult, error) {
	progress, err := e.repo.Get(ctx, UserKey(userID))
	if err != nil {
		return domain.PenaltyResult{}, err
	}

	now := e.now()
	oldLevel := LevelFor(progress.XP)
	before := progress.XP
	progress.XP = max(0, progress.XP-AbandonPenalty)
	progress.Level = LevelFor(progress.XP)
	unlocked := evaluate(&progress, nil, true, now)
	progress.UpdatedAt = now

	if err := e.repo.Save(ctx, progress); err != nil {
		return domain.PenaltyResult{}, fmt.Errorf("save progress: %w", err)
	}
	return domain.PenaltyResult{
		XPLost:          before - progress.XP,
		NewTotalXP:      progress.XP,
		OldLevel:        oldLevel,
		NewLevel:        progress.Level,
		NewAchievements: unlocked,
	}, nil
}

// UserKey is the case-insensitive storage key of a username.
func UserKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func finalized(p domain.Progress, attemptID string) bool {
	for _, h := range p.History {
		if h.AttemptID == attemptID {
			return true
		}
	}
	return false
}
