package progression

import (
	"context"
	"fmt"
	"testing"
	"time"

	"trivia-quiz-service/internal/domain"
)

func TestXPFormula(t *testing.T) {
	cases := []struct {
		correct, total, want int
	}{
		{7, 10, 80},
		{10, 10, 120},
		{3, 10, 30},
		{6, 10, 70},
		{8, 10, 100},
		{0, 10, 0},
		{0, 0, 0},
	}
	for _, tc := range cases {
		if got := XPFor(tc.correct, tc.total); got != tc.want {
			t.Fatalf("XPFor(%d, %d) = %d, want %d", tc.correct, tc.total, got, tc.want)
		}
	}
}

func TestFinalizeAppliesRewardAndStats(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine()
	if _, err := engine.Register(ctx, "Alice"); err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := engine.Finalize(ctx, "alice", outcome("a1", 7, 10))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res.XPGained != 80 || res.NewTotalXP != 80 {
		t.Fatalf("expected 80 xp, got %+v", res)
	}
	if res.LeveledUp || res.OldLevel != 1 || res.NewLevel != 1 {
		t.Fatalf("unexpected level change: %+v", res)
	}

	p := repo.records["alice"]
	if p.TotalQuizzes != 1 || p.TotalCorrect != 7 || p.TotalQuestions != 10 {
		t.Fatalf("unexpected stats: %+v", p)
	}
	if len(p.History) != 1 || p.History[0].XPEarned != 80 || p.History[0].Category != "History" {
		t.Fatalf("unexpected history: %+v", p.History)
	}
	if !hasAchievement(res.NewAchievements, "first_quiz") {
		t.Fatalf("expected first_quiz, got %+v", res.NewAchievements)
	}
}

func TestFinalizeLevelUp(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine()
	_, _ = engine.Register(ctx, "bob")
	seed := repo.records["bob"]
	seed.XP = 90
	repo.records["bob"] = seed

	res, err := engine.Finalize(ctx, "bob", outcome("b1", 3, 10))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !res.LeveledUp || res.OldLevel != 1 || res.NewLevel != 2 || res.NewTotalXP != 120 {
		t.Fatalf("expected level up to 2, got %+v", res)
	}
}

func TestFinalizeIsIdempotentPerAttempt(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine()
	_, _ = engine.Register(ctx, "carol")

	if _, err := engine.Finalize(ctx, "carol", outcome("same", 10, 10)); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	res, err := engine.Finalize(ctx, "carol", outcome("same", 10, 10))
	if err != nil {
		t.Fatalf("finalize twice: %v", err)
	}
	if !res.Duplicate || res.XPGained != 0 {
		t.Fatalf("expected duplicate with no xp, got %+v", res)
	}
	p := repo.records["carol"]
	if p.XP != 120 || p.TotalQuizzes != 1 {
		t.Fatalf("xp applied twice: %+v", p)
	}
}

func TestPerfectScoreReportedOnce(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	_, _ = engine.Register(ctx, "dave")

	first, _ := engine.Finalize(ctx, "dave", outcome("d1", 10, 10))
	if !hasAchievement(first.NewAchievements, "perfect_score") {
		t.Fatalf("expected perfect_score on first perfect attempt: %+v", first.NewAchievements)
	}
	second, _ := engine.Finalize(ctx, "dave", outcome("d2", 10, 10))
	if hasAchievement(second.NewAchievements, "perfect_score") {
		t.Fatalf("perfect_score reported twice: %+v", second.NewAchievements)
	}

	other, _ := newTestEngine()
	_, _ = other.Register(ctx, "erin")
	near, _ := other.Finalize(ctx, "erin", outcome("e1", 9, 10))
	if hasAchievement(near.NewAchievements, "perfect_score") {
		t.Fatalf("perfect_score unlocked for 9/10")
	}
}

func TestAchievementThresholds(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine()
	_, _ = engine.Register(ctx, "frank")
	seed := repo.records["frank"]
	seed.TotalQuizzes = 9
	seed.TotalCorrect = 95
	seed.TotalQuestions = 100
	seed.XP = 830
	repo.records["frank"] = seed

	res, err := engine.Finalize(ctx, "frank", outcome("f1", 8, 10))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	for _, id := range []string{"first_quiz", "quiz_enthusiast", "knowledge_seeker", "level_5", "high_scorer"} {
		if !hasAchievement(res.NewAchievements, id) {
			t.Fatalf("expected %s in %+v", id, res.NewAchievements)
		}
	}
	for _, id := range []string{"quiz_master", "genius", "level_10", "perfect_score"} {
		if hasAchievement(res.NewAchievements, id) {
			t.Fatalf("unexpected %s in %+v", id, res.NewAchievements)
		}
	}
	unlockedAt := repo.records["frank"].Achievements["level_5"].UnlockedAt

	again, _ := engine.Finalize(ctx, "frank", outcome("f2", 8, 10))
	if hasAchievement(again.NewAchievements, "level_5") {
		t.Fatalf("level_5 reported twice")
	}
	if !repo.records["frank"].Achievements["level_5"].UnlockedAt.Equal(unlockedAt) {
		t.Fatalf("unlock timestamp rewritten")
	}
}

func TestHighScorerNeedsFiveQuizzes(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	_, _ = engine.Register(ctx, "gina")
	for i := 0; i < 4; i++ {
		res, _ := engine.Finalize(ctx, "gina", outcome(fmt.Sprintf("g%d", i), 9, 10))
		if hasAchievement(res.NewAchievements, "high_scorer") {
			t.Fatalf("high_scorer unlocked after %d quizzes", i+1)
		}
	}
	res, _ := engine.Finalize(ctx, "gina", outcome("g4", 8, 10))
	if !hasAchievement(res.NewAchievements, "high_scorer") {
		t.Fatalf("expected high_scorer after five quizzes: %+v", res.NewAchievements)
	}
}

func TestHistoryCapped(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine()
	_, _ = engine.Register(ctx, "hank")
	for i := 0; i < domain.MaxHistory+5; i++ {
		if _, err := engine.Finalize(ctx, "hank", outcome(fmt.Sprintf("h%d", i), 1, 10)); err != nil {
			t.Fatalf("finalize %d: %v", i, err)
		}
	}
	p := repo.records["hank"]
	if len(p.History) != domain.MaxHistory {
		t.Fatalf("expected %d history entries, got %d", domain.MaxHistory, len(p.History))
	}
	if p.History[0].AttemptID != fmt.Sprintf("h%d", domain.MaxHistory+4) {
		t.Fatalf("expected newest first, got %s", p.History[0].AttemptID)
	}
	if p.TotalQuizzes != domain.MaxHistory+5 {
		t.Fatalf("lifetime count should not be capped: %d", p.TotalQuizzes)
	}
}

func TestAbandonPenalty(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine()
	_, _ = engine.Register(ctx, "ivy")

	seed := repo.records["ivy"]
	seed.XP = 95
	seed.TotalQuizzes = 3
	repo.records["ivy"] = seed

	res, err := engine.ApplyAbandonPenalty(ctx, "ivy")
	if err != nil {
		t.Fatalf("penalty: %v", err)
	}
	if res.NewTotalXP != 85 || res.XPLost != 10 {
		t.Fatalf("expected 85 xp, got %+v", res)
	}
	if repo.records["ivy"].TotalQuizzes != 3 {
		t.Fatalf("penalty touched quiz counters")
	}

	seed = repo.records["ivy"]
	seed.XP = 5
	repo.records["ivy"] = seed
	res, _ = engine.ApplyAbandonPenalty(ctx, "ivy")
	if res.NewTotalXP != 0 || res.XPLost != 5 {
		t.Fatalf("expected floor at zero, got %+v", res)
	}
}

func TestAbandonPenaltyOnlyEvaluatesLevelRules(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine()
	_, _ = engine.Register(ctx, "jay")
	seed := repo.records["jay"]
	seed.XP = 900
	seed.TotalQuizzes = 12
	repo.records["jay"] = seed

	res, _ := engine.ApplyAbandonPenalty(ctx, "jay")
	if !hasAchievement(res.NewAchievements, "level_5") {
		t.Fatalf("expected level_5, got %+v", res.NewAchievements)
	}
	if hasAchievement(res.NewAchievements, "quiz_enthusiast") || hasAchievement(res.NewAchievements, "first_quiz") {
		t.Fatalf("non-level rule evaluated: %+v", res.NewAchievements)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	if _, err := engine.Register(ctx, "Kim"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := engine.Register(ctx, "kim"); err != domain.ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if _, err := engine.Finalize(ctx, "nobody", outcome("x", 1, 1)); err != domain.ErrProgressNotFound {
		t.Fatalf("expected ErrProgressNotFound, got %v", err)
	}
}

type mapRepo struct {
	records map[string]domain.Progress
}

func (r *mapRepo) Get(_ context.Context, userID string) (domain.Progress, error) {
	p, ok := r.records[userID]
	if !ok {
		return domain.Progress{}, domain.ErrProgressNotFound
	}
	return p, nil
}

func (r *mapRepo) Save(_ context.Context, p domain.Progress) error {
	r.records[p.UserID] = p
	return nil
}

func newTestEngine() (*Engine, *mapRepo) {
	repo := &mapRepo{records: make(map[string]domain.Progress)}
	now := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	return NewEngineWithClock(repo, nil, func() time.Time { return now }), repo
}

func outcome(attemptID string, correct, total int) domain.Outcome {
	return domain.Outcome{AttemptID: attemptID, Correct: correct, Total: total, Category: "History", Difficulty: "Easy"}
}

func hasAchievement(list []domain.Achievement, id string) bool {
	for _, a := range list {
		if a.ID == id {
			return true
		}
	}
	return false
}
