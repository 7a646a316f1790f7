package progression

import (
	"time"

	"trivia-quiz-service/internal/domain"
)

type rule struct {
	id          string
	title       string
	description string
	// levelOnly rules are the only ones evaluated by the abandon penalty.
	levelOnly bool
	// outcome is nil outside of Finalize.
	eligible func(p domain.Progress, outcome *domain.Outcome) bool
}

var rules = []rule{
	{
		id:          "first_quiz",
		title:       "First Steps",
		description: "Complete your first quiz",
		eligible: func(p domain.Progress, _ *domain.Outcome) bool {
			return p.TotalQuizzes >= 1
		},
	},
	{
		id:          "perfect_score",
		title:       "Perfectionist",
		description: "Get a perfect score on a quiz",
		eligible: func(_ domain.Progress, o *domain.Outcome) bool {
			return o != nil && o.Total > 0 && o.Correct == o.Total
		},
	},
	{
		id:          "quiz_enthusiast",
		title:       "Quiz Enthusiast",
		description: "Complete 10 quizzes",
		eligible: func(p domain.Progress, _ *domain.Outcome) bool {
			return p.TotalQuizzes >= 10
		},
	},
	{
		id:          "quiz_master",
		title:       "Quiz Master",
		description: "Complete 50 quizzes",
		eligible: func(p domain.Progress, _ *domain.Outcome) bool {
			return p.TotalQuizzes >= 50
		},
	},
	{
		id:          "knowledge_seeker",
		title:       "Knowledge Seeker",
		description: "Answer 100 questions correctly",
		eligible: func(p domain.Progress, _ *domain.Outcome) bool {
			return p.TotalCorrect >= 100
		},
	},
	{
		id:          "genius",
		title:       "Genius",
		description: "Answer 500 questions correctly",
		eligible: func(p domain.Progress, _ *domain.Outcome) bool {
			return p.TotalCorrect >= 500
		},
	},
	{
		id:          "level_5",
		title:       "Rising Star",
		description: "Reach Level 5",
		levelOnly:   true,
		eligible: func(p domain.Progress, _ *domain.Outcome) bool {
			return LevelFor(p.XP) >= 5
		},
	},
	{
		id:          "level_10",
		title:       "Quiz Legend",
		description: "Reach Level 10",
		levelOnly:   true,
		eligible: func(p domain.Progress, _ *domain.Outcome) bool {
			return LevelFor(p.XP) >= 10
		},
	},
	{
		id:          "high_scorer",
		title:       "High Scorer",
		description: "Maintain 80%+ accuracy after 5 quizzes",
		eligible: func(p domain.Progress, _ *domain.Outcome) bool {
			return p.TotalQuizzes >= 5 && p.Accuracy() >= 80
		},
	},
}

// evaluate unlocks every eligible achievement not yet on p and returns the new ones in table
// order. Existing entries are never rewritten.
func evaluate(p *domain.Progress, outcome *domain.Outcome, levelOnly bool, now time.Time) []domain.Achievement {
	if p.Achievements == nil {
		p.Achievements = make(map[string]domain.UnlockedAchievement)
	}
	unlocked := []domain.Achievement{}
	for _, r := range rules {
		if levelOnly && !r.levelOnly {
			continue
		}
		if _, ok := p.Achievements[r.id]; ok {
			continue
		}
		if !r.eligible(*p, outcome) {
			continue
		}
		p.Achievements[r.id] = domain.UnlockedAchievement{
			ID:          r.id,
			Title:       r.title,
			Description: r.description,
			UnlockedAt:  now,
		}
		unlocked = append(unlocked, domain.Achievement{ID: r.id, Title: r.title})
	}
	return unlocked
}
