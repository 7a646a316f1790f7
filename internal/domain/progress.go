package domain

import "time"

// MaxHistory is the number of recent attempts kept on a progress record.
const MaxHistory = 20

// UnlockedAchievement is a write-once entry of a progress record.
type UnlockedAchievement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UnlockedAt  time.Time `json:"unlockedAt"`
}

// HistoryEntry records one finished attempt.
type HistoryEntry struct {
	AttemptID  string    `json:"attemptId"`
	Date       time.Time `json:"date"`
	Category   string    `json:"category"`
	Difficulty string    `json:"difficulty"`
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	XPEarned   int       `json:"xpEarned"`
}

// Progress is the durable per-identity XP, level and achievement record.
type Progress struct {
	UserID         string                         `json:"userId"`
	Username       string                         `json:"username"`
	XP             int                            `json:"xp"`
	Level          int                            `json:"level"`
	TotalQuizzes   int                            `json:"totalQuizzes"`
	TotalCorrect   int                            `json:"totalCorrect"`
	TotalQuestions int                            `json:"totalQuestions"`
	Achievements   map[string]UnlockedAchievement `json:"achievements"`
	History        []HistoryEntry                 `json:"quizHistory"`
	CreatedAt      time.Time                      `json:"createdAt"`
	UpdatedAt      time.Time                      `json:"updatedAt"`
}

// Accuracy returns the lifetime percentage of correct answers.
func (p Progress) Accuracy() float64 {
	if p.TotalQuestions == 0 {
		return 0
	}
	return float64(p.TotalCorrect) / float64(p.TotalQuestions) * 100
}

// Outcome is the input to progression when an attempt completes.
type Outcome struct {
	AttemptID  string `json:"attemptId"`
	Correct    int    `json:"correct"`
	Total      int    `json:"total"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

// Achievement describes an achievement newly unlocked by a progression call.
type Achievement struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// FinalizeResult is returned by finalizing a completed attempt.
type FinalizeResult struct {
	XPGained        int           `json:"xpGained"`
	NewTotalXP      int           `json:"newTotalXP"`
	LeveledUp       bool          `json:"leveledUp"`
	OldLevel        int           `json:"oldLevel"`
	NewLevel        int           `json:"newLevel"`
	NewAchievements []Achievement `json:"newAchievements"`
	// Duplicate is set when the attempt had already been finalized and nothing was applied.
	Duplicate bool `json:"duplicate,omitempty"`
}

// PenaltyResult is returned by the abandon penalty.
type PenaltyResult struct {
	XPLost          int           `json:"xpLost"`
	NewTotalXP      int           `json:"newTotalXP"`
	OldLevel        int           `json:"oldLevel"`
	NewLevel        int           `json:"newLevel"`
	NewAchievements []Achievement `json:"newAchievements"`
}
