package domain

import "time"

const (
	// AnyCategory selects questions from every category.
	AnyCategory = "any"
	// AnyDifficulty selects questions of every difficulty.
	AnyDifficulty = "any"
	// DefaultAmount is the number of questions in an attempt when none is requested.
	DefaultAmount = 10
	// MaxAmount is the largest batch the question provider serves in one call.
	MaxAmount = 50
)

// Question is a multiple-choice trivia question. Answers is already shuffled and its order is
// the presentation order; CorrectAnswer is always a member of Answers.
type Question struct {
	Prompt        string   `json:"question"`
	Answers       []string `json:"answers"`
	CorrectAnswer string   `json:"correctAnswer"`
	Category      string   `json:"category"`
	Difficulty    string   `json:"difficulty"`
}

// Preferences selects the questions for an attempt.
type Preferences struct {
	Category       string `json:"category"`
	CategoryName   string `json:"categoryName,omitempty"`
	Difficulty     string `json:"difficulty"`
	DifficultyName string `json:"difficultyName,omitempty"`
	Amount         int    `json:"amount,omitempty"`
}

// DefaultPreferences mirrors the "quick start" selection.
func DefaultPreferences() Preferences {
	return Preferences{
		Category:       AnyCategory,
		CategoryName:   "Any Category",
		Difficulty:     AnyDifficulty,
		DifficultyName: "Any Difficulty",
		Amount:         DefaultAmount,
	}
}

// Normalize fills empty selectors and the amount with their defaults.
func (p Preferences) Normalize() Preferences {
	if p.Category == "" {
		p.Category = AnyCategory
	}
	if p.Difficulty == "" {
		p.Difficulty = AnyDifficulty
	}
	if p.Amount <= 0 {
		p.Amount = DefaultAmount
	}
	if p.CategoryName == "" && p.Category == AnyCategory {
		p.CategoryName = "Any Category"
	}
	if p.DifficultyName == "" {
		p.DifficultyName = DifficultyName(p.Difficulty)
	}
	return p
}

// Batch is the result of one acquisition. Degraded is set when the batch was served from the
// rate-limit fallback cache instead of a live response.
type Batch struct {
	Questions []Question `json:"questions"`
	FetchedAt time.Time  `json:"fetchedAt"`
	Degraded  bool       `json:"degraded"`
}

// Category is an entry of the provider's category catalog.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Difficulty is a selectable difficulty level.
type Difficulty struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Difficulties lists the difficulty selectors the provider understands.
var Difficulties = []Difficulty{
	{ID: AnyDifficulty, Name: "Any Difficulty", Description: "Mix of all difficulties"},
	{ID: "easy", Name: "Easy", Description: "Perfect for beginners"},
	{ID: "medium", Name: "Medium", Description: "A balanced challenge"},
	{ID: "hard", Name: "Hard", Description: "For quiz masters only"},
}

// ValidDifficulty reports whether id is one of Difficulties.
func ValidDifficulty(id string) bool {
	for _, d := range Difficulties {
		if d.ID == id {
			return true
		}
	}
	return false
}

// DifficultyName returns the display name for id, or "" if unknown.
func DifficultyName(id string) string {
	for _, d := range Difficulties {
		if d.ID == id {
			return d.Name
		}
	}
	return ""
}
