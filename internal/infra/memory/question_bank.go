package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"trivia-quiz-service/internal/domain"
)

// QuestionBank is a fixed question source (useful for tests/demos and offline runs). Batches
// rotate through the bank so consecutive attempts see different questions. It also serves its
// own category catalog so offline runs never reach the upstream provider.
type QuestionBank struct {
	now func() time.Time

	mu         sync.Mutex
	questions  []domain.Question
	categories []domain.Category
	next       int
	calls      int
}

func NewQuestionBank(questions []domain.Question) *QuestionBank {
	b := &QuestionBank{now: time.Now, questions: append([]domain.Question(nil), questions...)}
	b.categories = []domain.Category{{ID: domain.AnyCategory, Name: "Any Category"}}
	seen := make(map[string]bool)
	for _, q := range b.questions {
		if seen[q.Category] {
			continue
		}
		seen[q.Category] = true
		// ids follow first appearance in the bank
		b.categories = append(b.categories, domain.Category{ID: strconv.Itoa(len(b.categories)), Name: q.Category})
	}
	return b
}

// Acquire returns prefs.Amount questions matching the selected category and difficulty.
func (b *QuestionBank) Acquire(_ context.Context, prefs domain.Preferences) (domain.Batch, error) {
	prefs = prefs.Normalize()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++

	pool, err := b.matchingLocked(prefs.Category, prefs.Difficulty)
	if err != nil {
		return domain.Batch{}, err
	}
	if len(pool) < prefs.Amount {
		return domain.Batch{}, domain.ErrInsufficientInventory
	}

	out := make([]domain.Question, 0, prefs.Amount)
	for i := 0; i < prefs.Amount; i++ {
		q := pool[(b.next+i)%len(pool)]
		q.Answers = append([]string(nil), q.Answers...)
		out = append(out, q)
	}
	b.next = (b.next + prefs.Amount) % len(pool)
	return domain.Batch{Questions: out, FetchedAt: b.now()}, nil
}

// Categories lists the bank's categories, "any" first.
func (b *QuestionBank) Categories(_ context.Context) ([]domain.Category, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Category(nil), b.categories...), nil
}

// Count reports how many bank questions match category and difficulty.
func (b *QuestionBank) Count(_ context.Context, category, difficulty string) (int, error) {
	prefs := domain.Preferences{Category: category, Difficulty: difficulty}.Normalize()

	b.mu.Lock()
	defer b.mu.Unlock()
	pool, err := b.matchingLocked(prefs.Category, prefs.Difficulty)
	if err != nil {
		return 0, err
	}
	return len(pool), nil
}

// Calls reports how many acquisitions were requested.
func (b *QuestionBank) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *QuestionBank) matchingLocked(categoryID, difficulty string) ([]domain.Question, error) {
	if !domain.ValidDifficulty(difficulty) {
		return nil, domain.ErrInvalidSelection
	}
	name := ""
	if categoryID != domain.AnyCategory {
		for _, c := range b.categories {
			if c.ID == categoryID {
				name = c.Name
			}
		}
		if name == "" {
			return nil, domain.ErrInvalidSelection
		}
	}

	pool := make([]domain.Question, 0, len(b.questions))
	for _, q := range b.questions {
		if name != "" && q.Category != name {
			continue
		}
		if difficulty == domain.AnyDifficulty || q.Difficulty == difficulty {
			pool = append(pool, q)
		}
	}
	return pool, nil
}

// SampleQuestions is a small general-knowledge bank for demo mode.
func SampleQuestions() []domain.Question {
	return []domain.Question{
		{Prompt: "What is the chemical symbol for gold?", Answers: []string{"Ag", "Au", "Gd", "Go"}, CorrectAnswer: "Au", Category: "Science & Nature", Difficulty: "easy"},
		{Prompt: "Which planet is known as the Red Planet?", Answers: []string{"Venus", "Jupiter", "Mars", "Mercury"}, CorrectAnswer: "Mars", Category: "Science & Nature", Difficulty: "easy"},
		{Prompt: "How many sides does a hexagon have?", Answers: []string{"5", "6", "7", "8"}, CorrectAnswer: "6", Category: "Science: Mathematics", Difficulty: "easy"},
		{Prompt: "Who painted the Mona Lisa?", Answers: []string{"Michelangelo", "Raphael", "Leonardo da Vinci", "Donatello"}, CorrectAnswer: "Leonardo da Vinci", Category: "Art", Difficulty: "easy"},
		{Prompt: "What is the capital of Australia?", Answers: []string{"Sydney", "Canberra", "Melbourne", "Perth"}, CorrectAnswer: "Canberra", Category: "Geography", Difficulty: "medium"},
		{Prompt: "In which year did the Berlin Wall fall?", Answers: []string{"1987", "1989", "1991", "1985"}, CorrectAnswer: "1989", Category: "History", Difficulty: "medium"},
		{Prompt: "What does CPU stand for?", Answers: []string{"Central Processing Unit", "Computer Personal Unit", "Central Process Utility", "Core Processing Unit"}, CorrectAnswer: "Central Processing Unit", Category: "Science: Computers", Difficulty: "medium"},
		{Prompt: "What is the largest ocean on Earth?", Answers: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, CorrectAnswer: "Pacific", Category: "Geography", Difficulty: "easy"},
		{Prompt: "What is the hardest natural substance?", Answers: []string{"Quartz", "Diamond", "Topaz", "Corundum"}, CorrectAnswer: "Diamond", Category: "Science & Nature", Difficulty: "medium"},
		{Prompt: "Which element has atomic number 74?", Answers: []string{"Tungsten", "Tantalum", "Osmium", "Rhenium"}, CorrectAnswer: "Tungsten", Category: "Science & Nature", Difficulty: "hard"},
		{Prompt: "Who wrote \"One Hundred Years of Solitude\"?", Answers: []string{"Jorge Luis Borges", "Gabriel García Márquez", "Julio Cortázar", "Mario Vargas Llosa"}, CorrectAnswer: "Gabriel García Márquez", Category: "Entertainment: Books", Difficulty: "hard"},
		{Prompt: "What is the smallest prime number?", Answers: []string{"0", "1", "2", "3"}, CorrectAnswer: "2", Category: "Science: Mathematics", Difficulty: "easy"},
	}
}
