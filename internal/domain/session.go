package domain

import "time"

// TimeBudget is the wall-clock allowance of one attempt.
const TimeBudget = 300 * time.Second

// Unanswered is the answer slot sentinel.
const Unanswered = ""

// Phase is the lifecycle phase of a quiz attempt.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseAcquiring  Phase = "acquiring"
	PhaseInProgress Phase = "in_progress"
	PhaseCompleted  Phase = "completed"
	PhaseAbandoned  Phase = "abandoned"
)

// CompletionReason tells how an attempt reached PhaseCompleted.
type CompletionReason string

const (
	ReasonAllAnswered CompletionReason = "all_answered"
	ReasonTimeExpired CompletionReason = "time_expired"
)

// Identity is the owner of a session. Guests never have a progress record.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Guest bool   `json:"guest"`
}

// Snapshot is the durable representation of an in-progress attempt.
type Snapshot struct {
	AttemptID     string      `json:"attemptId"`
	Identity      Identity    `json:"identity"`
	Phase         Phase       `json:"phase"`
	Questions     []Question  `json:"questions"`
	Answers       []string    `json:"answers"`
	CurrentIndex  int         `json:"currentIndex"`
	Score         int         `json:"score"`
	StartedAt     time.Time   `json:"startTime"`
	TimeRemaining int         `json:"timeRemaining"`
	Preferences   Preferences `json:"quizPreferences"`
}

// Answered counts the non-sentinel answer slots.
func (s Snapshot) Answered() int {
	n := 0
	for _, a := range s.Answers {
		if a != Unanswered {
			n++
		}
	}
	return n
}

// RemainingAt derives the seconds left at now from StartedAt, clamped to [0, budget].
func RemainingAt(startedAt, now time.Time, budget time.Duration) int {
	elapsed := now.Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	// elapsed is floored to whole seconds
	remaining := int(budget/time.Second) - int(elapsed/time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// QuestionView is a question as shown to a player, without the correct answer.
type QuestionView struct {
	Prompt     string   `json:"question"`
	Answers    []string `json:"answers"`
	Category   string   `json:"category"`
	Difficulty string   `json:"difficulty"`
}

// State is the presentation view of a session.
type State struct {
	AttemptID     string         `json:"attemptId,omitempty"`
	Phase         Phase          `json:"phase"`
	Questions     []QuestionView `json:"questions"`
	Answers       []string       `json:"answers"`
	CurrentIndex  int            `json:"currentIndex"`
	Score         int            `json:"score"`
	Streak        int            `json:"streak"`
	TimeRemaining int            `json:"timeRemaining"`
	Preferences   Preferences    `json:"quizPreferences"`
}

// ActiveAttempt summarises a persisted attempt for a caller deciding whether to abandon it.
type ActiveAttempt struct {
	AttemptID         string      `json:"attemptId"`
	QuestionsAnswered int         `json:"questionsAnswered"`
	TotalQuestions    int         `json:"totalQuestions"`
	Score             int         `json:"score"`
	TimeRemaining     int         `json:"timeRemaining"`
	Preferences       Preferences `json:"preferences"`
}

// AnswerResult reports the effect of one submission.
type AnswerResult struct {
	Index         int    `json:"index"`
	Accepted      bool   `json:"accepted"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer,omitempty"`
	Score         int    `json:"score"`
	Completed     bool   `json:"completed"`
}

// Badge is a per-attempt accolade shown on the results screen. Badges are not persisted.
type Badge struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Summary is the scored outcome of a finished attempt.
type Summary struct {
	AttemptID      string           `json:"attemptId"`
	Reason         CompletionReason `json:"reason"`
	TotalQuestions int              `json:"totalQuestions"`
	TotalAnswered  int              `json:"totalAnswered"`
	CorrectAnswers int              `json:"correctAnswers"`
	WrongAnswers   int              `json:"wrongAnswers"`
	Percentage     int              `json:"percentage"`
	XPEarned       int              `json:"xpEarned"`
	Rank           string           `json:"rank"`
	Badges         []Badge          `json:"badges"`
	Preferences    Preferences      `json:"preferences"`
	Progression    *FinalizeResult  `json:"progression,omitempty"`
}
