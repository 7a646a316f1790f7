package app

import (
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/progression"
)

const onFireCorrect = 5

func (s *Session) summarizeLocked(reason domain.CompletionReason) domain.Summary {
	total := len(s.questions)
	answered := s.answeredLocked()
	percentage := progression.Percentage(s.score, total)

	return domain.Summary{
		AttemptID:      s.attemptID,
		Reason:         reason,
		TotalQuestions: total,
		TotalAnswered:  answered,
		CorrectAnswers: s.score,
		WrongAnswers:   answered - s.score,
		Percentage:     percentage,
		XPEarned:       progression.XPFor(s.score, total),
		Rank:           progression.Rank(percentage),
		Badges:         badges(percentage, s.score, answered, total),
		Preferences:    s.prefs,
	}
}

// badges are per-attempt accolades; unanswered slots count against the percentage.
func badges(percentage, correct, answered, total int) []domain.Badge {
	out := []domain.Badge{}
	if total > 0 && percentage == 100 {
		out = append(out, domain.Badge{Title: "Perfect Score", Description: "Answered every question correctly"})
	}
	if total > 0 && percentage >= 80 {
		out = append(out, domain.Badge{Title: "Sharp Shooter", Description: "Scored 80% or higher"})
	}
	if correct >= onFireCorrect {
		out = append(out, domain.Badge{Title: "On Fire", Description: "Got 5 or more answers right"})
	}
	if total > 0 && answered == total {
		out = append(out, domain.Badge{Title: "Completionist", Description: "Answered all questions"})
	}
	return out
}

// streak counts the consecutive correct answers right before current.
func streak(questions []domain.Question, answers []string, current int) int {
	n := 0
	for i := current - 1; i >= 0 && i < len(answers) && i < len(questions); i-- {
		if answers[i] == domain.Unanswered || answers[i] != questions[i].CorrectAnswer {
			break
		}
		n++
	}
	return n
}
