package progression

import "math"

const (
	// XPPerCorrect is awarded for every correct answer.
	XPPerCorrect = 10
	// AbandonPenalty is deducted when a registered player abandons an attempt.
	AbandonPenalty = 10

	highAccuracyBonus = 20
	fairAccuracyBonus = 10
)

// Percentage is the rounded share of correct answers over all questions. Unanswered
// questions count against the player.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// XPFor computes the XP reward of an attempt.
func XPFor(correct, total int) int {
	if correct < 0 {
		correct = 0
	}
	return correct*XPPerCorrect + accuracyBonus(Percentage(correct, total))
}

func accuracyBonus(percentage int) int {
	switch {
	case percentage >= 80:
		return highAccuracyBonus
	case percentage >= 60:
		return fairAccuracyBonus
	default:
		return 0
	}
}

// Rank names the performance band of a percentage.
func Rank(percentage int) string {
	switch {
	case percentage >= 90:
		return "Quiz Champion"
	case percentage >= 80:
		return "Quiz Expert"
	case percentage >= 70:
		return "Rising Star"
	case percentage >= 50:
		return "Quick Learner"
	default:
		return "Getting Started"
	}
}
