package progression

import "math"

// MaxLevel is the highest reachable level.
const MaxLevel = 10

// LevelThresholds holds the cumulative XP needed for each level; index i is level i+1.
var LevelThresholds = [MaxLevel]int{0, 100, 250, 500, 850, 1300, 1900, 2700, 3700, 5000}

// LevelFor returns the level earned with xp.
func LevelFor(xp int) int {
	for i := len(LevelThresholds) - 1; i >= 0; i-- {
		if xp >= LevelThresholds[i] {
			return min(i+1, MaxLevel)
		}
	}
	return 1
}

// XPForNextLevel returns the XP still missing for the next level, 0 at MaxLevel.
func XPForNextLevel(xp int) int {
	level := LevelFor(xp)
	if level >= MaxLevel {
		return 0
	}
	return LevelThresholds[level] - xp
}

// LevelProgress returns how far xp is through the current level band, in percent.
func LevelProgress(xp int) int {
	level := LevelFor(xp)
	if level >= MaxLevel {
		return 100
	}
	floor := LevelThresholds[level-1]
	next := LevelThresholds[level]
	return int(math.Round(float64(xp-floor) / float64(next-floor) * 100))
}
