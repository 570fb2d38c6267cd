package scoring

import "github.com/shrimpsizemoose/mentorloop/internal/models"

// XPPerLevel is the width of every level band.
const XPPerLevel = 1000

// Level derives the level from an XP total. Level is never stored on its
// own: every XP mutation recomputes it from here.
func Level(xp int64) int64 {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

func XPToNextLevel(xp int64) int64 {
	if xp < 0 {
		xp = 0
	}
	return XPPerLevel - xp%XPPerLevel
}

// Grant returns the XP total and level after adding a challenge reward.
func Grant(xp, reward int64) (newXP, level int64) {
	if reward < 0 {
		reward = 0
	}
	newXP = xp + reward
	return newXP, Level(newXP)
}

func Progress(userID string, xp int64) models.UserProgress {
	return models.UserProgress{
		UserID:        userID,
		XP:            xp,
		Level:         Level(xp),
		XPToNextLevel: XPToNextLevel(xp),
	}
}
