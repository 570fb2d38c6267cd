package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shrimpsizemoose/mentorloop/internal/models"
)

func TestLeaderboardRows(t *testing.T) {
	board := []models.UserProgress{
		{UserID: "bob", XP: 1100, Level: 2, XPToNextLevel: 900},
		{UserID: "alice", XP: 150, Level: 1, XPToNextLevel: 850},
	}

	rows := leaderboardRows(board, 3)
	assert.Equal(t, [][]interface{}{
		{1, "bob", int64(1100), int64(2), int64(900)},
		{2, "alice", int64(150), int64(1), int64(850)},
		{"", "", "", "", ""},
	}, rows)

	assert.Len(t, leaderboardRows(board, 0), 2)
	assert.Empty(t, leaderboardRows(nil, 0))
}

func TestTimestamp(t *testing.T) {
	now := time.Date(2024, 3, 8, 9, 5, 0, 0, time.UTC)
	assert.Equal(t, "UPD: 8 March 09:05", timestamp(now, nil))
	assert.Equal(t, "UPD: 8 March 09:05 🥐", timestamp(now, []string{"🥐"}))
}
