package bot

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/mentorloop/internal/lifecycle"
	"github.com/shrimpsizemoose/mentorloop/internal/models"
)

func TestParseChallengeAdd(t *testing.T) {
	t.Run("full command", func(t *testing.T) {
		in, err := parseChallengeAdd([]string{"DE15", "xp", "150", "deadline", "2024-12-01", "title", "Linked", "lists"})
		require.NoError(t, err)
		assert.Equal(t, "DE15", in.CourseID)
		assert.Equal(t, int64(150), in.XPReward)
		assert.Equal(t, "Linked lists", in.Title)
		assert.Equal(t, time.Date(2024, 12, 1, 23, 59, 59, 0, time.UTC).Unix(), in.DueAt)
	})

	tests := []struct {
		name string
		args []string
	}{
		{"no course", nil},
		{"bad xp", []string{"DE15", "xp", "lots"}},
		{"bad date", []string{"DE15", "deadline", "01.12.2024"}},
		{"dangling key", []string{"DE15", "xp"}},
		{"unknown key", []string{"DE15", "score", "10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseChallengeAdd(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestParseReviewCommands(t *testing.T) {
	id, in, err := parseApprove([]string{"sub-1", "90", "чисто", "и", "аккуратно"})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", id)
	assert.Equal(t, models.StatusApproved, in.Decision)
	require.NotNil(t, in.Grade)
	assert.Equal(t, 90, *in.Grade)
	assert.Equal(t, "чисто и аккуратно", in.Feedback)

	_, _, err = parseApprove([]string{"sub-1"})
	assert.Error(t, err)
	_, _, err = parseApprove([]string{"sub-1", "A+"})
	assert.Error(t, err)

	id, in, err = parseReject([]string{"sub-2"})
	require.NoError(t, err)
	assert.Equal(t, "sub-2", id)
	assert.Equal(t, models.StatusRejected, in.Decision)
	assert.Nil(t, in.Grade)
	assert.Empty(t, in.Feedback)

	_, _, err = parseReject(nil)
	assert.Error(t, err)
}

func TestParseLink(t *testing.T) {
	telegramID, p, err := parseLink([]string{"12345", "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(12345), telegramID)
	assert.Equal(t, models.Principal{ID: "alice", Role: models.RoleStudent}, p)

	_, p, err = parseLink([]string{"12345", "bob", "Mentor"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleMentor, p.Role)

	_, _, err = parseLink([]string{"12345", "bob", "god"})
	assert.Error(t, err)
	_, _, err = parseLink([]string{"@bob", "bob"})
	assert.Error(t, err)
}

func TestPrincipalAndRouting(t *testing.T) {
	cfg, err := parseConfig([]byte(`
[bot]
token = "t"
admin_ids = [1]
mentor_ids = [2]
`))
	require.NoError(t, err)
	b := newBot(cfg, nil, nil)
	ctx := context.Background()

	admin, err := b.principalFor(ctx, &tgbotapi.User{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, models.Principal{ID: "tg-1", Role: models.RoleAdmin}, admin)

	mentor, err := b.principalFor(ctx, &tgbotapi.User{ID: 2})
	require.NoError(t, err)
	assert.Equal(t, models.RoleMentor, mentor.Role)

	student, err := b.principalFor(ctx, &tgbotapi.User{ID: 3})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, student.Role)

	for _, cmd := range []string{"token", "xp", "rewards", "challenges", "enroll"} {
		_, ok := b.route(cmd, student)
		assert.True(t, ok, cmd)
	}
	for _, cmd := range []string{"approve", "reject", "pending", "challenge", "complete", "link", "stats"} {
		_, ok := b.route(cmd, student)
		assert.False(t, ok, cmd)
	}

	_, ok := b.route("approve", mentor)
	assert.True(t, ok)
	_, ok = b.route("complete", mentor)
	assert.True(t, ok)
	_, ok = b.route("stats", mentor)
	assert.False(t, ok)
	_, ok = b.route("stats", admin)
	assert.True(t, ok)
	_, ok = b.route("approve", admin)
	assert.True(t, ok)
}

func TestDescribeError(t *testing.T) {
	assert.Equal(t, "Дедлайн уже прошёл", describeError(&lifecycle.Error{Kind: lifecycle.KindExpired}))
	assert.Equal(t, "Работа уже проверена", describeError(&lifecycle.Error{Kind: lifecycle.KindInvalidState}))
	assert.Contains(t, describeError(assert.AnError), "Ошибка")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "прив…", preview("привет", 4))
}
