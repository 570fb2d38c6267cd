// internal/store/sqlite/store_test.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/mentorloop/internal/models"
	"github.com/shrimpsizemoose/mentorloop/internal/store"
)

// setupTestDB creates an in-memory SQLite database with the real migrations
func setupTestDB(t *testing.T) (*SQLiteStore, func()) {
	s, err := NewSQLiteStore(&store.DBConfig{
		DSN:           ":memory:",
		Type:          store.DBTypeSQLite,
		MigrationsDir: "../../../migrations",
	})
	require.NoError(t, err, "Failed to create store")

	cleanup := func() {
		err := s.Close()
		require.NoError(t, err, "Failed to close database")
	}

	return s, cleanup
}

type testData struct {
	store *SQLiteStore
	now   time.Time
	ctx   context.Context
}

func setupTestData(t *testing.T) (*testData, func()) {
	s, cleanup := setupTestDB(t)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	challenges := []models.Challenge{
		{ID: "c1", CourseID: "cs101", Title: "Lists", XPReward: 100, DueAt: now.Add(24 * time.Hour).Unix()},
		{ID: "c2", CourseID: "cs101", Title: "Maps", XPReward: 200, DueAt: now.Add(48 * time.Hour).Unix(),
			Requirements: models.StringList{"tests"}, Rubric: models.Rubric{"tests": 100}},
		{ID: "c3", CourseID: "cs202", Title: "Graphs", XPReward: 300, DueAt: now.Add(-time.Hour).Unix()},
	}
	for i := range challenges {
		challenges[i].CreatedAt = now.Unix()
		require.NoError(t, s.UpsertChallenge(ctx, &challenges[i]), "Failed to insert test data")
	}

	return &testData{
		store: s,
		now:   now,
		ctx:   ctx,
	}, cleanup
}

func (td *testData) submission(id, challengeID, userID string, status models.Status) *models.Submission {
	return &models.Submission{
		ID:          id,
		ChallengeID: challengeID,
		UserID:      userID,
		Content:     "answer " + id,
		Attachments: models.StringList{},
		Status:      status,
		SubmittedAt: td.now.Unix(),
	}
}

func TestMain(m *testing.M) {
	log.Println("Starting SQLite store tests...")
	code := m.Run()
	log.Println("Finished SQLite store tests")
	os.Exit(code)
}

func TestChallengeOperations(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	t.Run("get challenge", func(t *testing.T) {
		got, err := td.store.FindChallenge(td.ctx, "c2")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Maps", got.Title)
		assert.Equal(t, int64(200), got.XPReward)
		assert.Equal(t, models.StringList{"tests"}, got.Requirements)
		assert.Equal(t, models.Rubric{"tests": 100}, got.Rubric)
	})

	t.Run("missing rubric stays nil", func(t *testing.T) {
		got, err := td.store.FindChallenge(td.ctx, "c1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Nil(t, got.Rubric)
		assert.Equal(t, models.StringList{}, got.Requirements)
	})

	t.Run("get non-existent challenge", func(t *testing.T) {
		got, err := td.store.FindChallenge(td.ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("list by course ordered by due date", func(t *testing.T) {
		all, err := td.store.ListChallenges(td.ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "c3", all[0].ID)

		cs101, err := td.store.ListChallenges(td.ctx, "cs101")
		require.NoError(t, err)
		require.Len(t, cs101, 2)
		assert.Equal(t, "c1", cs101[0].ID)
		assert.Equal(t, "c2", cs101[1].ID)
	})

	t.Run("upsert updates", func(t *testing.T) {
		c, err := td.store.FindChallenge(td.ctx, "c1")
		require.NoError(t, err)
		c.XPReward = 120
		require.NoError(t, td.store.UpsertChallenge(td.ctx, c))

		got, err := td.store.FindChallenge(td.ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, int64(120), got.XPReward)
	})
}

func TestSubmissionOperations(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	first := td.submission("s1", "c1", "john.doe", models.StatusSubmitted)

	t.Run("create submission", func(t *testing.T) {
		require.NoError(t, td.store.InsertSubmission(td.ctx, first))
	})

	t.Run("second active submission is a conflict", func(t *testing.T) {
		err := td.store.InsertSubmission(td.ctx, td.submission("s2", "c1", "john.doe", models.StatusSubmitted))
		require.Error(t, err)
		assert.True(t, errors.Is(err, store.ErrConflict))
	})

	t.Run("rejected rows do not block", func(t *testing.T) {
		first.Status = models.StatusRejected
		reviewer := "mentor"
		first.ReviewedBy = &reviewer
		require.NoError(t, td.store.UpdateSubmission(td.ctx, first))

		require.NoError(t, td.store.InsertSubmission(td.ctx, td.submission("s2", "c1", "john.doe", models.StatusSubmitted)))
	})

	t.Run("find active", func(t *testing.T) {
		got, err := td.store.FindActiveSubmission(td.ctx, "c1", "john.doe")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "s2", got.ID)

		got, err = td.store.FindActiveSubmission(td.ctx, "c2", "john.doe")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("list by status", func(t *testing.T) {
		all, err := td.store.ListSubmissions(td.ctx, "c1", "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		pending, err := td.store.ListSubmissions(td.ctx, "c1", models.StatusSubmitted)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "s2", pending[0].ID)
	})

	t.Run("reviewed fields round trip", func(t *testing.T) {
		got, err := td.store.FindSubmission(td.ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.StatusRejected, got.Status)
		require.NotNil(t, got.ReviewedBy)
		assert.Equal(t, "mentor", *got.ReviewedBy)
		assert.Nil(t, got.Grade)
	})

	t.Run("update missing submission", func(t *testing.T) {
		err := td.store.UpdateSubmission(td.ctx, td.submission("ghost", "c1", "x", models.StatusSubmitted))
		require.Error(t, err)
	})

	t.Run("counts per challenge", func(t *testing.T) {
		counts, err := td.store.CountSubmissionsByChallenge(td.ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"c1": 2}, counts)
	})
}

func TestRewardLedger(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	require.NoError(t, td.store.InsertSubmission(td.ctx, td.submission("s1", "c1", "john.doe", models.StatusApproved)))

	grant := models.RewardGrant{UserID: "john.doe", ChallengeID: "c1", SubmissionID: "s1", Amount: 100, GrantedAt: td.now.Unix()}

	granted, err := td.store.GrantReward(td.ctx, grant)
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = td.store.GrantReward(td.ctx, grant)
	require.NoError(t, err)
	assert.False(t, granted)

	grants, err := td.store.ListRewardGrants(td.ctx, "john.doe")
	require.NoError(t, err)
	assert.Equal(t, []models.RewardGrant{grant}, grants)
}

func TestUserProgress(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	got, err := td.store.GetUserProgress(td.ctx, "john.doe")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, td.store.EnsureUser(td.ctx, "john.doe", td.now.Unix()))
	require.NoError(t, td.store.EnsureUser(td.ctx, "john.doe", td.now.Unix()))
	require.NoError(t, td.store.EnsureUser(td.ctx, "jane.doe", td.now.Unix()))
	require.NoError(t, td.store.EnsureUser(td.ctx, "newbie", td.now.Unix()))
	require.NoError(t, td.store.SetUserXP(td.ctx, "john.doe", 1250, 2, td.now.Unix()))
	require.NoError(t, td.store.SetUserXP(td.ctx, "jane.doe", 100, 1, td.now.Unix()))

	got, err = td.store.GetUserProgress(td.ctx, "john.doe")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1250), got.XP)
	assert.Equal(t, int64(2), got.Level)

	top, err := td.store.ListTopUsers(td.ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "john.doe", top[0].UserID)
	assert.Equal(t, "jane.doe", top[1].UserID)

	require.Error(t, td.store.SetUserXP(td.ctx, "nobody", 1, 1, td.now.Unix()))
}

func TestInTxRollsBack(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	boom := errors.New("boom")
	err := td.store.InTx(td.ctx, func(repo store.Repository) error {
		require.NoError(t, repo.InsertSubmission(td.ctx, td.submission("s1", "c1", "john.doe", models.StatusSubmitted)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := td.store.FindSubmission(td.ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = td.store.InTx(td.ctx, func(repo store.Repository) error {
		return repo.InsertSubmission(td.ctx, td.submission("s1", "c1", "john.doe", models.StatusSubmitted))
	})
	require.NoError(t, err)

	got, err = td.store.FindSubmission(td.ctx, "s1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestCountPlatform(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	day := int64(24 * 60 * 60)
	now := td.now.Unix()
	rows := []struct {
		id        string
		createdAt int64
	}{
		{"u1", now - day},
		{"u2", now - 45*day},
		{"u3", now - 90*day},
	}
	for _, r := range rows {
		_, err := td.store.DB.Exec(`INSERT INTO users (id, xp, level, created_at, updated_at) VALUES (?, 0, 1, ?, ?)`,
			r.id, r.createdAt, r.createdAt)
		require.NoError(t, err)
	}
	_, err := td.store.DB.Exec(`INSERT INTO course_enrollments (user_id, course_id, completed, enrolled_at) VALUES
		('u1', 'cs101', 1, ?), ('u2', 'cs101', 0, ?)`, now, now)
	require.NoError(t, err)

	counts, err := td.store.CountPlatform(td.ctx, now)
	require.NoError(t, err)
	assert.Equal(t, models.PlatformCounts{
		TotalUsers:           3,
		TotalCourses:         2,
		TotalEnrollments:     2,
		CompletedEnrollments: 1,
		TotalSubmissions:     0,
		ActiveUsers:          1,
		UsersLastMonth:       1,
		UsersPreviousMonth:   1,
	}, *counts)
}

func TestTranslateToSQLite(t *testing.T) {
	in := `CREATE TABLE t (id BIGSERIAL, n BIGINT NOT NULL, done BOOLEAN DEFAULT FALSE, ok BOOLEAN DEFAULT TRUE, u UUID)`
	want := `CREATE TABLE t (id INTEGER PRIMARY KEY AUTOINCREMENT, n INTEGER NOT NULL, done INTEGER DEFAULT 0, ok INTEGER DEFAULT 1, u TEXT)`
	assert.Equal(t, want, translateToSQLite(in))
}

func TestEnrollments(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	got, err := td.store.FindEnrollment(td.ctx, "john.doe", "cs101")
	require.NoError(t, err)
	assert.Nil(t, got)

	enrollment := &models.Enrollment{UserID: "john.doe", CourseID: "cs101", EnrolledAt: td.now.Unix()}
	require.NoError(t, td.store.InsertEnrollment(td.ctx, enrollment))
	require.NoError(t, td.store.InsertEnrollment(td.ctx, &models.Enrollment{UserID: "john.doe", CourseID: "cs202", EnrolledAt: td.now.Unix()}))

	err = td.store.InsertEnrollment(td.ctx, enrollment)
	assert.ErrorIs(t, err, store.ErrConflict)

	require.NoError(t, td.store.CompleteEnrollment(td.ctx, "john.doe", "cs101"))
	assert.ErrorIs(t, td.store.CompleteEnrollment(td.ctx, "jane.doe", "cs101"), sql.ErrNoRows)

	got, err = td.store.FindEnrollment(td.ctx, "john.doe", "cs101")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Completed)

	all, err := td.store.ListUserEnrollments(td.ctx, "john.doe")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "cs101", all[0].CourseID)
	assert.False(t, all[1].Completed)

	counts, err := td.store.CountPlatform(td.ctx, td.now.Unix())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.TotalEnrollments)
	assert.Equal(t, int64(1), counts.CompletedEnrollments)
}

func TestEnsureUserMarksActivity(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	signedUp := td.now.Add(-60 * 24 * time.Hour).Unix()
	require.NoError(t, td.store.EnsureUser(td.ctx, "john.doe", signedUp))
	require.NoError(t, td.store.SetUserXP(td.ctx, "john.doe", 300, 1, signedUp))

	counts, err := td.store.CountPlatform(td.ctx, td.now.Unix())
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts.ActiveUsers)

	require.NoError(t, td.store.EnsureUser(td.ctx, "john.doe", td.now.Unix()))

	counts, err = td.store.CountPlatform(td.ctx, td.now.Unix())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.ActiveUsers)
	assert.Equal(t, int64(0), counts.UsersLastMonth)

	got, err := td.store.GetUserProgress(td.ctx, "john.doe")
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.XP)
}
