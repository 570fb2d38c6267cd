package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/mentorloop/internal/models"
)

const submissionColumns = `
	id, challenge_id, user_id, content, attachments, status,
	feedback, grade, submitted_at, reviewed_at, reviewed_by`

const challengeColumns = `
	id, course_id, title, description, requirements, xp_reward, due_at, rubric, created_at`

// Queries implements Repository on top of a DB handle or a transaction.
type Queries struct {
	ext     sqlx.ExtContext
	dialect *Dialect
	locking bool
}

func (q *Queries) query(s string) string {
	if q.dialect != nil && q.dialect.Converter != nil {
		return q.dialect.Converter(s)
	}
	return s
}

func (q *Queries) lock() string {
	if q.locking && q.dialect != nil {
		return q.dialect.LockClause
	}
	return ""
}

func (q *Queries) writeErr(what string, err error) error {
	if q.dialect != nil && q.dialect.IsUniqueViolation != nil && q.dialect.IsUniqueViolation(err) {
		return fmt.Errorf("failed to %s: %w", what, ErrConflict)
	}
	return fmt.Errorf("failed to %s: %w", what, err)
}

func (q *Queries) FindChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	var challenge models.Challenge
	query := q.query(`SELECT` + challengeColumns + ` FROM challenges WHERE id = ?`)

	err := sqlx.GetContext(ctx, q.ext, &challenge, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return &challenge, nil
}

func (q *Queries) ListChallenges(ctx context.Context, courseID string) ([]models.Challenge, error) {
	challenges := []models.Challenge{}
	query := `SELECT` + challengeColumns + ` FROM challenges`
	args := []interface{}{}
	if courseID != "" {
		query += ` WHERE course_id = ?`
		args = append(args, courseID)
	}
	query += ` ORDER BY due_at ASC, id ASC`

	if err := sqlx.SelectContext(ctx, q.ext, &challenges, q.query(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	return challenges, nil
}

func (q *Queries) UpsertChallenge(ctx context.Context, c *models.Challenge) error {
	_, err := q.ext.ExecContext(ctx, q.query(`
		INSERT INTO challenges (id, course_id, title, description, requirements, xp_reward, due_at, rubric, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		course_id = excluded.course_id,
		title = excluded.title,
		description = excluded.description,
		requirements = excluded.requirements,
		xp_reward = excluded.xp_reward,
		due_at = excluded.due_at,
		rubric = excluded.rubric
	`),
		c.ID, c.CourseID, c.Title, c.Description, c.Requirements, c.XPReward, c.DueAt, c.Rubric, c.CreatedAt,
	)
	if err != nil {
		return q.writeErr("save challenge", err)
	}
	return nil
}

func (q *Queries) CountSubmissionsByChallenge(ctx context.Context) (map[string]int64, error) {
	var rows []ChallengeStats
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT challenge_id, COUNT(*) AS total_submissions
		FROM submissions
		GROUP BY challenge_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.ChallengeID] = row.TotalSubmissions
	}
	return counts, nil
}

func (q *Queries) FindSubmission(ctx context.Context, id string) (*models.Submission, error) {
	var submission models.Submission
	query := q.query(`SELECT` + submissionColumns + ` FROM submissions WHERE id = ?` + q.lock())

	err := sqlx.GetContext(ctx, q.ext, &submission, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &submission, nil
}

func (q *Queries) FindActiveSubmission(ctx context.Context, challengeID, userID string) (*models.Submission, error) {
	var submission models.Submission
	query := q.query(`
		SELECT` + submissionColumns + `
		FROM submissions
		WHERE challenge_id = ?
		AND user_id = ?
		AND status IN ('submitted', 'approved')
		ORDER BY submitted_at DESC
		LIMIT 1
	`)

	err := sqlx.GetContext(ctx, q.ext, &submission, query, challengeID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active submission: %w", err)
	}
	return &submission, nil
}

func (q *Queries) ListSubmissions(ctx context.Context, challengeID string, status models.Status) ([]models.Submission, error) {
	submissions := []models.Submission{}
	query := `SELECT` + submissionColumns + ` FROM submissions WHERE challenge_id = ?`
	args := []interface{}{challengeID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY submitted_at ASC, id ASC`

	if err := sqlx.SelectContext(ctx, q.ext, &submissions, q.query(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}

func (q *Queries) ListUserSubmissions(ctx context.Context, userID string) ([]models.Submission, error) {
	submissions := []models.Submission{}
	query := q.query(`
		SELECT` + submissionColumns + `
		FROM submissions
		WHERE user_id = ?
		ORDER BY challenge_id, submitted_at ASC, id ASC
	`)

	if err := sqlx.SelectContext(ctx, q.ext, &submissions, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list user submissions: %w", err)
	}
	return submissions, nil
}

func (q *Queries) InsertSubmission(ctx context.Context, s *models.Submission) error {
	_, err := q.ext.ExecContext(ctx, q.query(`
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		s.ID, s.ChallengeID, s.UserID, s.Content, s.Attachments, s.Status,
		s.Feedback, s.Grade, s.SubmittedAt, s.ReviewedAt, s.ReviewedBy,
	)
	if err != nil {
		return q.writeErr("create submission", err)
	}
	return nil
}

func (q *Queries) UpdateSubmission(ctx context.Context, s *models.Submission) error {
	res, err := q.ext.ExecContext(ctx, q.query(`
		UPDATE submissions SET
		content = ?,
		attachments = ?,
		status = ?,
		feedback = ?,
		grade = ?,
		submitted_at = ?,
		reviewed_at = ?,
		reviewed_by = ?
		WHERE id = ?
	`),
		s.Content, s.Attachments, s.Status, s.Feedback, s.Grade,
		s.SubmittedAt, s.ReviewedAt, s.ReviewedBy, s.ID,
	)
	if err != nil {
		return q.writeErr("update submission", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update submission %s: %w", s.ID, sql.ErrNoRows)
	}
	return nil
}

func (q *Queries) InsertComment(ctx context.Context, c *models.Comment) error {
	_, err := q.ext.ExecContext(ctx, q.query(`
		INSERT INTO submission_comments (id, submission_id, author_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), c.ID, c.SubmissionID, c.AuthorID, c.Body, c.CreatedAt)
	if err != nil {
		return q.writeErr("create comment", err)
	}
	return nil
}

func (q *Queries) ListComments(ctx context.Context, submissionID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	query := q.query(`
		SELECT id, submission_id, author_id, body, created_at
		FROM submission_comments
		WHERE submission_id = ?
		ORDER BY created_at ASC, id ASC
	`)

	if err := sqlx.SelectContext(ctx, q.ext, &comments, query, submissionID); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

func (q *Queries) GrantReward(ctx context.Context, g models.RewardGrant) (bool, error) {
	res, err := q.ext.ExecContext(ctx, q.query(`
		INSERT INTO reward_grants (user_id, challenge_id, submission_id, amount, granted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, challenge_id) DO NOTHING
	`), g.UserID, g.ChallengeID, g.SubmissionID, g.Amount, g.GrantedAt)
	if err != nil {
		return false, fmt.Errorf("failed to grant reward: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check reward grant: %w", err)
	}
	return n == 1, nil
}

func (q *Queries) ListRewardGrants(ctx context.Context, userID string) ([]models.RewardGrant, error) {
	grants := []models.RewardGrant{}
	query := q.query(`
		SELECT user_id, challenge_id, submission_id, amount, granted_at
		FROM reward_grants
		WHERE user_id = ?
		ORDER BY granted_at ASC, challenge_id ASC
	`)

	if err := sqlx.SelectContext(ctx, q.ext, &grants, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list reward grants: %w", err)
	}
	return grants, nil
}

// EnsureUser registers the user on first sight and marks it active at now.
func (q *Queries) EnsureUser(ctx context.Context, userID string, now int64) error {
	_, err := q.ext.ExecContext(ctx, q.query(`
		INSERT INTO users (id, xp, level, created_at, updated_at)
		VALUES (?, 0, 1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET updated_at = excluded.updated_at
	`), userID, now, now)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

func (q *Queries) GetUserProgress(ctx context.Context, userID string) (*models.UserProgress, error) {
	var progress models.UserProgress
	query := q.query(`SELECT id, name, xp, level FROM users WHERE id = ?` + q.lock())

	err := sqlx.GetContext(ctx, q.ext, &progress, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user progress: %w", err)
	}
	return &progress, nil
}

func (q *Queries) SetUserXP(ctx context.Context, userID string, xp, level, now int64) error {
	res, err := q.ext.ExecContext(ctx, q.query(`
		UPDATE users SET xp = ?, level = ?, updated_at = ? WHERE id = ?
	`), xp, level, now, userID)
	if err != nil {
		return fmt.Errorf("failed to update user xp: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update user xp for %s: %w", userID, sql.ErrNoRows)
	}
	return nil
}

// ListTopUsers skips users that have not earned any XP yet.
func (q *Queries) ListTopUsers(ctx context.Context, limit int) ([]models.UserProgress, error) {
	users := []models.UserProgress{}
	query := q.query(`
		SELECT id, name, xp, level
		FROM users
		WHERE xp > 0
		ORDER BY xp DESC, id ASC
		LIMIT ?
	`)

	if err := sqlx.SelectContext(ctx, q.ext, &users, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list top users: %w", err)
	}
	return users, nil
}

const enrollmentColumns = `user_id, course_id, completed, enrolled_at`

func (q *Queries) InsertEnrollment(ctx context.Context, e *models.Enrollment) error {
	_, err := q.ext.ExecContext(ctx, q.query(`
		INSERT INTO course_enrollments (`+enrollmentColumns+`)
		VALUES (?, ?, ?, ?)
	`), e.UserID, e.CourseID, e.Completed, e.EnrolledAt)
	if err != nil {
		return q.writeErr("create enrollment", err)
	}
	return nil
}

func (q *Queries) FindEnrollment(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	query := q.query(`
		SELECT ` + enrollmentColumns + `
		FROM course_enrollments
		WHERE user_id = ? AND course_id = ?` + q.lock())

	err := sqlx.GetContext(ctx, q.ext, &enrollment, query, userID, courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return &enrollment, nil
}

func (q *Queries) CompleteEnrollment(ctx context.Context, userID, courseID string) error {
	res, err := q.ext.ExecContext(ctx, q.query(`
		UPDATE course_enrollments SET completed = ? WHERE user_id = ? AND course_id = ?
	`), true, userID, courseID)
	if err != nil {
		return fmt.Errorf("failed to complete enrollment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to complete enrollment %s/%s: %w", userID, courseID, sql.ErrNoRows)
	}
	return nil
}

func (q *Queries) ListUserEnrollments(ctx context.Context, userID string) ([]models.Enrollment, error) {
	enrollments := []models.Enrollment{}
	query := q.query(`
		SELECT ` + enrollmentColumns + `
		FROM course_enrollments
		WHERE user_id = ?
		ORDER BY enrolled_at ASC, course_id ASC
	`)

	if err := sqlx.SelectContext(ctx, q.ext, &enrollments, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return enrollments, nil
}

const (
	day   = int64(24 * 60 * 60)
	month = 30 * day
)

func (q *Queries) CountPlatform(ctx context.Context, now int64) (*models.PlatformCounts, error) {
	var counts models.PlatformCounts
	query := q.query(`
		SELECT
			(SELECT COUNT(*) FROM users) AS total_users,
			(SELECT COUNT(DISTINCT course_id) FROM challenges) AS total_courses,
			(SELECT COUNT(*) FROM course_enrollments) AS total_enrollments,
			(SELECT COUNT(*) FROM course_enrollments WHERE completed) AS completed_enrollments,
			(SELECT COUNT(*) FROM submissions) AS total_submissions,
			(SELECT COUNT(*) FROM users WHERE updated_at >= ?) AS active_users,
			(SELECT COUNT(*) FROM users WHERE created_at >= ?) AS users_last_month,
			(SELECT COUNT(*) FROM users WHERE created_at >= ? AND created_at < ?) AS users_previous_month
	`)

	err := sqlx.GetContext(ctx, q.ext, &counts, query,
		now-month,
		now-month,
		now-2*month,
		now-month,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count platform stats: %w", err)
	}
	return &counts, nil
}
