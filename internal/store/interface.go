package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/mentorloop/internal/models"
)

// Repository is the query surface the lifecycle engine runs against.
// Lookups return (nil, nil) when the row does not exist.
type Repository interface {
	FindChallenge(ctx context.Context, id string) (*models.Challenge, error)
	ListChallenges(ctx context.Context, courseID string) ([]models.Challenge, error)
	UpsertChallenge(ctx context.Context, challenge *models.Challenge) error
	CountSubmissionsByChallenge(ctx context.Context) (map[string]int64, error)

	// FindSubmission locks the row when called inside InTx.
	FindSubmission(ctx context.Context, id string) (*models.Submission, error)
	FindActiveSubmission(ctx context.Context, challengeID, userID string) (*models.Submission, error)
	// ListSubmissions returns the submissions of a challenge, oldest first.
	// An empty status matches every status.
	ListSubmissions(ctx context.Context, challengeID string, status models.Status) ([]models.Submission, error)
	ListUserSubmissions(ctx context.Context, userID string) ([]models.Submission, error)
	InsertSubmission(ctx context.Context, submission *models.Submission) error
	UpdateSubmission(ctx context.Context, submission *models.Submission) error

	InsertComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, submissionID string) ([]models.Comment, error)

	// GrantReward writes the ledger entry for (user, challenge) and reports
	// whether it was written; false means a reward was already granted.
	GrantReward(ctx context.Context, grant models.RewardGrant) (bool, error)
	ListRewardGrants(ctx context.Context, userID string) ([]models.RewardGrant, error)

	EnsureUser(ctx context.Context, userID string, now int64) error
	// GetUserProgress locks the row when called inside InTx.
	GetUserProgress(ctx context.Context, userID string) (*models.UserProgress, error)
	SetUserXP(ctx context.Context, userID string, xp, level, now int64) error
	ListTopUsers(ctx context.Context, limit int) ([]models.UserProgress, error)

	InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	// FindEnrollment locks the row when called inside InTx.
	FindEnrollment(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
	CompleteEnrollment(ctx context.Context, userID, courseID string) error
	ListUserEnrollments(ctx context.Context, userID string) ([]models.Enrollment, error)

	CountPlatform(ctx context.Context, now int64) (*models.PlatformCounts, error)
}

type Store interface {
	Repository

	Close() error
	ApplyMigrations(dir string) error
	// InTx runs fn in one transaction; fn's error rolls it back.
	InTx(ctx context.Context, fn func(Repository) error) error
}

// Dialect carries what differs between database backends.
type Dialect struct {
	Converter         func(string) string
	LockClause        string
	IsUniqueViolation func(error) bool
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	*Queries

	DB      *sqlx.DB
	Dialect *Dialect
}

func NewBaseStore(db *sqlx.DB, dialect *Dialect) BaseStore {
	return BaseStore{
		Queries: &Queries{ext: db, dialect: dialect},
		DB:      db,
		Dialect: dialect,
	}
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from a directory, translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		logger.Debug.Printf("Applying migration: %s", file.Name())
		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}

func (s *BaseStore) InTx(ctx context.Context, fn func(Repository) error) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Queries{ext: tx, dialect: s.Dialect, locking: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error.Printf("Failed to roll back transaction: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
