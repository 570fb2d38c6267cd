package store

import "errors"

type DatabaseType string

const (
	DBTypePostgres DatabaseType = "postgres"
	DBTypeSQLite   DatabaseType = "sqlite"
)

type DBConfig struct {
	DSN           string
	Type          DatabaseType
	MigrationsDir string
}

// ErrConflict is returned when a write violates a uniqueness constraint,
// e.g. a second active submission for the same challenge and user.
var ErrConflict = errors.New("unique constraint violated")

// ChallengeStats is a challenge row joined with its submission count.
type ChallengeStats struct {
	ChallengeID      string `db:"challenge_id"`
	TotalSubmissions int64  `db:"total_submissions"`
}
