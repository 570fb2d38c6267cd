package app

import (
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/mentorloop/internal/store"
	"github.com/shrimpsizemoose/mentorloop/internal/store/postgres"
	"github.com/shrimpsizemoose/mentorloop/internal/store/sqlite"
)

func DatabaseType(dsn string) store.DatabaseType {
	if strings.HasPrefix(dsn, "postgres") {
		return store.DBTypePostgres
	}
	return store.DBTypeSQLite
}

func NewStore(dsn, migrationsDir string) (store.Store, error) {
	config := &store.DBConfig{
		DSN:           dsn,
		Type:          DatabaseType(dsn),
		MigrationsDir: migrationsDir,
	}

	switch config.Type {
	case store.DBTypePostgres:
		return postgres.NewPostgresStore(config)
	case store.DBTypeSQLite:
		return sqlite.NewSQLiteStore(config)
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", dsn)
	}
}
