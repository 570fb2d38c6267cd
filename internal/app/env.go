package app

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/shrimpsizemoose/trekker/logger"
)

const (
	EnvDatabaseDSN = "MENTORLOOP_DATABASE_DSN"
	EnvRedisURL    = "MENTORLOOP_REDIS_URL"
	EnvBotToken    = "MENTORLOOP_BOT_TOKEN"
)

// LoadEnv reads a .env file into the process environment if one exists.
// Variables already set in the environment win.
func LoadEnv(paths ...string) {
	err := godotenv.Load(paths...)
	switch {
	case err == nil:
		logger.Debug.Println(".env file loaded")
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug.Println("No .env file, using system environment")
	default:
		logger.Error.Printf("Failed to read .env file: %v", err)
	}
}

// OverrideFromEnv replaces *dst with the variable's value when it is set.
func OverrideFromEnv(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
