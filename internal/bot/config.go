package bot

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/mentorloop/internal/app"
)

type Config struct {
	Auth struct {
		Enabled            bool   `toml:"enabled"`
		RedisURL           string `toml:"redis_url"`
		SessionKeyTemplate string `toml:"session_key_template"`
	} `toml:"auth"`
	Bot struct {
		Token     string  `toml:"token"`
		AdminIDs  []int64 `toml:"admin_ids"`
		MentorIDs []int64 `toml:"mentor_ids"`
	} `toml:"bot"`
	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`
}

func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("Failed to load config: %v", err)
	}
	app.OverrideFromEnv(&cfg.Bot.Token, app.EnvBotToken)
	app.OverrideFromEnv(&cfg.Database.DSN, app.EnvDatabaseDSN)
	app.OverrideFromEnv(&cfg.Auth.RedisURL, app.EnvRedisURL)
	if cfg.Database.MigrationsDir == "" {
		cfg.Database.MigrationsDir = "./migrations"
	}
	return &cfg, nil
}
