package app

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"
)

type HeaderConfig struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

type GSheetConfig struct {
	CredentialsPath string `toml:"credentials_path"`
	SheetID         string `toml:"sheet_id"`
	SheetName       string `toml:"sheet_name"`
	// LeaderboardRange is the top-left cell the table is written from, e.g. A2.
	LeaderboardRange string `toml:"leaderboard_range"`
	TimestampRange   string `toml:"timestamp_range"`
	Schedule         string `toml:"schedule"`
	Size             int    `toml:"size"`
}

type Config struct {
	Server struct {
		Port       string `toml:"port"`
		EnableAuth bool   `toml:"enable_auth"`
	} `toml:"server"`

	Auth struct {
		RedisURL           string `toml:"redis_url"`
		TokenHeader        string `toml:"token_header"`
		SessionKeyTemplate string `toml:"session_key_template"`
	} `toml:"auth"`

	API struct {
		UserIDHeader    string         `toml:"user_id_header"`
		RoleHeader      string         `toml:"role_header"`
		RequiredHeaders []HeaderConfig `toml:"required_headers"`
	} `toml:"api"`

	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Engine struct {
		LeaderboardSize int `toml:"leaderboard_size"`
	} `toml:"engine"`

	GSheet        []GSheetConfig `toml:"gsheet"`
	EmojiVariants []string       `toml:"emoji_variants"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return ParseConfig(path, data)
}

func ParseConfig(path string, data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			path,
			err,
			string(data),
		)
	}

	OverrideFromEnv(&config.Database.DSN, EnvDatabaseDSN)
	OverrideFromEnv(&config.Auth.RedisURL, EnvRedisURL)

	if config.Server.Port == "" {
		return nil, fmt.Errorf("Server port is not specified in config, use a value like :9999")
	}

	if config.API.UserIDHeader == "" {
		config.API.UserIDHeader = "X-User-Id"
	}
	if config.API.RoleHeader == "" {
		config.API.RoleHeader = "X-User-Role"
	}
	if config.Auth.TokenHeader == "" {
		config.Auth.TokenHeader = "Authorization"
	}
	if config.Auth.SessionKeyTemplate == "" {
		config.Auth.SessionKeyTemplate = "session:{token}"
	}
	if config.Database.MigrationsDir == "" {
		config.Database.MigrationsDir = "./migrations"
	}
	if config.Engine.LeaderboardSize <= 0 {
		config.Engine.LeaderboardSize = 10
	}

	logger.Debug.Printf("Loaded engine config: %+v", config.Engine)

	return &config, nil
}
