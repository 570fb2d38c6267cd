package main

import (
	"flag"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/mentorloop/internal/app"
	"github.com/shrimpsizemoose/mentorloop/internal/bot"
	"github.com/shrimpsizemoose/mentorloop/internal/lifecycle"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	flag.Parse()
	app.LoadEnv()

	cfg, err := bot.ReadConfig(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to read config: %v", err)
	}

	store, err := app.NewStore(cfg.Database.DSN, cfg.Database.MigrationsDir)
	if err != nil {
		logger.Error.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	var tokens *app.TokenManager
	if cfg.Auth.Enabled {
		client, err := app.NewRedisClient(cfg.Auth.RedisURL)
		if err != nil {
			logger.Error.Fatalf("Failed to connect to redis: %v", err)
		}
		tokens = app.NewTokenManager(client, cfg.Auth.SessionKeyTemplate)
		defer tokens.Close()
	}

	b, err := bot.New(cfg, lifecycle.NewEngine(store), tokens)
	if err != nil {
		logger.Error.Fatalf("Failed to create bot: %v", err)
	}

	logger.Info.Println("Bot initialized successfully")
	if err := b.Start(); err != nil {
		logger.Error.Fatalf("Bot error: %v", err)
	}
}
