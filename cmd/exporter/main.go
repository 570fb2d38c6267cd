package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/mentorloop/internal/app"
	"github.com/shrimpsizemoose/mentorloop/internal/export"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	flag.Parse()
	app.LoadEnv()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	exporter, err := export.NewGSheetExporter(service.Config, service.Engine)
	if err != nil {
		logger.Error.Fatalf("Failed to initialize Google Sheets exporter: %v", err)
	}
	exporter.Start()
	defer exporter.Stop()

	logger.Info.Println("Leaderboard exporter started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info.Println("Leaderboard exporter stopped")
}
