package main

import (
	"flag"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/mentorloop/internal/app"
	"github.com/shrimpsizemoose/mentorloop/internal/handlers"
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

	mux := http.NewServeMux()
	handlers.NewHandler(service).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info.Printf("Starting mentorloop server on %s", service.Config.Server.Port)
	logger.Debug.Println("Requiring headers:")
	for _, h := range service.Config.API.RequiredHeaders {
		logger.Debug.Printf("  %s: %s", h.Name, h.Value)
	}
	if err := http.ListenAndServe(service.Config.Server.Port, mux); err != nil {
		logger.Error.Fatalf("Mentorloop server failed: %v", err)
	}
}
