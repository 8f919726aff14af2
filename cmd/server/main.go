package main

import (
	"log"
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/grailmeter/grail-meter/internal/analyzer"
	"github.com/grailmeter/grail-meter/internal/config"
	"github.com/grailmeter/grail-meter/internal/ebay"
	"github.com/grailmeter/grail-meter/internal/history"
	"github.com/grailmeter/grail-meter/internal/llm"
	"github.com/grailmeter/grail-meter/internal/server"
	"github.com/grailmeter/grail-meter/internal/trends"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if cfg.Server.Production {
		slog.SetLogLoggerLevel(slog.LevelInfo)
	} else {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	vision, err := llm.NewGemini(&cfg.Gemini)
	if err != nil {
		log.Fatalf("failed to create vision provider: %v", err)
	}

	trendClient := trends.NewClient(&cfg.Trends)
	priceScraper := ebay.NewScraper(&cfg.Ebay)

	var store history.Store
	if cfg.Database.URL != "" {
		store, err = history.NewPostgresStore(cfg.Database.URL)
		if err != nil {
			slog.Warn("postgres unavailable, using in-memory history", "error", err)
			store = history.NewMemoryStore()
		} else {
			slog.Info("search history backed by postgres")
		}
	} else {
		slog.Info("DATABASE_URL not set, using in-memory history")
		store = history.NewMemoryStore()
	}
	defer store.Close()

	pipeline := analyzer.New(vision, trendClient, priceScraper, store)

	srv := server.New(*cfg, pipeline, store)
	slog.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port)
	if err := srv.Run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
