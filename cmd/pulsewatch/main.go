package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/pulsewatch/pulsewatch/internal/cache"
	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/handlers"
	"github.com/pulsewatch/pulsewatch/internal/jobs"
	"github.com/pulsewatch/pulsewatch/internal/middleware"
	"github.com/pulsewatch/pulsewatch/internal/notify"
	"github.com/pulsewatch/pulsewatch/internal/services"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Info().Msg("starting pulsewatch")

	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run database migrations")
	}
	if err := database.InitializeDefaults(cfg.SeedRulesFile); err != nil {
		log.Fatal().Err(err).Msg("failed to seed default alert rules")
	}

	db := database.GetDB()

	// Query cache; TTL of zero disables it entirely.
	var queryCache *cache.Cache
	if cfg.CacheTTLMinutes > 0 {
		ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
		queryCache = cache.New(ttl, ttl)
		defer queryCache.Stop()
		log.Info().Dur("ttl", ttl).Msg("query cache enabled")
	}

	// A nil concrete notifier must stay a nil interface.
	var notifier services.Notifier
	if slackNotifier := notify.NewSlackNotifier(cfg.SlackWebhookURL); slackNotifier != nil {
		notifier = slackNotifier
		log.Info().Msg("slack incident notifications enabled")
	}

	trend := services.NewTrendAnalyzer(cfg.TrendUptimeDeltaPts, cfg.TrendResponseDeltaMs, cfg.TrendConfidenceWindows)
	incidents := services.NewIncidentManager(db, notifier, cfg.MTTRWindow)
	aggregator := services.NewAggregator(db, time.Duration(cfg.AggregationTimeoutSeconds)*time.Second)
	queries := services.NewQueryService(db, queryCache, trend, incidents)
	ingestor := services.NewIngestor(db, incidents, queries)

	runner := jobs.NewRunner(db, aggregator, incidents, queries,
		time.Duration(cfg.AggregationIntervalMinutes)*time.Minute)
	if err := runner.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start background jobs")
	}

	mux := http.NewServeMux()
	handlers.NewAPIHandler(queries, incidents, ingestor).SetupRoutes(mux)

	corsMiddleware := middleware.NewCORSMiddleware() // Allow all origins
	handler := corsMiddleware.Wrap(
		middleware.RequestIDMiddleware(
			middleware.LoggingMiddleware(mux)))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := runner.Shutdown(); err != nil {
		log.Error().Err(err).Msg("background jobs shutdown error")
	}

	log.Info().Msg("shutdown complete")
}
