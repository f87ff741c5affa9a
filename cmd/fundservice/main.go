package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/trogers1052/fund-tracker/internal/api"
	"github.com/trogers1052/fund-tracker/internal/config"
	"github.com/trogers1052/fund-tracker/internal/database"
	"github.com/trogers1052/fund-tracker/internal/kafka"
	"github.com/trogers1052/fund-tracker/internal/logger"
	"github.com/trogers1052/fund-tracker/internal/portfolio"
	"github.com/trogers1052/fund-tracker/internal/quote"
	"github.com/trogers1052/fund-tracker/internal/valuation"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(cfg.Database.MigrationsPath); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	var cache quote.NavCache
	if cfg.Redis.Enabled {
		redisCache := quote.NewRedisNavCache(cfg.Redis.Addr, 30*24*time.Hour)
		defer redisCache.Close()
		cache = redisCache
	}

	provider := quote.NewClient()
	resolver := quote.NewResolver(provider, db, cache)
	service := portfolio.NewService(db, resolver, provider,
		valuation.FeeLotPolicy(cfg.Valuation.FeeLotPolicy))

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		defer producer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ImportTopic,
			cfg.Kafka.ConsumerGroup, db)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("kafka consumer stopped", "error", err)
			}
		}()
	}

	handler := api.NewHandler(service, producer)
	router := api.SetupRoutes(handler)

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
}
