package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/allowly/allowly-api/internal/config"
	"github.com/allowly/allowly-api/internal/domain/approval"
	"github.com/allowly/allowly-api/internal/domain/ledger"
	"github.com/allowly/allowly-api/internal/domain/limits"
	"github.com/allowly/allowly-api/internal/domain/notification"
	"github.com/allowly/allowly-api/internal/domain/policy"
	"github.com/allowly/allowly-api/internal/pkg/clock"
	"github.com/allowly/allowly-api/internal/pkg/database"
	"github.com/allowly/allowly-api/internal/pkg/logger"
)

// Standalone expiration sweeper. Deployments that scale the API
// horizontally run one of these instead of the in-process sweeper; the
// redis lock keeps overlapping instances harmless either way.
func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().Msg("Starting expiration sweeper")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	clk := clock.System()

	policyRepo := policy.NewRepository(db)
	limitRepo := limits.NewRepository(db)
	ledgerService := ledger.NewService(ledger.NewRepository(db))
	requestRepo := approval.NewRepository(db)

	notificationHub := notification.NewHub()
	notificationService := notification.NewService(notification.NewRepository(db), notificationHub)

	approvalService := approval.NewService(db, requestRepo, policyRepo, limitRepo, ledgerService, notificationService, clk)

	sweeper := approval.NewSweeper(approvalService, limitRepo, redisClient, clk, cfg.SweepInterval, cfg.TrackerRetention)
	sweeper.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sweeper.Stop()
	log.Info().Msg("Sweeper exited properly")
}
