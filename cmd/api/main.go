package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/allowly/allowly-api/internal/config"
	"github.com/allowly/allowly-api/internal/domain/approval"
	"github.com/allowly/allowly-api/internal/domain/ledger"
	"github.com/allowly/allowly-api/internal/domain/limits"
	"github.com/allowly/allowly-api/internal/domain/notification"
	"github.com/allowly/allowly-api/internal/domain/policy"
	"github.com/allowly/allowly-api/internal/middleware"
	"github.com/allowly/allowly-api/internal/pkg/clock"
	"github.com/allowly/allowly-api/internal/pkg/database"
	"github.com/allowly/allowly-api/internal/pkg/jwt"
	"github.com/allowly/allowly-api/internal/pkg/logger"
	pkgresponse "github.com/allowly/allowly-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Allowly API")

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

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	clk := clock.System()

	// ---------- Repositories ----------
	policyRepo := policy.NewRepository(db)
	limitRepo := limits.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	requestRepo := approval.NewRepository(db)
	notificationRepo := notification.NewRepository(db)

	// ---------- WebSocket hub ----------
	notificationHub := notification.NewHub()

	// ---------- Services ----------
	policyService := policy.NewService(policyRepo, redisClient)
	ledgerService := ledger.NewService(ledgerRepo)
	notificationService := notification.NewService(notificationRepo, notificationHub)
	approvalService := approval.NewService(db, requestRepo, policyRepo, limitRepo, ledgerService, notificationService, clk)

	sweeper := approval.NewSweeper(approvalService, limitRepo, redisClient, clk, cfg.SweepInterval, cfg.TrackerRetention)
	sweeper.Start()
	defer sweeper.Stop()

	// ---------- Handlers ----------
	policyHandler := policy.NewHandler(policyService)
	ledgerHandler := ledger.NewHandler(ledgerService)
	approvalHandler := approval.NewHandler(approvalService)
	notificationHandler := notification.NewHandler(notificationService, notificationHub, cfg.AllowedOrigins)

	authMiddleware := middleware.Auth(jwtService)
	parentOnly := middleware.RequireParent()
	childOnly := middleware.RequireChild()

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket endpoint (before Compress)
	r.Get("/ws/notifications", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		authMiddleware(http.HandlerFunc(notificationHandler.Stream)).ServeHTTP(w, r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Compress(5))

		r.Mount("/spending", approvalHandler.SpendingRoutes(authMiddleware, childOnly))
		r.Mount("/requests", approvalHandler.RequestRoutes(authMiddleware, parentOnly, childOnly))
		r.Mount("/wallet", ledgerHandler.Routes(authMiddleware, parentOnly))
		r.Mount("/notifications", notificationHandler.Routes(authMiddleware))

		r.Route("/children/{childID}", func(r chi.Router) {
			r.Mount("/policy", policyHandler.Routes(authMiddleware, parentOnly))
			r.Mount("/limits", approvalHandler.LimitRoutes(authMiddleware, parentOnly))
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
