package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finbridge/plaid-link-go/internal/config"
	"github.com/finbridge/plaid-link-go/internal/database"
	"github.com/finbridge/plaid-link-go/internal/handler"
	"github.com/finbridge/plaid-link-go/internal/jobs"
	"github.com/finbridge/plaid-link-go/internal/middleware"
	"github.com/finbridge/plaid-link-go/internal/plaid"
	"github.com/finbridge/plaid-link-go/internal/redis"
	"github.com/finbridge/plaid-link-go/internal/repository"
	"github.com/finbridge/plaid-link-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := cfg.PlaidEnvironment == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	itemRepo := repository.NewItemRepository(db.DB)
	sessionRepo := repository.NewLinkSessionRepository(db.DB)

	plaidClient := plaid.NewClient(cfg.PlaidEnvironment, cfg.PlaidClientID, cfg.PlaidSecret, config.PlaidClientTimeout)

	cipher := service.NewTokenCipher(cfg.EncryptionKey)
	itemService := service.NewItemService(itemRepo, cipher)
	reconciler := service.NewLinkReconciler(sessionRepo, itemService, plaidClient)
	deletionService := service.NewItemDeletionService(db, itemRepo, plaidClient, cipher, cfg.DeletionCooldown())
	linkSessionService := service.NewLinkSessionService(sessionRepo, plaidClient, cfg.PlaidWebhookURL)

	authMiddleware := middleware.NewAuthMiddleware()
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.APIRateLimitPerMin)
	signatureMiddleware := middleware.NewPlaidSignatureMiddleware(cfg.PlaidWebhookSecret, cfg.SignatureRequired)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	webhookHandler := handler.NewWebhookHandler(reconciler)
	itemsHandler := handler.NewItemsHandler(itemService, deletionService)
	linkHandler := handler.NewLinkHandler(linkSessionService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/plaid", func(r chi.Router) {
		r.Use(signatureMiddleware.Handler)
		r.Post("/webhook", webhookHandler.Webhook)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Mount("/link", linkHandler.Routes())
		r.Mount("/items", itemsHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(sessionRepo, itemRepo, cfg.LinkSessionTTL(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
