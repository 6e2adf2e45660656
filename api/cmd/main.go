package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/courtside/registration-service/internal/audit"
	"github.com/courtside/registration-service/internal/config"
	"github.com/courtside/registration-service/internal/infrastructure/postgres"
	"github.com/courtside/registration-service/internal/infrastructure/rabbitmq"
	"github.com/courtside/registration-service/internal/infrastructure/redis"
	"github.com/courtside/registration-service/internal/pkg/logger"
	"github.com/courtside/registration-service/internal/security"
	"github.com/courtside/registration-service/internal/service"
	"github.com/courtside/registration-service/internal/transport/rest"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}

	logger.Init()
	log := logger.Logger.With().
		Str("service", "registration-service").
		Str("env", cfg.AppEnv).
		Logger()

	// Root ctx with signal cancellation
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Postgres ----
	dbPool, err := pgxpool.New(rootCtx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres pool create failed")
	}
	defer dbPool.Close()

	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		defer cancel()

		if err := dbPool.Ping(pingCtx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}
		log.Info().Msg("postgres connected")
	}

	// Shared collaborators back the eligibility gate and the category domain.
	shared := postgres.NewShared(dbPool)
	repo := postgres.New(dbPool, shared, shared)

	// ---- Redis ----
	cache := redis.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.CacheTournamentTTL)

	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 2*time.Second)
		defer cancel()

		// Best-effort ping; don't kill service if redis is down
		if err := cache.Client.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed (continuing)")
		} else {
			log.Info().Msg("redis connected")
		}
	}

	// ---- Application service ----
	svc := service.NewRegistrationService(repo, cache)
	auditLog := audit.New(log)
	h := rest.NewHandler(svc, auditLog)

	// ---- JWT verifier ----
	verifier := security.NewHS256Verifier(cfg.JWTSecret)

	// ---- Router ----
	httpHandler := rest.NewRouter(rest.RouterDeps{
		Cache:     cache,
		Handler:   h,
		Verifier:  verifier,
		JWTIssuer: cfg.JWTIssuer,
	})

	// ---- MQ consumer (inbound tournament snapshots) ----
	// The consumer also feeds the tournament-open cache the REST fast-fail reads.
	mqConsumer := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitExchange, repo, cache)
	if err := mqConsumer.Start(rootCtx); err != nil {
		log.Fatal().Err(err).Msg("mq consumer start failed")
	}

	// ---- Outbox worker (outbound registration.* / membership.* events) ----
	if cfg.OutboxEnabled {
		repo.StartOutboxWorker(rootCtx, cfg.RabbitURL, cfg.RabbitExchange, auditLog)
		log.Info().Msg("outbox worker started")
	}

	// ---- Idempotency key cleanup ----
	repo.StartIdempotencyKeyCleanup(rootCtx)

	// ---- HTTP server ----
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server crashed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}
