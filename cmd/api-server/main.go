package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/medilink/appointment-booking/internal/api"
	"github.com/medilink/appointment-booking/internal/auth"
	"github.com/medilink/appointment-booking/internal/booking"
	"github.com/medilink/appointment-booking/internal/config"
	"github.com/medilink/appointment-booking/internal/db"
	"github.com/medilink/appointment-booking/internal/notify"
	redisclient "github.com/medilink/appointment-booking/internal/redis"
)

const version = "0.1.0"

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api-server").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}
	if cfg.Env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	hub := notify.NewHub(logger.With().Str("component", "notify").Logger())
	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	svc := booking.NewService(repo, locker, hub, cfg.SlotLength, logger.With().Str("component", "booking").Logger())

	router := api.NewRouter(api.RouterConfig{
		Service:         svc,
		Hub:             hub,
		Verifier:        auth.NewVerifier(cfg.JWTSecret),
		PgPool:          pgPool,
		Redis:           rdb,
		Logger:          logger,
		Env:             cfg.Env,
		Version:         version,
		WSAllowedOrigin: cfg.WSAllowedOrigin,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("api-server stopped")
}
