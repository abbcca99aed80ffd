package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/config"
	"github.com/Mussapinga011/PartQuip-sub000/internal/infra"
	"github.com/Mussapinga011/PartQuip-sub000/internal/realtime"
	"github.com/Mussapinga011/PartQuip-sub000/internal/repository"
	"github.com/Mussapinga011/PartQuip-sub000/internal/router"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	infra.SetupLogger(infra.LoggerOptions{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Env != "production",
		LogFile: cfg.LogFile,
	})
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	hub := realtime.NewHub()
	var publisher realtime.Publisher = realtime.LocalPublisher{Hub: hub}
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		broker := realtime.NewRedisBroker(rdb, realtime.DefaultChannel)
		publisher = broker
		go func() {
			if err := broker.Relay(ctx, hub); err != nil {
				log.Error().Err(err).Msg("realtime relay stopped")
			}
		}()
	} else {
		log.Warn().Msg("REDIS_URL not set, change events reach this instance only")
	}

	r := router.New(cfg, router.Deps{
		Repos:     repository.NewRegistry(db),
		Hub:       hub,
		Publisher: publisher,
		Checks:    router.HealthChecks(db, rdb),
	})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("PartQuip server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	hub.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}
