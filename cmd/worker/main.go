package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/card-hold/internal/app"
	"github.com/noah-isme/card-hold/internal/config"
	"github.com/noah-isme/card-hold/internal/fulfillment"
	"github.com/noah-isme/card-hold/internal/obs"
)

func main() {
	cfg := config.MustLoad()

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "cardhold"), nil)

	if cfg.RedisURL == "" {
		logger.Fatal().Msg("REDIS_URL is required for the fulfillment worker")
	}
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.WorkerConcurrency,
		Queues:          map[string]int{cfg.FulfillmentQueue: 1},
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          obs.AsynqLogger{Logger: logger},
		BaseContext:     func() context.Context { return ctx },
	})

	gateway, err := app.NewGateway(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise payment gateway")
	}

	mux := asynq.NewServeMux()
	mux.Handle(fulfillment.TypeFulfillPayment, fulfillment.Handler{
		Fulfiller: fulfillment.VerifiedFulfiller{Intents: gateway, Logger: logger},
		Logger:    logger,
	})

	logger.Info().Str("queue", cfg.FulfillmentQueue).Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
