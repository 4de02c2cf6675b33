package app

import (
	"context"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/card-hold/internal/config"
	"github.com/noah-isme/card-hold/internal/events"
	"github.com/noah-isme/card-hold/internal/fulfillment"
	"github.com/noah-isme/card-hold/internal/obs"
	"github.com/noah-isme/card-hold/internal/payment"
	"github.com/noah-isme/card-hold/internal/pricing"
	"github.com/noah-isme/card-hold/internal/ratelimit"
	"github.com/noah-isme/card-hold/internal/resilience"
)

// Dependencies are the shared services the HTTP router is assembled from.
// Redis, Limiter and Metrics are optional.
type Dependencies struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Gateway   payment.Gateway
	Verifier  payment.EventVerifier
	Redis     redis.UniversalClient
	Events    *events.Bus
	Limiter   ratelimit.Allower
	Validator *validator.Validate
	Metrics   *obs.HTTPMetrics
	Tracing   bool
}

// NewGateway builds the Stripe gateway behind a circuit breaker sized from cfg.
func NewGateway(cfg *config.Config, logger zerolog.Logger) (*payment.StripeGateway, error) {
	breaker := resilience.NewBreaker(cfg.CircuitGatewayMinRequests, cfg.CircuitGatewayFailureRatio, cfg.CircuitGatewayOpenFor).
		WithTarget("stripe").
		WithLogger(logger)
	return payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		APIURL:        cfg.StripeAPIURL,
		Timeout:       cfg.GatewayTimeout,
		Breaker:       breaker,
		Logger:        logger,
	})
}

// NewRedis connects to REDIS_URL. It returns nil without error when Redis is
// not configured.
func NewRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics bool) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewLimiter prefers the Redis sliding window so replicas share one budget and
// falls back to an in-process limiter.
func NewLimiter(cfg *config.Config, rdb redis.UniversalClient) ratelimit.Allower {
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return nil
	}
	if rdb != nil {
		return ratelimit.Limiter{Client: rdb, Prefix: "ratelimit:", Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax}
	}
	return ratelimit.NewMemoryLimiter(cfg.RateLimitWindow, cfg.RateLimitMax)
}

// NewEventBus always logs payment events and, when a task client is given,
// queues fulfillment for succeeded payments.
func NewEventBus(cfg *config.Config, logger zerolog.Logger, tasks fulfillment.TaskEnqueuer) *events.Bus {
	bus := &events.Bus{Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}}}
	if tasks != nil {
		bus.Notifiers = append(bus.Notifiers, fulfillment.Enqueuer{
			Client:    tasks,
			Queue:     cfg.FulfillmentQueue,
			MaxRetry:  cfg.FulfillmentMaxRetry,
			Retention: cfg.FulfillmentRetention,
			Logger:    logger,
		})
	}
	return bus
}

// Catalog converts configured prices into the pricing catalogue.
func Catalog(cfg *config.Config) pricing.Catalog {
	prices := make(map[string]pricing.Money, len(cfg.OrderItemPrices))
	for id, amount := range cfg.OrderItemPrices {
		prices[id] = amount
	}
	return pricing.Catalog{
		Prices:          prices,
		DefaultItem:     cfg.OrderDefaultItem,
		DefaultCurrency: cfg.OrderDefaultCurrency,
	}
}
