package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	StaticDir          string
	RedisURL           string
	CORSAllowedOrigins []string

	StripeSecretKey      string
	StripePublishableKey string
	StripeWebhookSecret  string
	StripeAPIURL         string

	OrderItemPrices      map[string]int64
	OrderDefaultItem     string
	OrderDefaultCurrency string

	GatewayTimeout             time.Duration
	CircuitGatewayMinRequests  int
	CircuitGatewayFailureRatio float64
	CircuitGatewayOpenFor      time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int
	BodyLimitBytes  int64

	WebhookReplayTTL     time.Duration
	WebhookMaxBodyBytes  int64
	WebhookCaptureAmount int64

	FulfillmentQueue     string
	FulfillmentMaxRetry  int
	FulfillmentRetention time.Duration
	WorkerConcurrency    int

	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	prices, err := parsePrices(k.String("ORDER_ITEM_PRICES"))
	if err != nil {
		return nil, fmt.Errorf("ORDER_ITEM_PRICES: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "4242"),
		StaticDir:          strings.TrimSpace(k.String("STATIC_DIR")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		StripeSecretKey:      strings.TrimSpace(k.String("STRIPE_SECRET_KEY")),
		StripePublishableKey: valueOrDefault(k.String("STRIPE_PUBLISHABLE_KEY"), strings.TrimSpace(k.String("STRIPE_PUBLIC_KEY"))),
		StripeWebhookSecret:  strings.TrimSpace(k.String("STRIPE_WEBHOOK_SECRET")),
		StripeAPIURL:         strings.TrimSpace(k.String("STRIPE_API_URL")),

		OrderItemPrices:      prices,
		OrderDefaultItem:     valueOrDefault(k.String("ORDER_DEFAULT_ITEM"), "photo-subscription"),
		OrderDefaultCurrency: strings.ToLower(valueOrDefault(k.String("ORDER_DEFAULT_CURRENCY"), "usd")),

		GatewayTimeout:             parseDuration(k.String("GATEWAY_TIMEOUT"), "30s"),
		CircuitGatewayMinRequests:  parseInt(k.String("CIRCUIT_GATEWAY_MIN_REQUESTS"), 10),
		CircuitGatewayFailureRatio: parseFloat(k.String("CIRCUIT_GATEWAY_FAILURE_RATIO"), 0.5),
		CircuitGatewayOpenFor:      parseDuration(k.String("CIRCUIT_GATEWAY_OPEN_FOR"), "30s"),

		RateLimitWindow: parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:    parseInt(k.String("RATE_LIMIT_MAX"), 30),
		BodyLimitBytes:  int64(parseInt(k.String("BODY_LIMIT_BYTES"), 16<<10)),

		WebhookReplayTTL:     parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "72h"),
		WebhookMaxBodyBytes:  int64(parseInt(k.String("WEBHOOK_MAX_BODY_BYTES"), 64<<10)),
		WebhookCaptureAmount: int64(parseInt(k.String("WEBHOOK_CAPTURE_AMOUNT"), 0)),

		FulfillmentQueue:     valueOrDefault(k.String("FULFILLMENT_QUEUE"), "fulfillment"),
		FulfillmentMaxRetry:  parseInt(k.String("FULFILLMENT_MAX_RETRY"), 10),
		FulfillmentRetention: parseDuration(k.String("FULFILLMENT_RETENTION"), "168h"),
		WorkerConcurrency:    parseInt(k.String("WORKER_CONCURRENCY"), 5),

		ShutdownTimeout: parseDuration(k.String("SHUTDOWN_TIMEOUT"), "10s"),
	}

	if cfg.StripeSecretKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is required")
	}
	if cfg.StripePublishableKey == "" {
		return nil, errors.New("STRIPE_PUBLISHABLE_KEY is required")
	}
	if cfg.StripeWebhookSecret == "" {
		return nil, errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	if cfg.WebhookCaptureAmount < 0 {
		return nil, errors.New("WEBHOOK_CAPTURE_AMOUNT must not be negative")
	}
	if cfg.FulfillmentRetention <= 0 {
		return nil, errors.New("FULFILLMENT_RETENTION must be positive")
	}
	if _, ok := cfg.OrderItemPrices[cfg.OrderDefaultItem]; !ok {
		return nil, fmt.Errorf("ORDER_DEFAULT_ITEM %q has no price", cfg.OrderDefaultItem)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "4242"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// DefaultPrices is the catalogue used when ORDER_ITEM_PRICES is unset.
func DefaultPrices() map[string]int64 {
	return map[string]int64{"photo-subscription": 1400}
}

// parsePrices reads "id:amount,id:amount" pairs expressed in minor units.
func parsePrices(value string) (map[string]int64, error) {
	if strings.TrimSpace(value) == "" {
		return DefaultPrices(), nil
	}
	out := make(map[string]int64)
	for _, pair := range splitAndTrim(value) {
		id, raw, ok := strings.Cut(pair, ":")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid entry %q", pair)
		}
		amount, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount for %q: %w", id, err)
		}
		if amount <= 0 {
			return nil, fmt.Errorf("amount for %q must be positive", id)
		}
		out[id] = amount
	}
	return out, nil
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
