package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/card-hold/internal/common"
	"github.com/noah-isme/card-hold/internal/health"
	"github.com/noah-isme/card-hold/internal/lock"
	"github.com/noah-isme/card-hold/internal/obs"
	"github.com/noah-isme/card-hold/internal/payment"
	"github.com/noah-isme/card-hold/internal/ratelimit"
	"github.com/noah-isme/card-hold/internal/security"
)

// NewRouter mounts the checkout endpoints, health probes, metrics and the
// optional static checkout page.
func NewRouter(d Dependencies) http.Handler {
	cfg := d.Config
	validate := d.Validator
	if validate == nil {
		validate = payment.NewValidator()
	}

	svc := &payment.Service{
		Gateway: d.Gateway,
		Catalog: Catalog(cfg),
		Events:  d.Events,
		Logger:  d.Logger,
	}
	handler := &payment.Handler{Svc: svc, PublishableKey: cfg.StripePublishableKey, Validate: validate}
	webhook := payment.Webhook{
		Verifier:      d.Verifier,
		Gateway:       d.Gateway,
		ReplayTTL:     cfg.WebhookReplayTTL,
		MaxBodyBytes:  cfg.WebhookMaxBodyBytes,
		CaptureAmount: cfg.WebhookCaptureAmount,
		Events:        d.Events,
		Logger:        d.Logger,
	}
	checks := map[string]health.Checker{}
	if d.Redis != nil {
		locker := lock.Locker{Client: d.Redis, MaxWait: 5 * time.Second}
		svc.Lock = locker
		webhook.Lock = locker
		webhook.Replay = d.Redis
		checks["redis"] = health.RedisChecker{Client: d.Redis}
	}
	healthHandler := health.Handler{Checks: checks}

	limited := ratelimit.Handler{
		Limiter: d.Limiter,
		OnError: func(err error) {
			d.Logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}
	bodyLimit := security.BodyLimit{Max: cfg.BodyLimitBytes}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{
		Enable:                true,
		EnableHSTS:            cfg.AppEnv == "production",
		ContentSecurityPolicy: security.StripeContentSecurityPolicy,
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", common.IdempotencyHeader},
		MaxAge:         300,
	}))

	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Get("/stripe-key", handler.StripeKey)
	r.Group(func(g chi.Router) {
		g.Use(limited.Middleware, bodyLimit.Middleware, common.Idem{}.Middleware)
		g.Post("/create-payment-intent", handler.CreatePaymentIntent)
		g.Post("/pay", handler.Pay)
	})
	r.Post("/webhook", webhook.Handle)

	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
