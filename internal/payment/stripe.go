package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/card-hold/internal/obs"
	"github.com/noah-isme/card-hold/internal/resilience"
)

// StripeConfig configures a StripeGateway. Nothing is read from package
// globals of the SDK, so several gateways can coexist in one process.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// APIURL overrides https://api.stripe.com, e.g. for stripe-mock.
	APIURL  string
	Timeout time.Duration
	Breaker *resilience.Breaker
	// HTTPClient replaces the instrumented client built from Timeout and Breaker.
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// StripeGateway implements Gateway and EventVerifier with stripe-go.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway builds a gateway with SDK retries disabled; failures surface
// to the caller on the first attempt.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("payment: stripe secret key is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(
				resilience.Transport{Base: http.DefaultTransport, Breaker: cfg.Breaker},
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "stripe " + r.Method + " " + r.URL.Path
				}),
			),
		}
	}
	logger := obs.StripeLogger{Logger: cfg.Logger}
	backendConfig := func(url string) *stripe.BackendConfig {
		bc := &stripe.BackendConfig{
			HTTPClient:        httpClient,
			LeveledLogger:     logger,
			MaxNetworkRetries: stripe.Int64(0),
		}
		if url != "" {
			bc.URL = stripe.String(strings.TrimRight(url, "/"))
		}
		return bc
	}
	apiURL := strings.TrimSpace(cfg.APIURL)
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig(apiURL)),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig(apiURL)),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig(apiURL)),
	}
	return &StripeGateway{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// Create opens a manual-capture intent.
func (g *StripeGateway) Create(ctx context.Context, p CreateParams) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(p.Amount),
		Currency:      stripe.String(p.Currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	if p.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(p.PaymentMethodID)
	}
	if p.ManualConfirmation {
		params.ConfirmationMethod = stripe.String(string(stripe.PaymentIntentConfirmationMethodManual))
	}
	if p.Confirm {
		params.Confirm = stripe.Bool(true)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	params.Context = ctx
	return g.call(ctx, "create", "", func() (*stripe.PaymentIntent, error) {
		return g.api.PaymentIntents.New(params)
	})
}

// Confirm confirms an existing intent after customer authentication.
func (g *StripeGateway) Confirm(ctx context.Context, id string) (Intent, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	return g.call(ctx, "confirm", id, func() (*stripe.PaymentIntent, error) {
		return g.api.PaymentIntents.Confirm(id, params)
	})
}

// Capture captures amount, or the full capturable amount when nil.
func (g *StripeGateway) Capture(ctx context.Context, id string, amount *int64) (Intent, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	if amount != nil {
		params.AmountToCapture = stripe.Int64(*amount)
	}
	params.Context = ctx
	return g.call(ctx, "capture", id, func() (*stripe.PaymentIntent, error) {
		return g.api.PaymentIntents.Capture(id, params)
	})
}

// Retrieve fetches the current state of an intent.
func (g *StripeGateway) Retrieve(ctx context.Context, id string) (Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return g.call(ctx, "retrieve", id, func() (*stripe.PaymentIntent, error) {
		return g.api.PaymentIntents.Get(id, params)
	})
}

// Cancel releases the hold on an uncaptured intent.
func (g *StripeGateway) Cancel(ctx context.Context, id string) (Intent, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	return g.call(ctx, "cancel", id, func() (*stripe.PaymentIntent, error) {
		return g.api.PaymentIntents.Cancel(id, params)
	})
}

// ConstructEvent verifies the Stripe-Signature header and decodes the intent
// embedded in payment_intent.* events. Events from endpoints pinned to another
// API version are accepted; only the fields read here need to decode.
func (g *StripeGateway) ConstructEvent(payload []byte, signatureHeader string) (Event, error) {
	if err := webhook.ValidatePayload(payload, signatureHeader, g.webhookSecret); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("payment: decode webhook event: %w", err)
	}
	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if strings.HasPrefix(out.Type, "payment_intent.") && ev.Data != nil && len(ev.Data.Raw) > 0 {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return Event{}, fmt.Errorf("payment: decode %s payload: %w", out.Type, err)
		}
		out.Intent = intentFromStripe(&pi)
	}
	return out, nil
}

func (g *StripeGateway) call(ctx context.Context, op, id string, fn func() (*stripe.PaymentIntent, error)) (Intent, error) {
	_, span := otel.Tracer("payment.StripeGateway").Start(ctx, "StripeGateway."+op)
	defer span.End()
	if id != "" {
		span.SetAttributes(attribute.String("payment.intent_id", id))
	}

	start := time.Now()
	pi, err := fn()
	elapsed := obs.DurationMillis(time.Since(start))
	if obs.GatewayCallLatency != nil {
		obs.GatewayCallLatency.WithLabelValues(op).Observe(elapsed)
	}

	result := "success"
	defer func() {
		if obs.GatewayCallTotal != nil {
			obs.GatewayCallTotal.WithLabelValues(op, result).Inc()
		}
	}()
	if err != nil {
		gwErr := gatewayError(op, err)
		result = "error"
		if gwErr.IsCardError() {
			result = "declined"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, gwErr.Message)
		return Intent{}, gwErr
	}
	intent := intentFromStripe(pi)
	span.SetAttributes(
		attribute.String("payment.intent_id", intent.ID),
		attribute.String("payment.status", intent.Status.String()),
	)
	return intent, nil
}

func gatewayError(op string, err error) *GatewayError {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		msg := stripeErr.Msg
		if msg == "" {
			msg = "The payment could not be processed, please try again"
		}
		return &GatewayError{
			Op:          op,
			Message:     msg,
			Code:        string(stripeErr.Code),
			DeclineCode: string(stripeErr.DeclineCode),
			HTTPStatus:  stripeErr.HTTPStatusCode,
			Err:         err,
		}
	}
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return &GatewayError{Op: op, Message: "The payment service is temporarily unavailable, please try again shortly", Err: err}
	}
	return &GatewayError{Op: op, Message: ClientMessage(err), Err: err}
}

func intentFromStripe(pi *stripe.PaymentIntent) Intent {
	if pi == nil {
		return Intent{}
	}
	return Intent{
		ID:               pi.ID,
		Status:           ParseStatus(string(pi.Status)),
		ClientSecret:     pi.ClientSecret,
		Amount:           pi.Amount,
		AmountCapturable: pi.AmountCapturable,
		Currency:         string(pi.Currency),
	}
}
