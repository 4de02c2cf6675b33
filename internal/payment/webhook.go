package payment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/card-hold/internal/common"
	"github.com/noah-isme/card-hold/internal/events"
	"github.com/noah-isme/card-hold/internal/obs"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

const defaultWebhookBodyLimit = 64 << 10

// ReplayStore records webhook deliveries that were already handled.
// *redis.Client satisfies it.
type ReplayStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Webhook handles gateway notifications for the webhook-confirmed flow.
type Webhook struct {
	Verifier  EventVerifier
	Gateway   Gateway
	Replay    ReplayStore
	ReplayTTL time.Duration
	// MaxBodyBytes caps the payload; zero means 64 KiB.
	MaxBodyBytes int64
	// CaptureAmount requests a partial capture when positive. It is capped at
	// the intent's amount_capturable.
	CaptureAmount int64
	Events        *events.Bus
	// Lock, when set, serialises captures with the pay flow; the intent is
	// re-read under the lock so a hold already captured is left alone.
	Lock   Locker
	Logger zerolog.Logger
}

type webhookAck struct {
	Status string `json:"status"`
}

// Handle verifies the notification and dispatches it by type. Every verified
// event is acknowledged with 200 so the gateway stops redelivering, even when
// the follow-up capture fails.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("payment.Webhook").Start(r.Context(), "PaymentWebhook.Handle")
	defer span.End()
	logger := obs.LoggerFrom(ctx, h.Logger)

	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = defaultWebhookBodyLimit
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		logger.Warn().Err(err).Msg("read webhook body")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.Verifier.ConstructEvent(payload, r.Header.Get(SignatureHeader))
	if err != nil {
		result := "invalid_payload"
		if errors.Is(err, ErrSignatureVerification) {
			result = "invalid_signature"
		}
		obs.CountWebhook("unverified", result)
		logger.Error().Err(err).Msg("webhook rejected")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("webhook.event_id", event.ID),
		attribute.String("webhook.type", event.Type),
	)
	logger.Info().Str("event_type", event.Type).Str("event_id", event.ID).Msg("webhook notification received")

	if h.seen(ctx, logger, event, payload) {
		obs.CountWebhook(typeLabel(event.Type), "duplicate")
		logger.Info().Str("event_id", event.ID).Msg("duplicate webhook ignored")
		common.JSON(w, http.StatusOK, webhookAck{Status: "success"})
		return
	}

	result := h.dispatch(ctx, logger, event)
	obs.CountWebhook(typeLabel(event.Type), result)
	common.JSON(w, http.StatusOK, webhookAck{Status: "success"})
}

func (h Webhook) dispatch(ctx context.Context, logger *zerolog.Logger, event Event) string {
	in := event.Intent
	switch event.Type {
	case EventAmountCapturableUpdated:
		if in.Status != StatusRequiresCapture {
			logger.Info().Str("payment_intent", in.ID).Str("status", in.Status.String()).Msg("hold not capturable, skipping capture")
			return "skipped"
		}
		amount := captureAmount(h.CaptureAmount, in)
		captured := in.AmountCapturable
		if amount != nil {
			captured = *amount
		}
		logger.Info().Str("payment_intent", in.ID).Int64("amount_capturable", in.AmountCapturable).Int64("amount", captured).Msg("charging the card")
		var (
			after   Intent
			skipped bool
		)
		err := withCaptureLock(ctx, h.Lock, in.ID, func(ctx context.Context) error {
			if h.Lock != nil {
				current, err := h.Gateway.Retrieve(ctx, in.ID)
				if err != nil {
					return err
				}
				if current.Status != StatusRequiresCapture {
					skipped = true
					return nil
				}
			}
			var err error
			after, err = h.Gateway.Capture(ctx, in.ID, amount)
			return err
		})
		if err != nil {
			obs.CountCapture("webhook", "error")
			logger.Error().Err(err).Str("payment_intent", in.ID).Msg("capture failed")
			return "capture_failed"
		}
		if skipped {
			logger.Info().Str("payment_intent", in.ID).Msg("hold already captured, skipping")
			return "skipped"
		}
		obs.CountCapture("webhook", "success")
		emitPayment(ctx, h.Events, logger, events.TopicPaymentCaptured, events.PaymentPayload{
			IntentID:       in.ID,
			Status:         string(after.Status),
			Amount:         after.Amount,
			Currency:       after.Currency,
			Captured:       captured,
			WebhookEventID: event.ID,
		})
		return "captured"
	case EventPaymentSucceeded:
		logger.Info().Str("payment_intent", in.ID).Int64("amount", in.Amount).Msg("payment received")
		emitPayment(ctx, h.Events, logger, events.TopicPaymentSucceeded, paymentPayload(in, event.ID))
		return "handled"
	case EventPaymentFailed:
		logger.Error().Str("payment_intent", in.ID).Msg("payment failed")
		emitPayment(ctx, h.Events, logger, events.TopicPaymentFailed, paymentPayload(in, event.ID))
		return "handled"
	default:
		return "ignored"
	}
}

// seen reports whether this delivery was already processed. Store failures
// are logged and treated as first delivery.
func (h Webhook) seen(ctx context.Context, logger *zerolog.Logger, event Event, payload []byte) bool {
	if h.Replay == nil || h.ReplayTTL <= 0 {
		return false
	}
	id := event.ID
	if id == "" {
		id = common.Sha256Hex(payload)
	}
	first, err := h.Replay.SetNX(ctx, "webhook:stripe:"+id, "1", h.ReplayTTL).Result()
	if err != nil {
		logger.Warn().Err(err).Str("event_id", event.ID).Msg("webhook replay store unavailable")
		return false
	}
	return !first
}

func captureAmount(configured int64, in Intent) *int64 {
	if configured <= 0 {
		return nil
	}
	amount := configured
	if in.AmountCapturable > 0 && amount > in.AmountCapturable {
		amount = in.AmountCapturable
	}
	return &amount
}

func paymentPayload(in Intent, eventID string) events.PaymentPayload {
	return events.PaymentPayload{
		IntentID:       in.ID,
		Status:         string(in.Status),
		Amount:         in.Amount,
		Currency:       in.Currency,
		WebhookEventID: eventID,
	}
}

func emitPayment(ctx context.Context, bus *events.Bus, logger *zerolog.Logger, topic string, p events.PaymentPayload) {
	if bus == nil || p.IntentID == "" {
		return
	}
	if _, err := bus.Emit(ctx, topic, p.IntentID, p); err != nil {
		logger.Error().Err(err).Str("topic", topic).Str("payment_intent", p.IntentID).Msg("emit payment event")
	}
}

func typeLabel(t string) string {
	switch t {
	case EventAmountCapturableUpdated, EventPaymentSucceeded, EventPaymentFailed:
		return t
	}
	return "other"
}
