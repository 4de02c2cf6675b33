package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/card-hold/internal/common"
	"github.com/noah-isme/card-hold/internal/events"
	"github.com/noah-isme/card-hold/internal/obs"
	"github.com/noah-isme/card-hold/internal/pricing"
)

// Service runs the hold-then-capture flows against a Gateway.
type Service struct {
	Gateway Gateway
	Catalog pricing.Catalog
	Events  *events.Bus
	// Lock, when set, serialises captures of one intent with the webhook; the
	// intent is re-read under the lock and decided as found if already captured.
	Lock   Locker
	Logger zerolog.Logger
}

// Pay creates and confirms a new intent, or confirms an existing one after
// authentication, captures it when the hold is in place and decides the
// browser response. Gateway failures become an error Decision, not an error;
// the returned error is reserved for invalid orders.
func (s *Service) Pay(ctx context.Context, req PayRequest, idempotencyKey string) (Decision, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Pay")
	defer span.End()
	logger := obs.LoggerFrom(ctx, s.Logger)

	var (
		intent Intent
		err    error
	)
	if req.PaymentIntentID != "" {
		span.SetAttributes(attribute.String("payment.intent_id", req.PaymentIntentID))
		intent, err = s.Gateway.Confirm(ctx, req.PaymentIntentID)
	} else {
		amount, priceErr := s.Catalog.OrderAmount(req.Items)
		if priceErr != nil {
			return Decision{}, orderError(priceErr)
		}
		intent, err = s.Gateway.Create(ctx, CreateParams{
			Amount:             amount,
			Currency:           s.Catalog.Currency(req.Currency),
			PaymentMethodID:    req.PaymentMethodID,
			Confirm:            true,
			ManualConfirmation: true,
			IdempotencyKey:     idempotencyKey,
		})
	}
	if err != nil {
		return s.failed(logger, err), nil
	}

	if intent.Status == StatusRequiresCapture {
		logger.Info().Str("payment_intent", intent.ID).Int64("amount_capturable", intent.AmountCapturable).Msg("charging the card")
		var (
			captured Intent
			skipped  bool
		)
		capErr := withCaptureLock(ctx, s.Lock, intent.ID, func(ctx context.Context) error {
			if s.Lock != nil {
				current, err := s.Gateway.Retrieve(ctx, intent.ID)
				if err != nil {
					return err
				}
				if current.Status != StatusRequiresCapture {
					captured, skipped = current, true
					return nil
				}
			}
			var err error
			captured, err = s.Gateway.Capture(ctx, intent.ID, nil)
			return err
		})
		if capErr != nil {
			obs.CountCapture("pay", "error")
			return s.failed(logger, capErr), nil
		}
		if skipped {
			logger.Info().Str("payment_intent", intent.ID).Str("status", captured.Status.String()).Msg("hold no longer capturable, skipping capture")
		} else {
			obs.CountCapture("pay", "success")
		}
		intent = captured
	}

	d := Decide(intent)
	span.SetAttributes(
		attribute.String("payment.status", intent.Status.String()),
		attribute.String("payment.outcome", d.Outcome.String()),
	)
	obs.CountDecision("pay", d.Outcome.String())
	if d.Outcome == OutcomeSucceeded {
		logger.Info().Str("payment_intent", intent.ID).Int64("amount", intent.Amount).Msg("payment received")
		emitPayment(ctx, s.Events, logger, events.TopicPaymentSucceeded, paymentPayload(intent, ""))
	}
	return d, nil
}

// CreateIntent opens an unconfirmed manual-capture intent for the webhook flow.
// An empty order falls back to the catalogue default.
func (s *Service) CreateIntent(ctx context.Context, req CreateIntentRequest, idempotencyKey string) (Intent, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.CreateIntent")
	defer span.End()

	items := req.Items
	if len(items) == 0 {
		items = s.Catalog.DefaultOrder()
	}
	amount, err := s.Catalog.OrderAmount(items)
	if err != nil {
		return Intent{}, orderError(err)
	}
	start := time.Now()
	intent, err := s.Gateway.Create(ctx, CreateParams{
		Amount:         amount,
		Currency:       s.Catalog.Currency(req.Currency),
		IdempotencyKey: idempotencyKey,
	})
	span.SetAttributes(attribute.Float64("payment.create.duration_ms", obs.DurationMillis(time.Since(start))))
	if err != nil {
		span.RecordError(err)
		obs.CountDecision("create", OutcomeError.String())
		return Intent{}, err
	}
	span.SetAttributes(attribute.String("payment.intent_id", intent.ID))
	obs.CountDecision("create", "created")
	return intent, nil
}

func (s *Service) failed(logger *zerolog.Logger, err error) Decision {
	evt := logger.Warn().Err(err)
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		evt = evt.Str("op", gwErr.Op).Str("code", gwErr.Code).Str("decline_code", gwErr.DeclineCode)
	}
	evt.Msg("payment gateway call failed")
	obs.CountDecision("pay", OutcomeError.String())
	return Failure(ClientMessage(err))
}

func orderError(err error) error {
	switch {
	case errors.Is(err, pricing.ErrUnknownItem):
		return common.NewAppError("UNKNOWN_ITEM", "order contains an unknown item", http.StatusBadRequest, err)
	case errors.Is(err, pricing.ErrEmptyOrder):
		return common.NewValidationError("order has no items", nil, err)
	default:
		return common.NewValidationError("invalid order", nil, err)
	}
}
