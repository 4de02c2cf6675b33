package fulfillment

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/card-hold/internal/obs"
)

// Fulfiller delivers whatever the customer paid for.
type Fulfiller interface {
	Fulfill(ctx context.Context, p Payload) error
}

// Handler processes payment:fulfill tasks on the worker.
type Handler struct {
	Fulfiller Fulfiller
	Logger    zerolog.Logger
}

// ProcessTask implements asynq.Handler. Malformed payloads are not retried.
func (h Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	p, err := DecodePayload(t)
	if err != nil {
		obs.CountFulfillment("invalid")
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	logger := h.Logger.With().Str("payment_intent", p.IntentID).Int64("amount", p.Amount).Logger()
	if h.Fulfiller != nil {
		if err := h.Fulfiller.Fulfill(ctx, p); err != nil {
			obs.CountFulfillment("error")
			logger.Error().Err(err).Msg("fulfillment failed")
			return err
		}
	}
	obs.CountFulfillment("success")
	logger.Info().Str("currency", p.Currency).Msg("order fulfilled")
	return nil
}
