package fulfillment

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/card-hold/internal/payment"
)

// IntentReader looks up the current state of a payment intent.
type IntentReader interface {
	Retrieve(ctx context.Context, id string) (payment.Intent, error)
}

// VerifiedFulfiller re-reads the intent from the gateway before releasing the
// order, so a forged or stale task never ships anything.
type VerifiedFulfiller struct {
	Intents IntentReader
	Logger  zerolog.Logger
}

// Fulfill implements Fulfiller.
func (v VerifiedFulfiller) Fulfill(ctx context.Context, p Payload) error {
	in, err := v.Intents.Retrieve(ctx, p.IntentID)
	if err != nil {
		return fmt.Errorf("fulfillment: retrieve %s: %w", p.IntentID, err)
	}
	switch in.Status {
	case payment.StatusSucceeded:
	case payment.StatusProcessing, payment.StatusRequiresCapture:
		// funds not settled yet; let asynq retry later
		return fmt.Errorf("fulfillment: intent %s is %s", p.IntentID, in.Status)
	default:
		return fmt.Errorf("%w: intent %s is %s", asynq.SkipRetry, p.IntentID, in.Status)
	}
	v.Logger.Info().
		Str("payment_intent", in.ID).
		Int64("amount", in.Amount).
		Str("currency", in.Currency).
		Msg("releasing order")
	return nil
}
